package adminserver

import "time"

// JSON-RPC error codes returned by the admin endpoint.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeUnknownMethod  = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// Admin method names.
const (
	MethodListProducts    = "listproducts"
	MethodCreateProduct   = "createproduct"
	MethodUpdateProduct   = "updateproduct"
	MethodDeleteProduct   = "deleteproduct"
	MethodCreateOrder     = "createorder"
	MethodListOrders      = "listorders"
	MethodGetOrder        = "getorder"
	MethodShipOrder       = "shiporder"
	MethodCancelOrder     = "cancelorder"
	MethodListContacts    = "listcontacts"
	MethodListMessages    = "listmessages"
	MethodSendMessage     = "sendmessage"
	MethodGetWalletStatus = "getwalletstatus"
	MethodGetNodeStatus   = "getnodestatus"
)

type ListProductsCmd struct {
	Page int `json:"page"`
	Num  int `json:"num"`
}

type CreateProductCmd struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Stock       int     `json:"stock"`
	ImagePath   string  `json:"imagepath"`
}

type UpdateProductCmd struct {
	ID          uint64   `json:"id"`
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

type DeleteProductCmd struct {
	ID uint64 `json:"id"`
}

// CreateOrderCmd creates an order for a buyer request. The operator quotes
// the XMR price; the server derives the receiving subaddress.
type CreateOrderCmd struct {
	ContactID      uint64 `json:"contactid"`
	ProductID      uint64 `json:"productid"`
	Quantity       int    `json:"quantity"`
	AtomicExpected uint64 `json:"atomicexpected"`
}

type ListOrdersCmd struct {
	// Status filters to the given statuses; empty lists every order.
	Status []string `json:"status,omitempty"`
	// ContactID filters to one buyer's orders and takes precedence over
	// the status filter.
	ContactID uint64 `json:"contactid,omitempty"`
	Page      int    `json:"page"`
	Num       int    `json:"num"`
}

type GetOrderCmd struct {
	ID uint64 `json:"id"`
}

type ShipOrderCmd struct {
	ID uint64 `json:"id"`
}

type CancelOrderCmd struct {
	ID uint64 `json:"id"`
}

type ListContactsCmd struct {
	Page int `json:"page"`
	Num  int `json:"num"`
}

type ListMessagesCmd struct {
	ContactID uint64 `json:"contactid"`
	Page      int    `json:"page"`
	Num       int    `json:"num"`
}

type SendMessageCmd struct {
	Recipient   string   `json:"recipient"`
	Message     string   `json:"message"`
	Attachments []string `json:"attachments,omitempty"`
}

type ProductResult struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Stock       int     `json:"stock"`
	Active      bool    `json:"active"`
	ImagePath   string  `json:"imagepath,omitempty"`
}

type OrderTransferResult struct {
	TxID          string `json:"txid"`
	AtomicAmount  uint64 `json:"atomicamount"`
	Height        uint64 `json:"height"`
	Confirmations uint64 `json:"confirmations"`
}

type OrderResult struct {
	ID              uint64                 `json:"id"`
	ContactID       uint64                 `json:"contactid"`
	ProductID       uint64                 `json:"productid"`
	Quantity        int                    `json:"quantity"`
	FiatPrice       float64                `json:"fiatprice"`
	Currency        string                 `json:"currency"`
	AtomicExpected  uint64                 `json:"atomicexpected"`
	Subaddress      string                 `json:"subaddress"`
	SubaddressIndex uint32                 `json:"subaddressindex"`
	Status          string                 `json:"status"`
	AtomicReceived  uint64                 `json:"atomicreceived"`
	LastTxID        string                 `json:"lasttxid,omitempty"`
	Confirmations   uint64                 `json:"confirmations"`
	AtomicFee       uint64                 `json:"atomicfee"`
	PaidAt          *time.Time             `json:"paidat,omitempty"`
	ExpiresAt       time.Time              `json:"expiresat"`
	CreatedAt       time.Time              `json:"createdat"`
	Transfers       []*OrderTransferResult `json:"transfers,omitempty"`
}

type ContactResult struct {
	ID         uint64     `json:"id"`
	Address    string     `json:"address"`
	Alias      string     `json:"alias,omitempty"`
	Trusted    bool       `json:"trusted"`
	LastSeenAt *time.Time `json:"lastseenat,omitempty"`
}

type MessageResult struct {
	ID        uint64 `json:"id"`
	ContactID uint64 `json:"contactid"`
	Direction string `json:"direction"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	Delivered bool   `json:"delivered"`
}

type WalletStatusResult struct {
	State           string `json:"state"`
	Height          uint64 `json:"height"`
	Balance         uint64 `json:"balance"`
	UnlockedBalance uint64 `json:"unlockedbalance"`
	Address         string `json:"address"`
	ViewOnly        bool   `json:"viewonly"`
}

type NodeStatusResult struct {
	Address         string     `json:"address"`
	Port            int        `json:"port"`
	UseProxy        bool       `json:"useproxy"`
	LastHeight      uint64     `json:"lastheight"`
	LastReachableAt *time.Time `json:"lastreachableat,omitempty"`
}

// Event is the envelope pushed to websocket subscribers when an order
// changes state.
type Event struct {
	Event string       `json:"event"`
	Order *OrderResult `json:"order"`
}
