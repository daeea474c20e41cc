// NOTE: This file is intended to house the RPC commands that are supported by
// monero-wallet-rpc.

package monerojson

// GetHeightCmd defines the get_height JSON-RPC command. It takes no
// parameters and is cheap enough to serve as the readiness probe.
type GetHeightCmd struct{}

// NewGetHeightCmd returns a new instance which can be used to issue a
// get_height request.
func NewGetHeightCmd() *GetHeightCmd { return new(GetHeightCmd) }

// GetBalanceCmd defines the get_balance JSON-RPC command.
type GetBalanceCmd struct {
	AccountIndex   uint32   `json:"account_index"`
	AddressIndices []uint32 `json:"address_indices,omitempty"`
}

func NewGetBalanceCmd(accountIndex uint32, addressIndices []uint32) *GetBalanceCmd {
	return &GetBalanceCmd{
		AccountIndex:   accountIndex,
		AddressIndices: addressIndices,
	}
}

// GetAddressCmd defines the get_address JSON-RPC command.
type GetAddressCmd struct {
	AccountIndex uint32   `json:"account_index"`
	AddressIndex []uint32 `json:"address_index,omitempty"`
}

func NewGetAddressCmd(accountIndex uint32, addressIndex []uint32) *GetAddressCmd {
	return &GetAddressCmd{
		AccountIndex: accountIndex,
		AddressIndex: addressIndex,
	}
}

// CreateAddressCmd defines the create_address JSON-RPC command. One
// subaddress is created per order so incoming payments can be attributed
// by index.
type CreateAddressCmd struct {
	AccountIndex uint32 `json:"account_index"`
	Label        string `json:"label,omitempty"`
}

func NewCreateAddressCmd(accountIndex uint32, label string) *CreateAddressCmd {
	return &CreateAddressCmd{
		AccountIndex: accountIndex,
		Label:        label,
	}
}

// GetTransfersCmd defines the get_transfers JSON-RPC command. The poller
// sets In and Pool and narrows by subaddress index, which is cheaper than
// matching on address strings.
type GetTransfersCmd struct {
	In             bool     `json:"in"`
	Out            bool     `json:"out"`
	Pending        bool     `json:"pending"`
	Pool           bool     `json:"pool"`
	AccountIndex   uint32   `json:"account_index"`
	SubaddrIndices []uint32 `json:"subaddr_indices,omitempty"`
}

func NewGetTransfersCmd(accountIndex uint32, subaddrIndices []uint32) *GetTransfersCmd {
	return &GetTransfersCmd{
		In:             true,
		Pool:           true,
		AccountIndex:   accountIndex,
		SubaddrIndices: subaddrIndices,
	}
}

// TransferDestination is one recipient of a transfer command. Amount is in
// atomic units.
type TransferDestination struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

// TransferCmd defines the transfer JSON-RPC command.
type TransferCmd struct {
	Destinations []*TransferDestination `json:"destinations"`
	AccountIndex uint32                 `json:"account_index"`
	Priority     uint32                 `json:"priority"`
	GetTxKey     bool                   `json:"get_tx_key"`
}

func NewTransferCmd(destinations []*TransferDestination, accountIndex uint32) *TransferCmd {
	return &TransferCmd{
		Destinations: destinations,
		AccountIndex: accountIndex,
		GetTxKey:     true,
	}
}

// QueryKeyCmd defines the query_key JSON-RPC command. Asking for the spend
// key is how a view-only wallet is detected: a watch wallet has none.
type QueryKeyCmd struct {
	KeyType string `json:"key_type"`
}

func NewQueryKeyCmd(keyType string) *QueryKeyCmd {
	return &QueryKeyCmd{KeyType: keyType}
}

// CreateWalletCmd defines the create_wallet JSON-RPC command.
type CreateWalletCmd struct {
	Filename string `json:"filename"`
	Password string `json:"password"`
	Language string `json:"language"`
}

func NewCreateWalletCmd(filename, password string) *CreateWalletCmd {
	return &CreateWalletCmd{
		Filename: filename,
		Password: password,
		Language: "English",
	}
}

// OpenWalletCmd defines the open_wallet JSON-RPC command.
type OpenWalletCmd struct {
	Filename string `json:"filename"`
	Password string `json:"password"`
}

func NewOpenWalletCmd(filename, password string) *OpenWalletCmd {
	return &OpenWalletCmd{Filename: filename, Password: password}
}
