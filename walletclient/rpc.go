package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sigvend/sigvend-server/errcode"
	"github.com/sigvend/sigvend-server/monerojson"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various events.
type NotificationCallback func(*Notification)

const (
	// NTClientConnected is sent when the wallet RPC endpoint answers its
	// first call after being unreachable.
	NTClientConnected NotificationType = iota
	// NTClientDisconnected is sent when a call fails against an endpoint
	// that was previously answering.
	NTClientDisconnected
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTClientConnected:    "NTClientConnected",
	NTClientDisconnected: "NTClientDisconnected",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines a notification that is sent to the caller via the
// callback functions registered with Subscribe.
type Notification struct {
	Type NotificationType
	Data interface{}
}

// RPCClient represents a client connection to a monero-wallet-rpc
// endpoint. The wallet RPC speaks JSON-RPC 2.0 over plain HTTP POST and
// offers no push channel, so every interaction is a bounded request.
type RPCClient struct {
	url         string
	callTimeout time.Duration
	httpClient  *http.Client

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback

	connectedMtx sync.Mutex
	connected    bool
}

// NewRPCClient creates a client for the wallet RPC bound at host:port.
// callTimeout bounds every individual RPC round trip.
func NewRPCClient(host string, port int, callTimeout time.Duration) *RPCClient {
	return &RPCClient{
		url:         fmt.Sprintf("http://%s:%d/json_rpc", host, port),
		callTimeout: callTimeout,
		httpClient:  &http.Client{},
	}
}

// Subscribe registers a callback to be executed when connectivity events
// take place.
func (c *RPCClient) Subscribe(callback NotificationCallback) {
	c.notificationsLock.Lock()
	c.notifications = append(c.notifications, callback)
	c.notificationsLock.Unlock()
}

// sendNotification sends a notification with the passed type and data to
// every registered callback.
func (c *RPCClient) sendNotification(typ NotificationType, data interface{}) {
	n := Notification{Type: typ, Data: data}
	c.notificationsLock.RLock()
	for _, callback := range c.notifications {
		callback(&n)
	}
	c.notificationsLock.RUnlock()
}

func (c *RPCClient) markConnected(ok bool) {
	c.connectedMtx.Lock()
	changed := c.connected != ok
	c.connected = ok
	c.connectedMtx.Unlock()
	if !changed {
		return
	}
	if ok {
		log.Infof("Wallet RPC endpoint %s is answering", c.url)
		c.sendNotification(NTClientConnected, nil)
	} else {
		log.Warnf("Wallet RPC endpoint %s stopped answering", c.url)
		c.sendNotification(NTClientDisconnected, nil)
	}
}

// Call issues one JSON-RPC request and decodes the result into result
// when it is non-nil. Connection failures, non-200 statuses and JSON-RPC
// error objects all surface as *errcode.RPCClientError.
func (c *RPCClient) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	request, err := monerojson.NewRequest(method, params)
	if err != nil {
		return errcode.NewRPCClientError(method, "unable to marshal params", err)
	}
	body, err := json.Marshal(request)
	if err != nil {
		return errcode.NewRPCClientError(method, "unable to marshal request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errcode.NewRPCClientError(method, "unable to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.markConnected(false)
		return errcode.NewRPCClientError(method, "request failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		c.markConnected(false)
		return errcode.NewRPCClientError(method,
			fmt.Sprintf("unexpected status %d", httpResp.StatusCode), nil)
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errcode.NewRPCClientError(method, "unable to read response", err)
	}

	var response monerojson.Response
	if err := json.Unmarshal(raw, &response); err != nil {
		return errcode.NewRPCClientError(method, "malformed response", err)
	}
	if response.Error != nil {
		// The endpoint is alive; the method just failed.
		c.markConnected(true)
		return errcode.NewRPCClientError(method, response.Error.Message, response.Error)
	}

	c.markConnected(true)
	if result != nil {
		if err := json.Unmarshal(response.Result, result); err != nil {
			return errcode.NewRPCClientError(method, "malformed result", err)
		}
	}
	return nil
}

// Height returns the wallet's current sync height. It doubles as the
// readiness and liveness probe because it is the cheapest call the wallet
// answers.
func (c *RPCClient) Height(ctx context.Context) (uint64, error) {
	var res monerojson.GetHeightResult
	if err := c.Call(ctx, "get_height", monerojson.NewGetHeightCmd(), &res); err != nil {
		return 0, err
	}
	return res.Height, nil
}

// Balance returns the wallet balance for account 0.
func (c *RPCClient) Balance(ctx context.Context) (*monerojson.GetBalanceResult, error) {
	var res monerojson.GetBalanceResult
	if err := c.Call(ctx, "get_balance", monerojson.NewGetBalanceCmd(0, nil), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PrimaryAddress returns the wallet's primary address.
func (c *RPCClient) PrimaryAddress(ctx context.Context) (string, error) {
	var res monerojson.GetAddressResult
	if err := c.Call(ctx, "get_address", monerojson.NewGetAddressCmd(0, nil), &res); err != nil {
		return "", err
	}
	return res.Address, nil
}

// CreateSubaddress derives a fresh receiving subaddress with the given
// label and returns the address together with its index.
func (c *RPCClient) CreateSubaddress(ctx context.Context, label string) (string, uint32, error) {
	var res monerojson.CreateAddressResult
	if err := c.Call(ctx, "create_address", monerojson.NewCreateAddressCmd(0, label), &res); err != nil {
		return "", 0, err
	}
	return res.Address, res.AddressIndex, nil
}

// TransfersBySubaddress returns every incoming transfer (confirmed and
// mempool) addressed to the given subaddress index. Index lookup is used
// instead of address-string matching.
func (c *RPCClient) TransfersBySubaddress(ctx context.Context, index uint32) ([]*monerojson.Transfer, error) {
	var res monerojson.GetTransfersResult
	cmd := monerojson.NewGetTransfersCmd(0, []uint32{index})
	if err := c.Call(ctx, "get_transfers", cmd, &res); err != nil {
		return nil, err
	}
	transfers := make([]*monerojson.Transfer, 0, len(res.In)+len(res.Pool))
	transfers = append(transfers, res.In...)
	transfers = append(transfers, res.Pool...)
	return transfers, nil
}

// Transfer sends the given atomic amount to a single destination address.
func (c *RPCClient) Transfer(ctx context.Context, address string, atomicAmount uint64) (*monerojson.TransferResult, error) {
	var res monerojson.TransferResult
	cmd := monerojson.NewTransferCmd([]*monerojson.TransferDestination{
		{Amount: atomicAmount, Address: address},
	}, 0)
	if err := c.Call(ctx, "transfer", cmd, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IsViewOnly reports whether the opened wallet lacks a spend key. A view
// only wallet can observe incoming funds but cannot sign transfers, so
// commission payouts are skipped for it. A failed query is an error, never
// a view-only verdict: a transient RPC failure must not look like a wallet
// that can never sign.
func (c *RPCClient) IsViewOnly(ctx context.Context) (bool, error) {
	var res monerojson.QueryKeyResult
	err := c.Call(ctx, "query_key", monerojson.NewQueryKeyCmd("spend_key"), &res)
	if err != nil {
		return false, err
	}
	return res.Key == "", nil
}

// CreateWallet asks the RPC process to create a wallet file.
func (c *RPCClient) CreateWallet(ctx context.Context, filename, password string) error {
	return c.Call(ctx, "create_wallet", monerojson.NewCreateWalletCmd(filename, password), nil)
}

// OpenWallet asks the RPC process to open a wallet file.
func (c *RPCClient) OpenWallet(ctx context.Context, filename, password string) error {
	return c.Call(ctx, "open_wallet", monerojson.NewOpenWalletCmd(filename, password), nil)
}
