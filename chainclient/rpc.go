package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/go-socks/socks"
	"github.com/sigvend/sigvend-server/errcode"
	"github.com/sigvend/sigvend-server/monerojson"
)

// RPCClient represents a client connection to a monerod daemon's JSON-RPC
// endpoint. Remote daemons are commonly reached over a SOCKS5 (Tor) proxy,
// so the transport optionally dials through one.
type RPCClient struct {
	url         string
	callTimeout time.Duration
	httpClient  *http.Client
}

// NewRPCClient creates a daemon RPC client. proxyAddr, when non-empty, is
// the host:port of a SOCKS5 proxy every connection is dialed through.
func NewRPCClient(host string, port int, proxyAddr string, callTimeout time.Duration) *RPCClient {
	transport := &http.Transport{}
	if proxyAddr != "" {
		proxy := &socks.Proxy{Addr: proxyAddr}
		transport.Dial = proxy.Dial
	}
	return &RPCClient{
		url:         fmt.Sprintf("http://%s:%d/json_rpc", host, port),
		callTimeout: callTimeout,
		httpClient:  &http.Client{Transport: transport},
	}
}

func (c *RPCClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
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
		return errcode.NewRPCClientError(method, "request failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
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
		return errcode.NewRPCClientError(method, response.Error.Message, response.Error)
	}
	if result != nil {
		if err := json.Unmarshal(response.Result, result); err != nil {
			return errcode.NewRPCClientError(method, "malformed result", err)
		}
	}
	return nil
}

// GetInfo returns the daemon's status summary.
func (c *RPCClient) GetInfo(ctx context.Context) (*monerojson.GetInfoResult, error) {
	var res monerojson.GetInfoResult
	if err := c.call(ctx, "get_info", monerojson.NewGetInfoCmd(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
