package monerojson

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the version string carried in every request envelope.
// Both monero-wallet-rpc and monerod speak JSON-RPC 2.0 over HTTP POST.
const JSONRPCVersion = "2.0"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest returns a request envelope for the given method with the
// params marshalled in place.
func NewRequest(method string, params interface{}) (*Request, error) {
	var raw json.RawMessage
	if params != nil {
		marshalled, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = marshalled
	}
	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      "0",
		Method:  method,
		Params:  raw,
	}, nil
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set on a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError models the error object of a JSON-RPC 2.0 response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Guarantee RPCError satisfies the builtin error interface.
var _ error = (*RPCError)(nil)

func (e *RPCError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewRPCError constructs an RPCError with the given code and message.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// Error codes reported by the wallet RPC that callers branch on.
const (
	ErrCodeUnknown       = -1
	ErrCodeWrongAddress  = -2
	ErrCodeNotEnoughCash = -17
	ErrCodeDenied        = -19
	ErrCodeBusy          = -21
)
