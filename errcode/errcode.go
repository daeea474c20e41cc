package errcode

import (
	"errors"
	"fmt"
)

var (
	// ErrNilGormDB is returned by DAO methods that are handed a nil
	// transaction handle.
	ErrNilGormDB = errors.New("gorm db instance is nil")

	// ErrSellerNotInitialized is returned when an operation requires the
	// seller account but the setup has never completed.
	ErrSellerNotInitialized = errors.New("seller account is not initialized")

	// ErrInsufficientStock is returned when an order would drive a
	// product's stock below zero.
	ErrInsufficientStock = errors.New("insufficient product stock")

	// ErrStaleTransition is returned when a guarded status update matched
	// zero rows, meaning a concurrent writer moved the order first.
	ErrStaleTransition = errors.New("order status changed concurrently")

	// ErrWalletUnavailable is returned by payment operations while the
	// wallet RPC endpoint is not in a ready state (limited mode).
	ErrWalletUnavailable = errors.New("wallet rpc is not available")
)

// RPCClientError wraps any failure talking to a JSON-RPC endpoint
// (connection refused, non-200 status, or an error object in the
// response) into a single type carrying a human-readable message.
type RPCClientError struct {
	Method  string
	Message string
	Err     error
}

func (e *RPCClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rpc %s: %s: %v", e.Method, e.Message, e.Err)
	}
	return fmt.Sprintf("rpc %s: %s", e.Method, e.Message)
}

func (e *RPCClientError) Unwrap() error {
	return e.Err
}

// NewRPCClientError returns an RPCClientError for the given method.
func NewRPCClientError(method, message string, err error) *RPCClientError {
	return &RPCClientError{Method: method, Message: message, Err: err}
}

// WalletCreateErrorKind distinguishes the ways creating a wallet can fail,
// so the caller can show an actionable message.
type WalletCreateErrorKind int

const (
	// WalletCreateToolMissing means the monero-wallet-rpc binary could not
	// be found or executed.
	WalletCreateToolMissing WalletCreateErrorKind = iota
	// WalletCreateTimeout means the wallet process started but never
	// reached a ready state within the allowed window.
	WalletCreateTimeout
	// WalletCreateOther covers every remaining failure.
	WalletCreateOther
)

// WalletCreateError is the dedicated error type for wallet creation
// failures.
type WalletCreateError struct {
	Kind WalletCreateErrorKind
	Msg  string
	Err  error
}

func (e *WalletCreateError) Error() string {
	switch e.Kind {
	case WalletCreateToolMissing:
		return fmt.Sprintf("wallet create: monero-wallet-rpc not installed or not executable: %s", e.Msg)
	case WalletCreateTimeout:
		return fmt.Sprintf("wallet create: timed out waiting for wallet to become ready: %s", e.Msg)
	default:
		return fmt.Sprintf("wallet create: %s", e.Msg)
	}
}

func (e *WalletCreateError) Unwrap() error {
	return e.Err
}
