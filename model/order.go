package model

import "time"

// OrderStatus is the lifecycle state of an order. Paid, shipped, cancelled
// and expired are terminal for the payment poller; only seller actions move
// a paid order to shipped.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusUnconfirmed OrderStatus = "unconfirmed"
	OrderStatusPartial     OrderStatus = "partial"
	OrderStatusPaid        OrderStatus = "paid"
	OrderStatusShipped     OrderStatus = "shipped"
	OrderStatusCancelled   OrderStatus = "cancelled"
	OrderStatusExpired     OrderStatus = "expired"
)

// PaymentClass is the outcome of classifying the transfers observed for
// one order. Exactly one class holds for any input.
type PaymentClass int

const (
	PaymentPending PaymentClass = iota
	PaymentPartial
	PaymentUnconfirmed
	PaymentComplete
)

// String returns the PaymentClass in human-readable form.
func (c PaymentClass) String() string {
	switch c {
	case PaymentPending:
		return "pending"
	case PaymentPartial:
		return "partial"
	case PaymentUnconfirmed:
		return "unconfirmed"
	case PaymentComplete:
		return "complete"
	}
	return "unknown"
}

// PaymentPollConfig carries the payment poller settings. It is built once
// at startup and passed by value, never mutated afterwards.
type PaymentPollConfig struct {
	Interval              time.Duration
	RequiredConfirmations uint64
	OrderExpiry           time.Duration
}

// OrderTransferDetails is one observed transfer funding an order. The full
// list is retained per order rather than collapsing to a single txid.
type OrderTransferDetails struct {
	TxID          string
	AtomicAmount  uint64
	Height        uint64
	Confirmations uint64
}
