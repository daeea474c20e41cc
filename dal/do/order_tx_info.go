package do

import "time"

// OrderTxInfo is one observed transfer funding an order. One row per
// (order, txid) pair; confirmations reflect the most recent poll.
type OrderTxInfo struct {
	ID            uint64 `gorm:"primaryKey"`
	OrderID       uint64 `gorm:"uniqueIndex:unique_idx_order_tx;not null"`
	TxID          string `gorm:"uniqueIndex:unique_idx_order_tx;type:varchar(64);not null"`
	AtomicAmount  uint64 `gorm:"not null;default:0"`
	Height        uint64 `gorm:"not null;default:0"`
	Confirmations uint64 `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
