package do

import "time"

// OrderInfo is one purchase request. Amounts are atomic units. Payment
// progress fields (status, received, txid, confirmations) are written only
// by the payment poller; seller actions move paid orders to shipped or
// open orders to cancelled, both through guarded transitions.
type OrderInfo struct {
	ID              uint64  `gorm:"primaryKey"`
	ContactID       uint64  `gorm:"index:idx_order_contact;not null"`
	ProductID       uint64  `gorm:"index:idx_order_product;not null"`
	Quantity        int     `gorm:"not null;default:1"`
	FiatPrice       float64 `gorm:"not null;default:0"`
	Currency        string  `gorm:"type:varchar(8);not null;default:''"`
	AtomicExpected  uint64  `gorm:"not null;default:0"`
	Subaddress      string  `gorm:"not null;default:''"`
	SubaddressIndex uint32  `gorm:"index:idx_order_subaddr;not null;default:0"`
	Status          string  `gorm:"index:idx_order_status;type:varchar(16);not null;default:'pending'"`
	AtomicReceived  uint64  `gorm:"not null;default:0"`
	// LastTxID is the most-confirmed transfer funding this order, kept as
	// the representative txid for display. The full transfer list lives in
	// order_tx_infos.
	LastTxID      string `gorm:"not null;default:''"`
	Confirmations uint64 `gorm:"not null;default:0"`
	AtomicFee     uint64 `gorm:"not null;default:0"`
	PaidAt        *time.Time
	ExpiresAt     time.Time `gorm:"index:idx_order_expires"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
