package do

import "time"

// SellerInfo is the single-row account record of the shop operator.
// Identity and commission address are stored as ciphertext+salt pairs and
// never in plaintext.
type SellerInfo struct {
	ID      uint64 `gorm:"primaryKey"`
	PINHash string `gorm:"type:varchar(64);not null"`
	PINSalt string `gorm:"type:varchar(32);not null"`
	// IdentityCipher holds the Signal account identity (phone number or
	// UUID) this shop sends from.
	IdentityCipher       string `gorm:"not null;default:''"`
	IdentitySalt         string `gorm:"not null;default:''"`
	WalletFile           string `gorm:"not null;default:''"`
	Currency             string `gorm:"type:varchar(8);not null;default:'USD'"`
	CommissionAddrCipher string `gorm:"not null;default:''"`
	CommissionAddrSalt   string `gorm:"not null;default:''"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
