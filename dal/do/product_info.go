package do

import "time"

type ProductInfo struct {
	ID          uint64  `gorm:"primaryKey"`
	Name        string  `gorm:"type:varchar(200);not null"`
	Description string  `gorm:"not null;default:''"`
	FiatPrice   float64 `gorm:"not null;default:0"`
	Currency    string  `gorm:"type:varchar(8);not null;default:'USD'"`
	Stock       int     `gorm:"not null;default:0"`
	Active      bool    `gorm:"index:idx_product_active;not null;default:true"`
	// ImagePathCipher holds the optional product image path encrypted at
	// rest, with its per-value salt alongside.
	ImagePathCipher string `gorm:"not null;default:''"`
	ImagePathSalt   string `gorm:"not null;default:''"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
