package do

import "time"

// ContactInfo is one address-book row. The Signal address is stored as a
// ciphertext+salt pair; AddressDigest is a keyed hash of the plaintext so
// a sender can be looked up without ever storing or querying plaintext.
type ContactInfo struct {
	ID            uint64 `gorm:"primaryKey"`
	AddressCipher string `gorm:"not null"`
	AddressSalt   string `gorm:"not null"`
	AddressDigest string `gorm:"uniqueIndex:unique_idx_contact_digest;type:varchar(64);not null"`
	Alias         string `gorm:"type:varchar(100);not null;default:''"`
	Trusted       bool   `gorm:"not null;default:false"`
	LastSeenAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
