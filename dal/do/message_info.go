package do

import "time"

// MessageInfo is one append-only message-log row. Direction is "in" or
// "out"; the body is a ciphertext+salt pair.
type MessageInfo struct {
	ID         uint64 `gorm:"primaryKey"`
	ContactID  uint64 `gorm:"index:idx_message_contact;not null"`
	Direction  string `gorm:"type:varchar(4);not null"`
	BodyCipher string `gorm:"not null;default:''"`
	BodySalt   string `gorm:"not null;default:''"`
	// Timestamp is the signal-cli envelope timestamp in epoch millis.
	Timestamp int64 `gorm:"index:idx_message_ts;not null;default:0"`
	Delivered bool  `gorm:"not null;default:false"`
	CreatedAt time.Time
}
