package do

import "time"

// NodeInfo is one known monerod daemon endpoint and the health the monitor
// last observed for it.
type NodeInfo struct {
	ID              uint64 `gorm:"primaryKey"`
	Address         string `gorm:"type:varchar(255);not null"`
	Port            int    `gorm:"not null;default:18081"`
	UseProxy        bool   `gorm:"not null;default:false"`
	LastHeight      uint64 `gorm:"not null;default:0"`
	LastReachableAt *time.Time
	Active          bool `gorm:"index:idx_node_active;not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
