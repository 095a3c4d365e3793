package models

import "time"

// Gift is a single-use credit entitling its holder to one spread reading of a
// specific type. Redemption flips Used exactly once; racing redemptions are
// resolved by a guarded update on the unused row.
type Gift struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	SpreadType string     `gorm:"size:16;index;not null" json:"spread_type"`
	Used       bool       `gorm:"default:false;index" json:"used"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	ReadingID  *uint      `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Gift) TableName() string { return "gifts" }
