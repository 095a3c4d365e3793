package models

import "time"

// CollectionEntry counts how often a user has received a given card. One row
// per (user, card), upserted on every draw that lands in a persisted reading.
type CollectionEntry struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	UserID        uint      `gorm:"uniqueIndex:idx_user_card;not null" json:"user_id"`
	CardID        int       `gorm:"uniqueIndex:idx_user_card;not null" json:"card_id"`
	TimesReceived int       `gorm:"default:1" json:"times_received"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

func (CollectionEntry) TableName() string { return "collection_entries" }
