package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a seeker account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Username           string         `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email              string         `gorm:"size:255" json:"email"`
	PasswordHash       string         `gorm:"size:255" json:"-"`
	Name               string         `gorm:"size:64" json:"name"`
	BirthDate          *time.Time     `json:"birth_date"`
	ZodiacSign         string         `gorm:"size:16" json:"zodiac_sign"`
	RelationshipStatus string         `gorm:"size:32" json:"relationship_status"`
	City               string         `gorm:"size:64" json:"city"`
	DeckTheme          string         `gorm:"size:32;default:'classic'" json:"deck_theme"`
	Timezone           string         `gorm:"size:64;default:'UTC'" json:"timezone"`
	Points             int            `gorm:"default:0" json:"points"`
	LastReadingAt      *time.Time     `json:"last_reading_at"`
	ConsecutiveDays    int            `gorm:"default:0" json:"consecutive_days"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	Readings           []Reading      `json:"-"`
}

// Location resolves the user's IANA timezone, falling back to UTC when unset or invalid.
func (u *User) Location() *time.Location {
	if u.Timezone != "" {
		if loc, err := time.LoadLocation(u.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Age derives the user's age in years at the given instant. Returns 0 when the
// birth date is unknown.
func (u *User) Age(at time.Time) int {
	if u.BirthDate == nil {
		return 0
	}
	years := at.Year() - u.BirthDate.Year()
	anniversary := u.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
