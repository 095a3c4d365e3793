package models

import "time"

// Reading types. Daily readings are free and limited to one per local calendar
// day; love/money/future spreads are funded by gifts; question readings answer
// a free-form question with a single card.
const (
	ReadingDaily         = "daily"
	ReadingLove          = "love"
	ReadingMoney         = "money"
	ReadingFuture        = "future"
	ReadingQuestion      = "question"
	ReadingClarification = "clarification"
)

// Feedback values accepted on a reading.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// Reading is one completed tarot reading, immutable except for feedback and
// appended clarification cards.
type Reading struct {
	ID             uint          `gorm:"primaryKey" json:"-"`
	PublicID       string        `gorm:"size:36;uniqueIndex;not null" json:"id"`
	UserID         uint          `gorm:"index;not null;uniqueIndex:idx_user_daily" json:"user_id"`
	Type           string        `gorm:"size:16;index;not null" json:"type"`
	DeckTheme      string        `gorm:"size:32" json:"deck_theme"`
	MoonPhase      string        `gorm:"size:24" json:"moon_phase"`
	Question       string        `gorm:"type:text" json:"question,omitempty"`
	Interpretation string        `gorm:"type:text" json:"-"`
	Feedback       *string       `gorm:"size:16" json:"feedback,omitempty"`
	// DayKey is the user-local calendar date (YYYY-MM-DD), set only on daily
	// readings so the unique index enforces one per day. NULL elsewhere.
	DayKey    *string       `gorm:"size:10;uniqueIndex:idx_user_daily" json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	Cards     []ReadingCard `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"cards"`
}

// TableName keeps the table name stable across GORM naming strategies.
func (Reading) TableName() string { return "readings" }

// ReadingCard binds a drawn card to a semantic position within a reading.
// Positions are unique per reading; clarification cards append at max+1.
type ReadingCard struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	ReadingID     uint   `gorm:"index:idx_reading_position,unique;not null" json:"-"`
	CardID        int    `gorm:"not null" json:"card_id"`
	Position      int    `gorm:"index:idx_reading_position,unique;not null" json:"position"`
	Reversed      bool   `json:"reversed"`
	PositionLabel string `gorm:"size:64" json:"position_label"`
}

func (ReadingCard) TableName() string { return "reading_cards" }
