package tarot

import "context"

// Profile is the compact view of a user consumed by interpretation. Every
// field is optional; strategies degrade gracefully when fields are empty.
type Profile struct {
	Name               string `json:"name,omitempty"`
	Age                int    `json:"age,omitempty"`
	ZodiacSign         string `json:"zodiac_sign,omitempty"`
	RelationshipStatus string `json:"relationship_status,omitempty"`
	City               string `json:"city,omitempty"`
	DeckTheme          string `json:"deck_theme,omitempty"`
	Streak             int    `json:"streak,omitempty"`
}

// Request carries everything a strategy needs to produce an interpretation.
type Request struct {
	Type      string
	Cards     []DrawnCard
	Spread    Spread
	Profile   Profile
	MoonPhase string
	Question  string
	History   *Digest
}

// PositionText is the rendered text for one card in its position.
type PositionText struct {
	Position    int    `json:"position"`
	Label       string `json:"label"`
	CardName    string `json:"card_name"`
	Orientation string `json:"orientation"`
	Text        string `json:"text"`
}

// Interpretation is the complete payload returned to a caller. All fields
// except TimingHint are always populated; a reading is never returned with a
// half-rendered interpretation.
type Interpretation struct {
	Greeting   string         `json:"greeting"`
	Positions  []PositionText `json:"positions"`
	Summary    string         `json:"summary"`
	Advice     string         `json:"advice"`
	Keywords   []string       `json:"keywords"`
	TimingHint string         `json:"timing_hint,omitempty"`
}

// Generator produces a complete interpretation for a reading. Implementations
// must always return a fully-formed result; external failures are absorbed
// internally, never surfaced.
type Generator interface {
	Generate(ctx context.Context, req Request) Interpretation
}
