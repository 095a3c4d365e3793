// Package tarot implements the reading generation engine: the card catalog,
// draw logic, moon phase calculation, spread definitions, history digests and
// interpretation strategies. It is pure domain logic; persistence and HTTP
// live elsewhere.
package tarot

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed cards.json
var cardsJSON []byte

// Arcana classification.
const (
	ArcanaMajor = "major"
	ArcanaMinor = "minor"
)

// Meaning holds the stock interpretation texts for one orientation of a card.
type Meaning struct {
	General string `json:"general"`
	Love    string `json:"love"`
	Career  string `json:"career"`
	Advice  string `json:"advice"`
}

// Card is one static catalog entry. The catalog is read-only; cards are
// referenced from persisted readings by ID.
type Card struct {
	ID       int      `json:"id"`
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Arcana   string   `json:"arcana"`
	Suit     string   `json:"suit,omitempty"`
	Number   int      `json:"number"`
	Keywords []string `json:"keywords"`
	Element  string   `json:"element"`
	Zodiac   []string `json:"zodiac"`
	Upright  Meaning  `json:"upright"`
	Reversed Meaning  `json:"reversed"`
}

// Orientation returns "upright" or "reversed" for display purposes.
func Orientation(reversed bool) string {
	if reversed {
		return "reversed"
	}
	return "upright"
}

// MeaningFor returns the stock meaning block for the given orientation.
func (c Card) MeaningFor(reversed bool) Meaning {
	if reversed {
		return c.Reversed
	}
	return c.Upright
}

// Catalog is the full 78-card deck, indexed by ID.
type Catalog struct {
	cards []Card
	byID  map[int]Card
}

// NewCatalog parses the embedded card data. The deck is fixed at 78 entries;
// anything else means the embedded data is corrupt.
func NewCatalog() (*Catalog, error) {
	var cards []Card
	if err := json.Unmarshal(cardsJSON, &cards); err != nil {
		return nil, fmt.Errorf("parse card catalog: %w", err)
	}
	if len(cards) != DeckSize {
		return nil, fmt.Errorf("card catalog has %d entries, want %d", len(cards), DeckSize)
	}
	byID := make(map[int]Card, len(cards))
	for _, c := range cards {
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %d in catalog", c.ID)
		}
		byID[c.ID] = c
	}
	return &Catalog{cards: cards, byID: byID}, nil
}

// MustCatalog is NewCatalog for boot paths where a broken embed is fatal.
func MustCatalog() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the full catalog in ID order. Callers must not mutate entries.
func (c *Catalog) All() []Card { return c.cards }

// ByID looks up a single card.
func (c *Catalog) ByID(id int) (Card, bool) {
	card, ok := c.byID[id]
	return card, ok
}

// Size reports the number of cards in the deck.
func (c *Catalog) Size() int { return len(c.cards) }
