package tarot

import (
	"errors"
	"math/rand"
)

// DeckSize is the fixed number of cards in a tarot deck.
const DeckSize = 78

// DefaultReversalProbability is the chance any drawn card lands reversed.
// Every draw path shares this value; it is configurable at service level.
const DefaultReversalProbability = 0.30

// ErrDeckExhausted is returned when a draw requests more unique cards than the
// catalog has left after exclusions.
var ErrDeckExhausted = errors.New("deck exhausted: not enough cards remain")

// DrawnCard pairs a catalog card with its orientation for one draw.
type DrawnCard struct {
	Card     Card
	Reversed bool
}

// Draw samples count cards uniformly without replacement from the catalog
// minus excludeIDs. Each card's reversed flag is an independent Bernoulli
// draw at reversalProb. The random source is injected so draws are
// reproducible under test.
func (c *Catalog) Draw(rng *rand.Rand, excludeIDs []int, count int, reversalProb float64) ([]DrawnCard, error) {
	if count < 0 {
		return nil, errors.New("draw count must be non-negative")
	}
	excluded := make(map[int]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	remaining := make([]Card, 0, len(c.cards))
	for _, card := range c.cards {
		if _, skip := excluded[card.ID]; !skip {
			remaining = append(remaining, card)
		}
	}
	if count > len(remaining) {
		return nil, ErrDeckExhausted
	}

	// Partial Fisher-Yates: only the first count slots need shuffling.
	drawn := make([]DrawnCard, 0, count)
	for i := 0; i < count; i++ {
		j := i + rng.Intn(len(remaining)-i)
		remaining[i], remaining[j] = remaining[j], remaining[i]
		drawn = append(drawn, DrawnCard{
			Card:     remaining[i],
			Reversed: rng.Float64() < reversalProb,
		})
	}
	return drawn, nil
}
