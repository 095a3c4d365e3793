package tarot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// TemplatedGenerator composes interpretations from phrase pools. It is the
// strategy for spread readings and the fallback for everything else, so it
// never fails and never blocks.
type TemplatedGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplatedGenerator builds a generator around an injected random source
// so template choice is reproducible under test.
func NewTemplatedGenerator(rng *rand.Rand) *TemplatedGenerator {
	return &TemplatedGenerator{rng: rng}
}

// Per-type pools. Placeholders: {card}, {label}, {meaning}, {advice}, {name},
// {zodiac}, {orientation}. {name} and {zodiac} render with leading
// connectors stripped when the profile lacks them.
var positionPools = map[string][]string{
	"daily": {
		"Your card of the day is {card}, {orientation}. {meaning}",
		"{card} greets you this morning{for_name}. {meaning}",
		"Today the deck offers {card} ({orientation}). {meaning}",
	},
	"love": {
		"In the place of {label} lies {card}, {orientation}. {meaning}",
		"{card} occupies {label}{for_name}. {meaning}",
		"For {label}, the cards chose {card} ({orientation}). {meaning}",
	},
	"money": {
		"{card} ({orientation}) marks your {label}. {meaning}",
		"In {label}: {card}, drawn {orientation}. {meaning}",
		"The position of {label} holds {card}. {meaning}",
	},
	"future": {
		"At {label} stands {card}, {orientation}. {meaning}",
		"{card} turns up in {label}{for_name}. {meaning}",
		"The current of {label} carries {card} ({orientation}). {meaning}",
	},
	"question": {
		"Against your question the deck answers with {card}, {orientation}. {meaning}",
		"One card rose to meet your question: {card} ({orientation}). {meaning}",
	},
	"clarification": {
		"To clarify, the deck adds {card}, {orientation}. {meaning}",
		"A further card steps forward: {card} ({orientation}). {meaning}",
	},
}

var greetingPools = map[string][]string{
	MoonNew:            {"Under a new moon{comma_name}, beginnings are close to the surface."},
	MoonWaxingCrescent: {"The crescent grows{comma_name}; so does what you planted."},
	MoonFirstQuarter:   {"A first-quarter moon{comma_name} asks for a decision."},
	MoonWaxingGibbous:  {"The moon swells toward full{comma_name}; momentum is with you."},
	MoonFull:           {"Under the full moon{comma_name}, little stays hidden."},
	MoonWaningGibbous:  {"The moon begins to wane{comma_name}; time to harvest what ripened."},
	MoonLastQuarter:    {"A last-quarter moon{comma_name} favors letting go."},
	MoonWaningCrescent: {"The old moon thins{comma_name}; rest before the next turn."},
}

var timingHints = map[string]string{
	MoonNew:            "Seeds set now take root within one lunar cycle.",
	MoonWaxingCrescent: "Expect movement before the moon reaches full.",
	MoonFirstQuarter:   "The coming week will force the choice into the open.",
	MoonWaxingGibbous:  "Matters come to a head within days.",
	MoonFull:           "What this reading names is already at its peak.",
	MoonWaningGibbous:  "Results settle as the moon wanes.",
	MoonLastQuarter:    "Closure arrives before the next new moon.",
	MoonWaningCrescent: "Hold still; the cycle resets shortly.",
}

// Generate renders one phrase per card/position, a weighed summary, advice
// and keywords. It degrades gracefully when profile fields are absent.
func (g *TemplatedGenerator) Generate(_ context.Context, req Request) Interpretation {
	pool := positionPools[req.Type]
	if len(pool) == 0 {
		pool = positionPools["daily"]
	}

	out := Interpretation{
		Greeting:   g.greeting(req),
		Positions:  make([]PositionText, 0, len(req.Cards)),
		Keywords:   collectKeywords(req.Cards, 8),
		TimingHint: timingHints[req.MoonPhase],
	}

	majors, reversed := 0, 0
	for i, dc := range req.Cards {
		pos := Position{Index: i, Label: "card"}
		if i < len(req.Spread.Positions) {
			pos = req.Spread.Positions[i]
		}
		out.Positions = append(out.Positions, PositionText{
			Position:    pos.Index,
			Label:       pos.Label,
			CardName:    dc.Card.Name,
			Orientation: Orientation(dc.Reversed),
			Text:        g.render(g.pick(pool), dc, pos, req),
		})
		if dc.Card.Arcana == ArcanaMajor {
			majors++
		}
		if dc.Reversed {
			reversed++
		}
	}

	out.Summary = summaryFor(req, majors, reversed)
	out.Advice = adviceFor(req)
	return out
}

func (g *TemplatedGenerator) pick(pool []string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return pool[g.rng.Intn(len(pool))]
}

func (g *TemplatedGenerator) greeting(req Request) string {
	pool, ok := greetingPools[req.MoonPhase]
	if !ok {
		pool = greetingPools[MoonNew]
	}
	text := g.pick(pool)
	if req.Profile.Name != "" {
		text = strings.ReplaceAll(text, "{comma_name}", ", "+req.Profile.Name)
	} else {
		text = strings.ReplaceAll(text, "{comma_name}", "")
	}
	if req.Profile.ZodiacSign != "" {
		text += fmt.Sprintf(" The cards lean kindly toward %s today.", req.Profile.ZodiacSign)
	}
	return text
}

func (g *TemplatedGenerator) render(tmpl string, dc DrawnCard, pos Position, req Request) string {
	meaning := dc.Card.MeaningFor(dc.Reversed)
	forName := ""
	if req.Profile.Name != "" {
		forName = " for " + req.Profile.Name
	}
	r := strings.NewReplacer(
		"{card}", dc.Card.Name,
		"{label}", pos.Label,
		"{orientation}", Orientation(dc.Reversed),
		"{meaning}", meaningField(req.Type, meaning),
		"{for_name}", forName,
	)
	return r.Replace(tmpl)
}

// meaningField picks the stock meaning facet matching the reading's theme.
func meaningField(readingType string, m Meaning) string {
	switch readingType {
	case "love":
		return m.Love
	case "money":
		return m.Career
	default:
		return m.General
	}
}

func summaryFor(req Request, majors, reversed int) string {
	n := len(req.Cards)
	if n == 0 {
		return "The deck stayed silent; draw again when the moment settles."
	}
	var b strings.Builder
	switch {
	case majors*2 >= n && majors > 0:
		b.WriteString("Major arcana dominate this reading: forces larger than daily routine are at work. ")
	case majors > 0:
		b.WriteString("A major arcana card anchors the spread, lending weight to the everyday details around it. ")
	default:
		b.WriteString("The spread is entirely minor arcana: the answer lives in ordinary, workable details. ")
	}
	switch {
	case reversed*2 > n:
		b.WriteString("With most cards reversed, the energy is blocked or turned inward; progress starts with honest naming.")
	case reversed > 0:
		b.WriteString("One reversal tempers the picture, marking the single knot worth untying first.")
	default:
		b.WriteString("Every card fell upright; the path is open and the signals unambiguous.")
	}
	return b.String()
}

func adviceFor(req Request) string {
	if len(req.Cards) == 0 {
		return "Wait for a clearer moment and ask again."
	}
	// The final card's advice text closes the reading.
	last := req.Cards[len(req.Cards)-1]
	advice := last.Card.MeaningFor(last.Reversed).Advice
	if req.Profile.ZodiacSign != "" {
		return fmt.Sprintf("%s As a %s, trust your first instinct here.", advice, req.Profile.ZodiacSign)
	}
	return advice
}

func collectKeywords(cards []DrawnCard, limit int) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, dc := range cards {
		for _, kw := range dc.Card.Keywords {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
