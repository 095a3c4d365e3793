package tarot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const contextualSystemPrompt = `You are an experienced tarot reader. Answer the seeker's question ` +
	`through the single card they drew. Respond with a JSON object containing exactly these string ` +
	`fields and nothing else: "greeting", "card_meaning", "answer", "advice". Every field must be ` +
	`non-empty prose addressed to the seeker.`

// contextualReply is the fixed 4-field shape the backend must return.
type contextualReply struct {
	Greeting    string `json:"greeting"`
	CardMeaning string `json:"card_meaning"`
	Answer      string `json:"answer"`
	Advice      string `json:"advice"`
}

// ContextualGenerator answers free-form question readings through the text
// backend, enriched with the user's history digest. Any transport error or
// malformed response falls back to the templated strategy; the caller always
// receives a complete interpretation.
type ContextualGenerator struct {
	backend  TextBackend
	fallback *TemplatedGenerator
	log      *zap.SugaredLogger
}

// NewContextualGenerator wires the backend and the templated fallback. The
// logger may be nil; failures are then absorbed silently.
func NewContextualGenerator(backend TextBackend, fallback *TemplatedGenerator, log *zap.SugaredLogger) *ContextualGenerator {
	return &ContextualGenerator{backend: backend, fallback: fallback, log: log}
}

// Generate makes a single backend attempt and validates the reply shape
// strictly. No retry: a slow or broken backend must not stack latency.
func (g *ContextualGenerator) Generate(ctx context.Context, req Request) Interpretation {
	interp, err := g.tryBackend(ctx, req)
	if err != nil {
		if g.log != nil {
			g.log.Warnw("text backend failed, using templated fallback", "error", err)
		}
		return g.fallback.Generate(ctx, req)
	}
	return interp
}

func (g *ContextualGenerator) tryBackend(ctx context.Context, req Request) (Interpretation, error) {
	if g.backend == nil {
		return Interpretation{}, fmt.Errorf("no text backend configured")
	}
	if len(req.Cards) != 1 {
		return Interpretation{}, fmt.Errorf("question reading expects exactly 1 card, got %d", len(req.Cards))
	}

	raw, err := g.backend.Complete(ctx, contextualSystemPrompt, buildQuestionPrompt(req))
	if err != nil {
		return Interpretation{}, err
	}

	var reply contextualReply
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &reply); err != nil {
		return Interpretation{}, fmt.Errorf("malformed backend reply: %w", err)
	}
	if reply.Greeting == "" || reply.CardMeaning == "" || reply.Answer == "" || reply.Advice == "" {
		return Interpretation{}, fmt.Errorf("backend reply missing required fields")
	}

	dc := req.Cards[0]
	pos := Position{Index: 0, Label: "answer"}
	if len(req.Spread.Positions) > 0 {
		pos = req.Spread.Positions[0]
	}
	return Interpretation{
		Greeting: reply.Greeting,
		Positions: []PositionText{{
			Position:    pos.Index,
			Label:       pos.Label,
			CardName:    dc.Card.Name,
			Orientation: Orientation(dc.Reversed),
			Text:        reply.CardMeaning,
		}},
		Summary:    reply.Answer,
		Advice:     reply.Advice,
		Keywords:   collectKeywords(req.Cards, 8),
		TimingHint: timingHints[req.MoonPhase],
	}, nil
}

// buildQuestionPrompt assembles the literal question, the drawn card, a
// compact profile and the history digest into one structured prompt.
func buildQuestionPrompt(req Request) string {
	dc := req.Cards[0]
	meaning := dc.Card.MeaningFor(dc.Reversed)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	fmt.Fprintf(&b, "Card drawn: %s (%s arcana, %s)\n", dc.Card.Name, dc.Card.Arcana, Orientation(dc.Reversed))
	fmt.Fprintf(&b, "Stock meaning: %s\n", meaning.General)
	fmt.Fprintf(&b, "Stock advice: %s\n", meaning.Advice)
	fmt.Fprintf(&b, "Moon phase: %s\n", req.MoonPhase)

	p := req.Profile
	var facts []string
	if p.Name != "" {
		facts = append(facts, "name: "+p.Name)
	}
	if p.Age > 0 {
		facts = append(facts, fmt.Sprintf("age: %d", p.Age))
	}
	if p.ZodiacSign != "" {
		facts = append(facts, "zodiac: "+p.ZodiacSign)
	}
	if p.RelationshipStatus != "" {
		facts = append(facts, "relationship: "+p.RelationshipStatus)
	}
	if p.City != "" {
		facts = append(facts, "city: "+p.City)
	}
	if p.DeckTheme != "" {
		facts = append(facts, "deck theme: "+p.DeckTheme)
	}
	if p.Streak > 0 {
		facts = append(facts, fmt.Sprintf("daily streak: %d days", p.Streak))
	}
	if len(facts) > 0 {
		fmt.Fprintf(&b, "\nSeeker: %s\n", strings.Join(facts, "; "))
	}

	if d := req.History; d != nil && d.TotalReadings > 0 {
		fmt.Fprintf(&b, "\nHistory: %d past readings", d.TotalReadings)
		if d.FavoriteType != "" {
			fmt.Fprintf(&b, ", favors %s readings", d.FavoriteType)
		}
		if d.Positive+d.Negative > 0 {
			fmt.Fprintf(&b, ", %.0f%% positive feedback", d.FeedbackRatio*100)
		}
		b.WriteString("\n")
		for _, s := range d.RecentSummary {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		if len(d.Questions) > 0 {
			fmt.Fprintf(&b, "Earlier questions: %s\n", strings.Join(d.Questions, " | "))
		}
	}
	return b.String()
}

// stripCodeFence removes a surrounding markdown fence some backends insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
