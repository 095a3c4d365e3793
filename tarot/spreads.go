package tarot

// Position is one named slot within a spread.
type Position struct {
	Index       int    `json:"index"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Spread maps a reading type to its ordered positions. The server catalog is
// authoritative for position counts; clients only render what it declares.
type Spread struct {
	Type      string     `json:"type"`
	Positions []Position `json:"positions"`
}

// Size returns the number of cards the spread draws.
func (s Spread) Size() int { return len(s.Positions) }

var spreads = map[string]Spread{
	"daily": {
		Type: "daily",
		Positions: []Position{
			{0, "card of the day", "The energy that colors this day from sunrise to sleep."},
		},
	},
	"love": {
		Type: "love",
		Positions: []Position{
			{0, "current state", "Where the relationship, or the heart, stands right now."},
			{1, "their feelings", "What the other side carries but may not say."},
			{2, "hidden opportunity", "An opening neither of you has noticed yet."},
			{3, "obstacle", "What stands between you and what you want."},
			{4, "outcome", "Where the current course leads if nothing changes."},
		},
	},
	"money": {
		Type: "money",
		Positions: []Position{
			{0, "current state", "Your material situation as it truly is."},
			{1, "resources", "Assets and strengths you are not fully using."},
			{2, "hidden opportunity", "A source of gain hiding in plain sight."},
			{3, "obstacle", "The habit or circumstance draining the well."},
			{4, "outcome", "The financial horizon on your present course."},
		},
	},
	"future": {
		Type: "future",
		Positions: []Position{
			{0, "roots", "The past influence still shaping events."},
			{1, "present", "The forces active around you today."},
			{2, "hidden current", "What moves beneath the surface, unseen."},
			{3, "near future", "What approaches within the coming cycle."},
			{4, "outcome", "The destination the currents carry you toward."},
		},
	},
	"question": {
		Type: "question",
		Positions: []Position{
			{0, "answer", "The single card drawn against your question."},
		},
	},
	"clarification": {
		Type: "clarification",
		Positions: []Position{
			{0, "clarification", "An additional card deepening an earlier reading."},
		},
	},
}

// SpreadFor returns the spread definition for a reading type.
func SpreadFor(readingType string) (Spread, bool) {
	s, ok := spreads[readingType]
	return s, ok
}

// Spreads returns every spread that can start a reading (clarification is
// append-only and excluded).
func Spreads() []Spread {
	out := make([]Spread, 0, len(spreads))
	for _, t := range []string{"daily", "love", "money", "future", "question"} {
		out = append(out, spreads[t])
	}
	return out
}

// GiftSpreadTypes lists the reading types that require a gift to unlock.
func GiftSpreadTypes() []string {
	return []string{"love", "money", "future"}
}

// IsGiftSpread reports whether the type is a gift-funded spread.
func IsGiftSpread(readingType string) bool {
	switch readingType {
	case "love", "money", "future":
		return true
	}
	return false
}
