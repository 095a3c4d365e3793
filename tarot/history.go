package tarot

import (
	"fmt"
	"strings"
	"time"
)

// History digest bounds.
const (
	HistoryWindow      = 50 // most recent readings considered
	historySummaryMax  = 5
	historyQuestionMax = 10
)

// PastCard is the minimal view of a drawn card needed for digesting.
type PastCard struct {
	Name     string
	Reversed bool
}

// PastReading is the read-only snapshot of one persisted reading. Callers map
// their storage model into this; the digest never touches the database.
type PastReading struct {
	Type      string
	Question  string
	Feedback  string // "positive", "negative" or empty
	Cards     []PastCard
	CreatedAt time.Time
}

// Digest compresses a user's reading history into the compact form consumed
// by the contextual interpretation strategy.
type Digest struct {
	TotalReadings int            `json:"total_readings"`
	TypeCounts    map[string]int `json:"type_counts"`
	FavoriteType  string         `json:"favorite_type"`
	Positive      int            `json:"positive"`
	Negative      int            `json:"negative"`
	FeedbackRatio float64        `json:"feedback_ratio"`
	RecentSummary []string       `json:"recent_summary"`
	Questions     []string       `json:"questions"`
}

// BuildDigest aggregates readings, expected newest-first, into a Digest.
// Only the first window entries are considered; window <= 0 falls back to
// HistoryWindow. Favorite-type ties break in favor of the type seen first in
// the input.
func BuildDigest(readings []PastReading, window int) Digest {
	if window <= 0 {
		window = HistoryWindow
	}
	if len(readings) > window {
		readings = readings[:window]
	}

	d := Digest{
		TotalReadings: len(readings),
		TypeCounts:    make(map[string]int),
	}

	var typeOrder []string
	for _, r := range readings {
		if _, seen := d.TypeCounts[r.Type]; !seen {
			typeOrder = append(typeOrder, r.Type)
		}
		d.TypeCounts[r.Type]++

		switch r.Feedback {
		case "positive":
			d.Positive++
		case "negative":
			d.Negative++
		}

		if len(d.RecentSummary) < historySummaryMax {
			d.RecentSummary = append(d.RecentSummary, summarize(r))
		}
		if r.Question != "" && len(d.Questions) < historyQuestionMax {
			d.Questions = append(d.Questions, r.Question)
		}
	}

	best := 0
	for _, t := range typeOrder {
		if d.TypeCounts[t] > best {
			best = d.TypeCounts[t]
			d.FavoriteType = t
		}
	}

	if total := d.Positive + d.Negative; total > 0 {
		d.FeedbackRatio = float64(d.Positive) / float64(total)
	}
	return d
}

func summarize(r PastReading) string {
	names := make([]string, 0, len(r.Cards))
	for _, c := range r.Cards {
		names = append(names, fmt.Sprintf("%s (%s)", c.Name, Orientation(c.Reversed)))
	}
	return fmt.Sprintf("%s: %s", r.Type, strings.Join(names, ", "))
}
