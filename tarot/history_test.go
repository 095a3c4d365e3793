package tarot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDigest_Empty(t *testing.T) {
	d := BuildDigest(nil, 0)
	assert.Equal(t, 0, d.TotalReadings)
	assert.Empty(t, d.FavoriteType)
	assert.Zero(t, d.FeedbackRatio)
	assert.Empty(t, d.RecentSummary)
	assert.Empty(t, d.Questions)
}

func TestBuildDigest_CountsAndFavorite(t *testing.T) {
	readings := []PastReading{
		{Type: "daily"},
		{Type: "love"},
		{Type: "daily"},
		{Type: "question", Question: "will it rain"},
	}
	d := BuildDigest(readings, 0)

	assert.Equal(t, 4, d.TotalReadings)
	assert.Equal(t, 2, d.TypeCounts["daily"])
	assert.Equal(t, 1, d.TypeCounts["love"])
	assert.Equal(t, "daily", d.FavoriteType)
	assert.Equal(t, []string{"will it rain"}, d.Questions)
}

func TestBuildDigest_FavoriteTieBreaksOnFirstSeen(t *testing.T) {
	// love and daily both appear twice; love was seen first.
	readings := []PastReading{
		{Type: "love"},
		{Type: "daily"},
		{Type: "love"},
		{Type: "daily"},
	}
	d := BuildDigest(readings, 0)
	assert.Equal(t, "love", d.FavoriteType)

	// Reverse the encounter order and the winner flips.
	readings[0].Type, readings[2].Type = "daily", "daily"
	readings[1].Type, readings[3].Type = "love", "love"
	d = BuildDigest(readings, 0)
	assert.Equal(t, "daily", d.FavoriteType)
}

func TestBuildDigest_FeedbackRatio(t *testing.T) {
	readings := []PastReading{
		{Type: "daily", Feedback: "positive"},
		{Type: "daily", Feedback: "positive"},
		{Type: "daily", Feedback: "negative"},
		{Type: "daily"}, // no feedback, excluded from the ratio
	}
	d := BuildDigest(readings, 0)

	assert.Equal(t, 2, d.Positive)
	assert.Equal(t, 1, d.Negative)
	assert.InDelta(t, 2.0/3.0, d.FeedbackRatio, 1e-9)
}

func TestBuildDigest_WindowCapsAtFifty(t *testing.T) {
	readings := make([]PastReading, 120)
	for i := range readings {
		readings[i] = PastReading{Type: "daily"}
	}
	// The 51st entry onward must not count.
	readings[50].Feedback = "negative"

	d := BuildDigest(readings, 0)
	assert.Equal(t, HistoryWindow, d.TotalReadings)
	assert.Equal(t, HistoryWindow, d.TypeCounts["daily"])
	assert.Zero(t, d.Negative)
}

func TestBuildDigest_ConfigurableWindow(t *testing.T) {
	readings := make([]PastReading, 80)
	for i := range readings {
		readings[i] = PastReading{Type: "daily"}
	}

	d := BuildDigest(readings, 80)
	assert.Equal(t, 80, d.TotalReadings)

	d = BuildDigest(readings, 10)
	assert.Equal(t, 10, d.TotalReadings)
}

func TestBuildDigest_SummaryAndQuestionCaps(t *testing.T) {
	readings := make([]PastReading, 20)
	for i := range readings {
		readings[i] = PastReading{
			Type:     "question",
			Question: fmt.Sprintf("question %d", i),
			Cards:    []PastCard{{Name: "The Fool", Reversed: i%2 == 0}},
		}
	}
	d := BuildDigest(readings, 0)

	assert.Len(t, d.RecentSummary, 5)
	assert.Len(t, d.Questions, 10)
	// Newest-first input means the caps keep the most recent entries.
	assert.Equal(t, "question 0", d.Questions[0])
}

func TestBuildDigest_SummaryNamesCardsWithOrientation(t *testing.T) {
	d := BuildDigest([]PastReading{{
		Type: "daily",
		Cards: []PastCard{
			{Name: "The Tower", Reversed: true},
			{Name: "The Star", Reversed: false},
		},
	}}, 0)
	require.Len(t, d.RecentSummary, 1)
	assert.Contains(t, d.RecentSummary[0], "The Tower (reversed)")
	assert.Contains(t, d.RecentSummary[0], "The Star (upright)")
	assert.Contains(t, d.RecentSummary[0], "daily:")
}
