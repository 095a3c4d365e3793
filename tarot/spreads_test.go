package tarot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpreadFor_Sizes(t *testing.T) {
	cases := map[string]int{
		"daily":         1,
		"love":          5,
		"money":         5,
		"future":        5,
		"question":      1,
		"clarification": 1,
	}
	for readingType, want := range cases {
		s, ok := SpreadFor(readingType)
		require.True(t, ok, "missing spread %s", readingType)
		assert.Equal(t, want, s.Size(), "spread %s", readingType)
		assert.Equal(t, readingType, s.Type)
	}
}

func TestSpreadFor_Unknown(t *testing.T) {
	_, ok := SpreadFor("celtic_cross")
	assert.False(t, ok)
}

func TestSpread_PositionsOrderedAndLabeled(t *testing.T) {
	for _, s := range Spreads() {
		for i, p := range s.Positions {
			assert.Equal(t, i, p.Index, "spread %s position %d", s.Type, i)
			assert.NotEmpty(t, p.Label)
			assert.NotEmpty(t, p.Description)
		}
	}
}

func TestSpread_LabelsDistinctWithinSpread(t *testing.T) {
	for _, s := range Spreads() {
		seen := make(map[string]bool)
		for _, p := range s.Positions {
			assert.False(t, seen[p.Label], "spread %s repeats label %q", s.Type, p.Label)
			seen[p.Label] = true
		}
	}
}

func TestGiftSpreads(t *testing.T) {
	assert.ElementsMatch(t, []string{"love", "money", "future"}, GiftSpreadTypes())

	assert.True(t, IsGiftSpread("love"))
	assert.True(t, IsGiftSpread("money"))
	assert.True(t, IsGiftSpread("future"))
	assert.False(t, IsGiftSpread("daily"))
	assert.False(t, IsGiftSpread("question"))
	assert.False(t, IsGiftSpread("clarification"))
	assert.False(t, IsGiftSpread(""))
}

func TestSpreads_ExcludesClarification(t *testing.T) {
	for _, s := range Spreads() {
		assert.NotEqual(t, "clarification", s.Type)
	}
	assert.Len(t, Spreads(), 5)
}
