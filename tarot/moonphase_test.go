package tarot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func dayOffset(days float64) time.Time {
	return referenceNewMoon.Add(time.Duration(days * 24 * float64(time.Hour)))
}

func TestMoonPhase_CycleLandmarks(t *testing.T) {
	// Sampled slightly past each landmark to stay clear of bucket boundaries.
	assert.Equal(t, MoonNew, MoonPhase(referenceNewMoon))
	assert.Equal(t, MoonFirstQuarter, MoonPhase(dayOffset(SynodicMonth/4+0.1)))
	assert.Equal(t, MoonFull, MoonPhase(dayOffset(SynodicMonth/2+0.1)))
	assert.Equal(t, MoonLastQuarter, MoonPhase(dayOffset(3*SynodicMonth/4+0.1)))
	assert.Equal(t, MoonWaningCrescent, MoonPhase(dayOffset(SynodicMonth-0.1)))
}

func TestMoonPhase_AllEightAppearInOrder(t *testing.T) {
	var got []string
	// Sample the middle of each bucket across one cycle.
	for i := 0; i < 8; i++ {
		phase := MoonPhase(dayOffset((float64(i) + 0.5) * SynodicMonth / 8))
		got = append(got, phase)
	}
	assert.Equal(t, MoonPhases(), got)
}

func TestMoonPhase_Periodicity(t *testing.T) {
	base := time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)
	shifted := base.Add(time.Duration(SynodicMonth * 24 * float64(time.Hour)))
	assert.Equal(t, MoonPhase(base), MoonPhase(shifted))
}

func TestMoonPhase_BeforeEpoch(t *testing.T) {
	// Dates before the reference new moon must still map to a valid label.
	old := time.Date(1969, time.July, 20, 20, 17, 0, 0, time.UTC)
	phase := MoonPhase(old)
	assert.Contains(t, MoonPhases(), phase)
}

func TestMoonPhase_Deterministic(t *testing.T) {
	at := time.Date(2026, time.September, 1, 9, 30, 0, 0, time.UTC)
	first := MoonPhase(at)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, MoonPhase(at))
	}
}

func TestMoonPhases_Labels(t *testing.T) {
	labels := MoonPhases()
	assert.Len(t, labels, 8)

	seen := make(map[string]bool)
	for _, l := range labels {
		assert.False(t, seen[l], "duplicate label %s", l)
		seen[l] = true
	}
}
