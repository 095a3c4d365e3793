package tarot

import (
	"math"
	"time"
)

// SynodicMonth is the mean length of a lunar cycle in days.
const SynodicMonth = 29.53058867

// referenceNewMoon is the new moon of 2000-01-06 18:14 UTC, the epoch from
// which lunar age is counted.
var referenceNewMoon = time.Date(2000, time.January, 6, 18, 14, 0, 0, time.UTC)

// Moon phase labels, in cycle order starting at the new moon.
const (
	MoonNew            = "new"
	MoonWaxingCrescent = "waxing_crescent"
	MoonFirstQuarter   = "first_quarter"
	MoonWaxingGibbous  = "waxing_gibbous"
	MoonFull           = "full"
	MoonWaningGibbous  = "waning_gibbous"
	MoonLastQuarter    = "last_quarter"
	MoonWaningCrescent = "waning_crescent"
)

var moonPhases = [8]string{
	MoonNew,
	MoonWaxingCrescent,
	MoonFirstQuarter,
	MoonWaxingGibbous,
	MoonFull,
	MoonWaningGibbous,
	MoonLastQuarter,
	MoonWaningCrescent,
}

// MoonPhase buckets the lunar age of t into one of eight equal-width phases.
// Pure and deterministic; this is the single canonical implementation for
// every caller.
func MoonPhase(t time.Time) string {
	days := t.Sub(referenceNewMoon).Hours() / 24
	age := math.Mod(days, SynodicMonth)
	if age < 0 {
		age += SynodicMonth
	}
	bucket := int(age / (SynodicMonth / 8))
	if bucket > 7 {
		bucket = 7
	}
	return moonPhases[bucket]
}

// MoonPhases returns all eight labels in cycle order.
func MoonPhases() []string {
	return moonPhases[:]
}
