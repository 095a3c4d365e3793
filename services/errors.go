// Package services orchestrates reading creation, gift redemption, feedback
// and clarification on top of the tarot engine and the GORM store.
package services

import "errors"

// Domain errors propagated to controllers as typed, stable-coded failures.
// External generation failures never appear here; they are absorbed inside
// the interpretation layer.
var (
	// ErrNotFound covers missing readings or readings owned by someone else.
	ErrNotFound = errors.New("reading not found")
	// ErrAlreadyExists marks a second daily reading on the same local day.
	ErrAlreadyExists = errors.New("daily reading already exists for today")
	// ErrNoGiftAvailable means no unused gift matches the requested spread.
	ErrNoGiftAvailable = errors.New("no gift available for this spread")
	// ErrConflict is returned to the loser of a racing gift redemption.
	ErrConflict = errors.New("gift was already redeemed")
	// ErrClarificationLimit enforces the per-reading clarification cap.
	ErrClarificationLimit = errors.New("clarification limit reached for this reading")
	// ErrUnknownSpread rejects reading types absent from the spread catalog.
	ErrUnknownSpread = errors.New("unknown spread type")
	// ErrInvalidFeedback rejects feedback values outside positive/negative.
	ErrInvalidFeedback = errors.New("feedback must be positive or negative")
)
