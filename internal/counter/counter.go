// Package counter defines the vote counter store: a flat key -> count table
// whose batch operations are atomic at the store.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrStore reports that the backing store failed a request after connecting.
	ErrStore = errors.New("counter store operation failed")
	// ErrInvalidDelta reports a delta that is not a single-step change.
	ErrInvalidDelta = errors.New("invalid counter delta")
)

// Delta is one signed single-step change to a key.
type Delta struct {
	Key       string
	Direction int64
}

// Store holds vote counts.
//
// Initialize sets every absent key to zero without touching present ones and
// returns the resulting counts. ApplyDeltas applies each delta unless it would
// take the count below zero, in which case that delta alone is skipped; it
// returns how many deltas were applied. Both run as one atomic operation over
// the whole batch. Empty input is a no-op.
type Store interface {
	Initialize(ctx context.Context, keys []string) (map[string]int64, error)
	ApplyDeltas(ctx context.Context, deltas []Delta) (int, error)
	Get(ctx context.Context, keys []string) (map[string]int64, error)
	All(ctx context.Context) (map[string]int64, error)
}

// FoodKey is the counter key for a food ID.
func FoodKey(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseFoodKey is the inverse of FoodKey.
func ParseFoodKey(key string) (uint32, bool) {
	id, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// Validate checks that every delta targets a key and moves it by exactly one.
func Validate(deltas []Delta) error {
	for i, d := range deltas {
		if d.Key == "" {
			return fmt.Errorf("%w: delta %d has no key", ErrInvalidDelta, i)
		}
		if d.Direction != 1 && d.Direction != -1 {
			return fmt.Errorf("%w: delta %d for %q has direction %d", ErrInvalidDelta, i, d.Key, d.Direction)
		}
	}
	return nil
}
