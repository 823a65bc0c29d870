package bank

import (
	"fmt"

	"foodvote/pkg/platform/sentinel"
)

var (
	// ErrCorruptSnapshot is returned when snapshot bytes do not decode into a
	// structurally valid registry.
	ErrCorruptSnapshot = fmt.Errorf("corrupt registry snapshot: %w", sentinel.ErrCorrupt)

	// ErrFetch is returned when a snapshot cannot be retrieved from its source.
	ErrFetch = fmt.Errorf("registry fetch failed: %w", sentinel.ErrUnavailable)

	// ErrRegressed is returned when a candidate snapshot knows fewer IDs than
	// the one it would replace.
	ErrRegressed = fmt.Errorf("registry snapshot regressed: %w", sentinel.ErrInvalidState)
)

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptSnapshot, fmt.Sprintf(format, args...))
}
