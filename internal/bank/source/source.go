// Package source fetches registry snapshots from their distribution point and
// publishes new ones. Errors reaching a source wrap bank.ErrFetch; a missing
// snapshot additionally wraps sentinel.ErrNotFound.
package source

import (
	"context"
	"fmt"

	"foodvote/internal/bank"
	"foodvote/pkg/platform/sentinel"
)

// Source yields the raw bytes of the latest snapshot.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Describe() string
}

// Publisher makes a snapshot available to readers of the matching Source.
// Implementations must never expose a partially written snapshot.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
	Describe() string
}

// Store is a Source that can also publish, as used by the builder.
type Store interface {
	Source
	Publisher
}

func fetchErr(src Source, err error) error {
	return fmt.Errorf("%w: %s: %w", bank.ErrFetch, src.Describe(), err)
}

func notFound(src Source) error {
	return fmt.Errorf("%w: %s: %w", bank.ErrFetch, src.Describe(), sentinel.ErrNotFound)
}
