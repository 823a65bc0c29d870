package search

import (
	"context"
	"log/slog"

	"foodvote/pkg/platform/circuit"
)

// FallbackSink writes to primary and, once the breaker opens after repeated
// primary failures, also hands batches to fallback so a sync never fails on
// a broker outage alone. The primary is still tried on every batch; the
// breaker closes after consecutive successes.
type FallbackSink struct {
	primary  Sink
	fallback Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackSink(primary, fallback Sink, breaker *circuit.Breaker, logger *slog.Logger) *FallbackSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSink{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (f *FallbackSink) Upsert(ctx context.Context, docs []Document) error {
	err := f.primary.Upsert(ctx, docs)
	if err == nil {
		if _, change := f.breaker.RecordSuccess(); change.Closed {
			f.logger.InfoContext(ctx, "search sink recovered", "breaker", f.breaker.Name())
		}
		return nil
	}

	useFallback, change := f.breaker.RecordFailure()
	if change.Opened {
		f.logger.WarnContext(ctx, "search sink circuit opened", "breaker", f.breaker.Name(), "error", err)
	}
	if !useFallback {
		return err
	}
	return f.fallback.Upsert(ctx, docs)
}
