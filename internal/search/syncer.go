// Package search keeps the external search index supplied with current
// food documents: registry metadata joined with live vote counts.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"foodvote/internal/bank/loader"
	"foodvote/internal/counter"
)

var (
	syncDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodvote_search_sync_documents",
		Help: "Documents sent in the last successful search sync",
	})
	syncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodvote_search_sync_failures_total",
		Help: "Search sync attempts that failed",
	})
	syncLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodvote_search_sync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful search sync",
	})
)

const defaultInterval = time.Minute

// Snapshots yields the registry snapshot in service.
type Snapshots interface {
	Current() *loader.Snapshot
}

// Counts reads every vote counter.
type Counts interface {
	All(ctx context.Context) (map[string]int64, error)
}

// Syncer periodically pushes documents for every registered food to a Sink.
type Syncer struct {
	snapshots Snapshots
	counts    Counts
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	timeout   time.Duration
	trigger   chan struct{}
}

// Option configures a Syncer.
type Option func(*Syncer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTimeout bounds a single sync.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a syncer.
func New(snapshots Snapshots, counts Counts, sink Sink, opts ...Option) (*Syncer, error) {
	if snapshots == nil || counts == nil || sink == nil {
		return nil, fmt.Errorf("snapshots, counts and sink are required for search syncer")
	}
	s := &Syncer{
		snapshots: snapshots,
		counts:    counts,
		sink:      sink,
		interval:  defaultInterval,
		timeout:   30 * time.Second,
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Documents joins the current registry with vote counts. Every registered
// food yields a document; a food without a counter has zero votes. Documents
// are ordered by food ID.
func (s *Syncer) Documents(ctx context.Context) ([]Document, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return nil, fmt.Errorf("registry not loaded")
	}
	counts, err := s.counts.All(ctx)
	if err != nil {
		return nil, err
	}

	reg := snap.Registry
	docs := make([]Document, 0, len(reg.Foods))
	for id := range snap.Foods {
		f, ok := snap.Food(uint32(id))
		if !ok {
			continue
		}
		docs = append(docs, documentFor(f, counts[counter.FoodKey(f.ID)], reg.Today, reg.Locations))
	}
	return docs, nil
}

// Sync builds documents and hands them to the sink in one batch.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := s.Documents(ctx)
	if err != nil {
		syncFailures.Inc()
		return 0, fmt.Errorf("build search documents: %w", err)
	}
	if err := s.sink.Upsert(ctx, docs); err != nil {
		syncFailures.Inc()
		return 0, fmt.Errorf("upsert search documents: %w", err)
	}
	syncDocuments.Set(float64(len(docs)))
	syncLastSuccess.SetToCurrentTime()
	return len(docs), nil
}

// Trigger requests a sync as soon as possible, e.g. after a registry swap.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run syncs once immediately, then on every interval tick or trigger, until
// ctx is cancelled. Failures are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if n, err := s.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WarnContext(ctx, "search sync failed", "error", err)
		} else {
			s.logger.DebugContext(ctx, "search sync complete", "documents", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.trigger:
		}
	}
}
