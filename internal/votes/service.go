package votes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"foodvote/internal/bank/loader"
	"foodvote/internal/counter"
	"foodvote/internal/votes/metrics"
	dErrors "foodvote/pkg/domain-errors"
)

var tracer = otel.Tracer("foodvote/internal/votes")

// Snapshots yields the registry snapshot in service.
type Snapshots interface {
	Current() *loader.Snapshot
}

// Service validates vote submissions against the current registry and
// applies them to the counter store. It holds no locks of its own; batch
// atomicity is the store's job.
type Service struct {
	snapshots Snapshots
	store     counter.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a vote service.
func New(snapshots Snapshots, store counter.Store, opts ...Option) (*Service, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot holder is required for vote service")
	}
	if store == nil {
		return nil, fmt.Errorf("counter store is required for vote service")
	}
	s := &Service{snapshots: snapshots, store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Submit decodes a CBOR vote body, diffs it against the current registry and
// applies the resulting deltas in one store call. Nothing reaches the store
// unless the whole payload is valid.
func (s *Service) Submit(ctx context.Context, body []byte) (*Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSubmitLatency(time.Since(start)) }()

	ctx, span := tracer.Start(ctx, "votes.Submit")
	defer span.End()

	req, err := DecodeRequest(body)
	if err != nil {
		s.metrics.IncrementSubmission("malformed")
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid vote payload")
	}
	return s.apply(ctx, req)
}

// SubmitRequest is Submit for an already decoded request.
func (s *Service) SubmitRequest(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "votes.SubmitRequest")
	defer span.End()
	return s.apply(ctx, req)
}

func (s *Service) apply(ctx context.Context, req Request) (*Result, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "registry not loaded")
	}

	deltas, err := Diff(req, snap.Foods)
	if err != nil {
		s.metrics.IncrementSubmission("malformed")
		s.logger.InfoContext(ctx, "rejected vote payload", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid vote payload")
	}
	if len(deltas) == 0 {
		s.metrics.IncrementSubmission("noop")
		return &Result{}, nil
	}

	batch := make([]counter.Delta, len(deltas))
	up := 0
	for i, d := range deltas {
		batch[i] = counter.Delta{Key: counter.FoodKey(d.FoodID), Direction: int64(d.Direction)}
		if d.Direction > 0 {
			up++
		}
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("votes.deltas", len(batch)))

	applied, err := s.store.ApplyDeltas(ctx, batch)
	if err != nil {
		s.metrics.IncrementSubmission("store_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "counter store failed")
		s.logger.ErrorContext(ctx, "failed to apply vote deltas",
			"deltas", len(batch),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record votes")
	}

	s.metrics.IncrementSubmission("applied")
	s.metrics.ObserveDeltas(up, len(batch)-up, len(batch)-applied)
	return &Result{Changes: len(batch), Applied: applied}, nil
}

// Counts returns the current vote count for each known food ID. Foods with no
// counter yet count as zero.
func (s *Service) Counts(ctx context.Context, ids []uint32) (map[uint32]int64, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "registry not loaded")
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := snap.Foods.Name(id); !ok {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("food %d not found", id))
		}
		keys = append(keys, counter.FoodKey(id))
	}

	vals, err := s.store.Get(ctx, keys)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read votes")
	}

	out := make(map[uint32]int64, len(ids))
	for _, id := range ids {
		out[id] = vals[counter.FoodKey(id)]
	}
	return out, nil
}

// InitializeCounters creates a zero counter for every food in snap that has
// none yet. Existing counts are left as they are. It returns how many foods
// were covered.
func (s *Service) InitializeCounters(ctx context.Context, snap *loader.Snapshot) (int, error) {
	if snap == nil {
		return 0, dErrors.New(dErrors.CodeUnavailable, "registry not loaded")
	}
	keys := make([]string, 0, snap.Foods.Len())
	for id := range snap.Foods {
		if _, ok := snap.Foods.Name(uint32(id)); ok {
			keys = append(keys, counter.FoodKey(uint32(id)))
		}
	}
	if _, err := s.store.Initialize(ctx, keys); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize vote counters")
	}
	s.logger.InfoContext(ctx, "vote counters initialized", "foods", len(keys), "checksum", snap.Checksum)
	return len(keys), nil
}
