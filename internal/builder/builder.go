// Package builder grows the registry from the dining menu feed and publishes
// the resulting snapshot.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"foodvote/internal/bank"
	"foodvote/internal/bank/source"
	"foodvote/internal/menu"
	"foodvote/pkg/platform/sentinel"
)

const (
	dateLayout         = "2006-01-02"
	defaultConcurrency = 4
	defaultFetchBudget = 2 * time.Minute
)

// ErrNothingFetched is returned when no date in the range could be fetched.
// The existing snapshot is left untouched.
var ErrNothingFetched = errors.New("no menu date could be fetched")

// Options selects the date window scanned around Today.
type Options struct {
	DaysBefore int
	DaysAfter  int
	Today      time.Time
	// Compress wraps the published snapshot in a zstd frame.
	Compress bool
	// DryRun builds and validates the snapshot without publishing it.
	DryRun bool
}

// Report summarizes one build run.
type Report struct {
	NewFoods       int      `json:"new_foods"`
	NewLocations   int      `json:"new_locations"`
	Skipped        int      `json:"skipped"`
	Dropped        int      `json:"dropped"`
	DatesOK        []string `json:"dates_ok"`
	DatesFailed    []string `json:"dates_failed"`
	TotalFoods     int      `json:"total_foods"`
	TotalLocations int      `json:"total_locations"`
	Checksum       string   `json:"checksum"`
	Bytes          int      `json:"bytes"`
	Published      bool     `json:"published"`
}

// Builder is a single-writer batch job; it must not run concurrently with
// itself against the same store.
type Builder struct {
	feed        menu.Feed
	store       source.Store
	logger      *slog.Logger
	concurrency int
	fetchBudget time.Duration
	now         func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithConcurrency bounds parallel feed requests.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithFetchBudget bounds the time spent fetching the whole date range.
func WithFetchBudget(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.fetchBudget = d
		}
	}
}

// New creates a builder reading menus from feed and reading and publishing
// snapshots through store.
func New(feed menu.Feed, store source.Store, opts ...Option) (*Builder, error) {
	if feed == nil {
		return nil, fmt.Errorf("menu feed is required for builder")
	}
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required for builder")
	}
	b := &Builder{
		feed:        feed,
		store:       store,
		concurrency: defaultConcurrency,
		fetchBudget: defaultFetchBudget,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b, nil
}

type dayResult struct {
	date  string
	items []bank.MenuItem
	err   error
}

// Run loads the current registry, merges every date in
// [Today-DaysBefore, Today+DaysAfter] and publishes once the whole range has
// been processed. A date that fails to fetch is reported and skipped.
func (b *Builder) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.DaysBefore < 0 || opts.DaysAfter < 0 {
		return nil, fmt.Errorf("day window must not be negative: before=%d after=%d", opts.DaysBefore, opts.DaysAfter)
	}
	today := opts.Today
	if today.IsZero() {
		today = b.now()
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	reg, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Dropped: reg.Canonicalize()}
	if report.Dropped > 0 {
		b.logger.WarnContext(ctx, "canonicalize dropped registry entries", "dropped", report.Dropped)
	}

	days, err := b.fetchRange(ctx, today, opts.DaysBefore, opts.DaysAfter)
	if err != nil {
		return nil, err
	}

	todayKey := today.Format(dateLayout)
	fetchedToday := false
	for _, day := range days {
		if day.err != nil {
			b.logger.WarnContext(ctx, "menu fetch failed, skipping date", "date", day.date, "error", day.err)
			report.DatesFailed = append(report.DatesFailed, day.date)
			continue
		}
		var res bank.MergeResult
		if day.date == todayKey {
			res = reg.MergeToday(day.date, day.items)
			fetchedToday = true
		} else {
			res = reg.Merge(day.items, false)
		}
		report.NewFoods += res.NewFoods
		report.NewLocations += res.NewLocations
		report.Skipped += res.Skipped
		report.DatesOK = append(report.DatesOK, day.date)
		b.logger.DebugContext(ctx, "merged menu date",
			"date", day.date,
			"items", len(day.items),
			"new_foods", res.NewFoods,
			"new_locations", res.NewLocations,
		)
	}
	if len(report.DatesOK) == 0 {
		return report, fmt.Errorf("%w: %d dates failed", ErrNothingFetched, len(report.DatesFailed))
	}
	if !fetchedToday && reg.Today != nil && reg.Today.Date != todayKey {
		// A menu from another day must not be served as today's.
		reg.Today = nil
	}

	reg.UpdatedAt = b.now().UTC()
	data, err := b.encode(reg, opts.Compress)
	if err != nil {
		return report, err
	}
	report.TotalFoods = len(reg.Foods)
	report.TotalLocations = len(reg.Locations)
	report.Checksum = bank.Checksum(data)
	report.Bytes = len(data)

	if opts.DryRun {
		return report, nil
	}
	if err := b.store.Publish(ctx, data); err != nil {
		return report, fmt.Errorf("publish snapshot to %s: %w", b.store.Describe(), err)
	}
	report.Published = true
	b.logger.InfoContext(ctx, "registry published",
		"target", b.store.Describe(),
		"checksum", report.Checksum,
		"foods", report.TotalFoods,
		"locations", report.TotalLocations,
		"new_foods", report.NewFoods,
		"new_locations", report.NewLocations,
		"dates_failed", len(report.DatesFailed),
	)
	return report, nil
}

func (b *Builder) load(ctx context.Context) (*bank.Registry, error) {
	data, err := b.store.Fetch(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		b.logger.InfoContext(ctx, "no existing registry, starting empty", "source", b.store.Describe())
		return bank.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load existing registry: %w", err)
	}
	reg, err := bank.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load existing registry: %w", err)
	}
	return reg, nil
}

// fetchRange fetches all dates concurrently and returns results in date
// order so ID assignment does not depend on response timing.
func (b *Builder) fetchRange(parent context.Context, today time.Time, before, after int) ([]dayResult, error) {
	ctx, cancel := context.WithTimeout(parent, b.fetchBudget)
	defer cancel()

	days := make([]dayResult, 0, before+after+1)
	for offset := -before; offset <= after; offset++ {
		days = append(days, dayResult{date: today.AddDate(0, 0, offset).Format(dateLayout)})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range days {
		date := today.AddDate(0, 0, i-before)
		g.Go(func() error {
			days[i].items, days[i].err = b.feed.Fetch(gctx, date)
			return nil
		})
	}
	_ = g.Wait()

	// Running out of budget only fails the dates still in flight.
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

// encode serializes reg and decodes the result again so a structurally
// invalid snapshot is never published.
func (b *Builder) encode(reg *bank.Registry, compress bool) ([]byte, error) {
	encode := bank.Encode
	if compress {
		encode = bank.EncodeCompressed
	}
	data, err := encode(reg)
	if err != nil {
		return nil, fmt.Errorf("encode registry: %w", err)
	}
	check, err := bank.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("encoded registry failed verification: %w", err)
	}
	if check.NextFoodID != reg.NextFoodID || len(check.Foods) != len(reg.Foods) {
		return nil, fmt.Errorf("encoded registry failed verification: %w", bank.ErrCorruptSnapshot)
	}
	return data, nil
}
