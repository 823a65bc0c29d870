package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"foodvote/internal/bank"
	"foodvote/internal/bank/source"
)

const (
	defaultInterval   = 5 * time.Minute
	defaultRetryDelay = 5 * time.Second
	defaultMaxBackoff = 5 * time.Minute
	watchDebounce     = 250 * time.Millisecond
)

// SwapHook runs after a new snapshot is installed. Hooks run on the reloader's
// goroutine and should hand long work off.
type SwapHook func(ctx context.Context, prev, next *Snapshot)

// Reloader periodically refetches the registry and swaps it into a Holder.
// A failed reload never disturbs the snapshot in service.
type Reloader struct {
	src        source.Source
	holder     *Holder
	logger     *slog.Logger
	metrics    *Metrics
	interval   time.Duration
	retryDelay time.Duration
	maxBackoff time.Duration
	watchPath  string
	hooks      []SwapHook
	trigger    chan struct{}
}

// Option configures a Reloader.
type Option func(*Reloader)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reloader) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Reloader) {
		r.metrics = m
	}
}

// WithInterval sets the time between successful reloads.
func WithInterval(d time.Duration) Option {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBackoff bounds the retry schedule after failures. The delay starts at
// initial and doubles up to max.
func WithBackoff(initial, max time.Duration) Option {
	return func(r *Reloader) {
		if initial > 0 {
			r.retryDelay = initial
		}
		if max >= r.retryDelay {
			r.maxBackoff = max
		}
	}
}

// WithWatch reloads as soon as the snapshot file at path is replaced.
func WithWatch(path string) Option {
	return func(r *Reloader) {
		r.watchPath = path
	}
}

// OnSwap registers a hook that runs after every successful swap.
func OnSwap(hook SwapHook) Option {
	return func(r *Reloader) {
		r.hooks = append(r.hooks, hook)
	}
}

// NewReloader creates a reloader for holder fed from src.
func NewReloader(src source.Source, holder *Holder, opts ...Option) (*Reloader, error) {
	if src == nil {
		return nil, fmt.Errorf("source is required for registry reloader")
	}
	if holder == nil || holder.Current() == nil {
		return nil, fmt.Errorf("an initialized holder is required for registry reloader")
	}
	r := &Reloader{
		src:        src,
		holder:     holder,
		interval:   defaultInterval,
		retryDelay: defaultRetryDelay,
		maxBackoff: defaultMaxBackoff,
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Trigger requests an immediate reload. Extra requests while one is pending
// are coalesced.
func (r *Reloader) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Reload performs one fetch-and-swap attempt. It reports whether a new
// snapshot was installed.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	data, err := r.src.Fetch(ctx)
	if err != nil {
		r.metrics.IncrementReload("failed")
		return false, err
	}

	prev := r.holder.Current()
	if bank.Checksum(data) == prev.Checksum {
		r.metrics.IncrementReload("unchanged")
		return false, nil
	}

	next, err := FromBytes(data)
	if err != nil {
		r.metrics.IncrementReload("failed")
		return false, err
	}
	if next.Registry.NextFoodID < prev.Registry.NextFoodID ||
		next.Registry.NextLocationID < prev.Registry.NextLocationID {
		r.metrics.IncrementReload("rejected")
		return false, fmt.Errorf("%w: food ids %d -> %d, location ids %d -> %d", bank.ErrRegressed,
			prev.Registry.NextFoodID, next.Registry.NextFoodID,
			prev.Registry.NextLocationID, next.Registry.NextLocationID)
	}

	r.holder.Swap(next)
	r.metrics.IncrementReload("swapped")
	r.metrics.ObserveSnapshot(next)
	r.logger.InfoContext(ctx, "registry reloaded",
		"source", r.src.Describe(),
		"checksum", next.Checksum,
		"foods", len(next.Registry.Foods),
		"new_foods", int(next.Registry.NextFoodID-prev.Registry.NextFoodID),
	)
	for _, hook := range r.hooks {
		hook(ctx, prev, next)
	}
	return true, nil
}

// Run reloads on the configured interval until ctx is cancelled. After a
// failure the next attempt follows the backoff schedule instead.
func (r *Reloader) Run(ctx context.Context) error {
	if r.watchPath != "" {
		stop, err := r.watch(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "registry file watch disabled", "path", r.watchPath, "error", err)
		} else {
			defer stop()
		}
	}

	failures := 0
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-r.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := r.Reload(ctx); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			failures++
			delay := r.backoff(failures)
			r.logger.WarnContext(ctx, "registry reload failed, keeping current snapshot",
				"source", r.src.Describe(),
				"error", err,
				"attempt", failures,
				"retry_in", delay,
			)
			timer.Reset(delay)
			continue
		}
		failures = 0
		timer.Reset(r.interval)
	}
}

func (r *Reloader) backoff(failures int) time.Duration {
	delay := r.retryDelay
	for i := 1; i < failures && delay < r.maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, r.maxBackoff)
}

// watch observes the snapshot's directory, since publishers replace the file
// by rename rather than writing it in place.
func (r *Reloader) watch(ctx context.Context) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target := filepath.Clean(r.watchPath)
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		var debounce <-chan time.Time
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				debounce = time.After(watchDebounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.WarnContext(ctx, "registry file watch error", "error", err)
			case <-debounce:
				debounce = nil
				r.Trigger()
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Close()
	}, nil
}
