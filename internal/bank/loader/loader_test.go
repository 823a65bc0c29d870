package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"foodvote/internal/bank"
	"foodvote/internal/bank/source"
	"foodvote/pkg/platform/sentinel"
)

func registryWith(items ...string) *bank.Registry {
	reg := bank.New()
	menu := make([]bank.MenuItem, 0, len(items))
	for _, it := range items {
		menu = append(menu, bank.MenuItem{Location: "Wiley", Item: it})
	}
	reg.MergeToday("2025-11-14", menu)
	return reg
}

func encode(t *testing.T, reg *bank.Registry) []byte {
	t.Helper()
	data, err := bank.Encode(reg)
	require.NoError(t, err)
	return data
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestFetchBuildsLookups(t *testing.T) {
	src := source.NewMemory(encode(t, registryWith("Pizza", "Salad")))

	snap, err := Fetch(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, bank.Lookup{"pizza", "salad"}, snap.Foods)
	assert.Equal(t, bank.Lookup{"wiley"}, snap.Locations)
	assert.NotEmpty(t, snap.Checksum)
	assert.False(t, snap.LoadedAt.IsZero())

	food, ok := snap.Food(1)
	require.True(t, ok)
	assert.Equal(t, "salad", food.Name)
	assert.Equal(t, "wiley", food.Location)

	_, ok = snap.Food(2)
	assert.False(t, ok)

	loc, ok := snap.Location(0)
	require.True(t, ok)
	assert.Equal(t, "wiley", loc.Name)
}

func TestFetchFailures(t *testing.T) {
	t.Run("missing snapshot", func(t *testing.T) {
		_, err := Fetch(context.Background(), source.NewMemory(nil))
		assert.ErrorIs(t, err, bank.ErrFetch)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		_, err := Fetch(context.Background(), source.NewMemory([]byte("garbage")))
		assert.ErrorIs(t, err, bank.ErrCorruptSnapshot)
	})
}

func TestHolderSwap(t *testing.T) {
	first, err := FromRegistry(registryWith("Pizza"))
	require.NoError(t, err)
	second, err := FromRegistry(registryWith("Pizza", "Salad"))
	require.NoError(t, err)

	h := NewHolder(first)
	assert.Same(t, first, h.Current())

	prev := h.Swap(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, h.Current())

	// A reader holding the old snapshot keeps a consistent view.
	assert.Equal(t, 1, prev.Foods.Len())
}

func TestHolderConcurrentReaders(t *testing.T) {
	snaps := make([]*Snapshot, 0, 3)
	for _, items := range [][]string{{"Pizza"}, {"Pizza", "Salad"}, {"Pizza", "Salad", "Soup"}} {
		s, err := FromRegistry(registryWith(items...))
		require.NoError(t, err)
		snaps = append(snaps, s)
	}
	h := NewHolder(snaps[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := h.Current()
				// Lookup and registry always belong to the same version.
				assert.Equal(t, int(s.Registry.NextFoodID), s.Foods.Len())
			}
		}()
	}
	for i := range 100 {
		h.Swap(snaps[i%len(snaps)])
	}
	close(stop)
	wg.Wait()
}

// =============================================================================
// Reloader Test Suite
// =============================================================================

type ReloaderSuite struct {
	suite.Suite
	src      *source.Memory
	holder   *Holder
	reloader *Reloader
	swaps    []*Snapshot
}

func TestReloaderSuite(t *testing.T) {
	suite.Run(t, new(ReloaderSuite))
}

func (s *ReloaderSuite) SetupTest() {
	data := encode(s.T(), registryWith("Pizza", "Salad"))
	s.src = source.NewMemory(data)
	initial, err := FromBytes(data)
	s.Require().NoError(err)
	s.holder = NewHolder(initial)
	s.swaps = nil

	s.reloader, err = NewReloader(s.src, s.holder,
		WithInterval(20*time.Millisecond),
		WithBackoff(10*time.Millisecond, 40*time.Millisecond),
		OnSwap(func(_ context.Context, _, next *Snapshot) {
			s.swaps = append(s.swaps, next)
		}),
	)
	s.Require().NoError(err)
}

func (s *ReloaderSuite) TestNewReloaderValidation() {
	_, err := NewReloader(nil, s.holder)
	s.Error(err)

	_, err = NewReloader(s.src, nil)
	s.Error(err)

	_, err = NewReloader(s.src, NewHolder(nil))
	s.Error(err)
}

func (s *ReloaderSuite) TestReloadUnchangedKeepsSnapshot() {
	before := s.holder.Current()

	swapped, err := s.reloader.Reload(context.Background())

	s.Require().NoError(err)
	s.False(swapped)
	s.Same(before, s.holder.Current())
	s.Empty(s.swaps)
}

func (s *ReloaderSuite) TestReloadSwapsGrownRegistry() {
	s.Require().NoError(s.src.Publish(context.Background(), encode(s.T(), registryWith("Pizza", "Salad", "Soup"))))

	swapped, err := s.reloader.Reload(context.Background())

	s.Require().NoError(err)
	s.True(swapped)
	s.Equal(3, s.holder.Current().Foods.Len())
	s.Require().Len(s.swaps, 1)
	s.Same(s.holder.Current(), s.swaps[0])
}

func (s *ReloaderSuite) TestReloadFailuresKeepSnapshot() {
	before := s.holder.Current()

	s.Run("fetch error", func() {
		s.src.FailWith(errors.New("connection refused"))
		defer s.src.FailWith(nil)

		_, err := s.reloader.Reload(context.Background())
		s.ErrorIs(err, bank.ErrFetch)
		s.Same(before, s.holder.Current())
	})

	s.Run("corrupt snapshot", func() {
		s.Require().NoError(s.src.Publish(context.Background(), []byte{0xa1, 0x01}))

		_, err := s.reloader.Reload(context.Background())
		s.ErrorIs(err, bank.ErrCorruptSnapshot)
		s.Same(before, s.holder.Current())
	})

	s.Run("regressed registry", func() {
		s.Require().NoError(s.src.Publish(context.Background(), encode(s.T(), registryWith("Pizza"))))

		_, err := s.reloader.Reload(context.Background())
		s.ErrorIs(err, bank.ErrRegressed)
		s.Same(before, s.holder.Current())
	})

	s.Empty(s.swaps)
}

func (s *ReloaderSuite) TestBackoffIsBounded() {
	s.Equal(10*time.Millisecond, s.reloader.backoff(1))
	s.Equal(20*time.Millisecond, s.reloader.backoff(2))
	s.Equal(40*time.Millisecond, s.reloader.backoff(3))
	s.Equal(40*time.Millisecond, s.reloader.backoff(10))
}

func (s *ReloaderSuite) TestRunPicksUpNewSnapshot() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.reloader.Run(ctx) }()

	s.Require().NoError(s.src.Publish(ctx, encode(s.T(), registryWith("Pizza", "Salad", "Soup"))))
	s.Eventually(func() bool {
		return s.holder.Current().Foods.Len() == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(<-done)
}

func (s *ReloaderSuite) TestRunRecoversAfterFailures() {
	s.src.FailWith(errors.New("unavailable"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.reloader.Run(ctx) }()

	s.Eventually(func() bool { return s.src.Fetches() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Equal(2, s.holder.Current().Foods.Len(), "failures keep the prior snapshot")

	s.Require().NoError(s.src.Publish(ctx, encode(s.T(), registryWith("Pizza", "Salad", "Soup"))))
	s.src.FailWith(nil)
	s.Eventually(func() bool {
		return s.holder.Current().Foods.Len() == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(<-done)
}

func TestRunReloadsOnFileReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.bin")
	require.NoError(t, os.WriteFile(path, encode(t, registryWith("Pizza")), 0o644))

	file := source.NewFile(path)
	initial, err := Fetch(context.Background(), file)
	require.NoError(t, err)
	holder := NewHolder(initial)

	r, err := NewReloader(file, holder, WithInterval(time.Hour), WithWatch(path))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// Give the watcher a moment to register before replacing the file.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, file.Publish(ctx, encode(t, registryWith("Pizza", "Salad"))))

	assert.Eventually(t, func() bool {
		return holder.Current().Foods.Len() == 2
	}, 3*time.Second, 10*time.Millisecond)
}
