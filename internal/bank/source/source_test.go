package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodvote/internal/bank"
	"foodvote/pkg/platform/sentinel"
)

func TestFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.bin")
	f := NewFile(path)

	t.Run("missing file is not found", func(t *testing.T) {
		_, err := f.Fetch(ctx)
		assert.ErrorIs(t, err, bank.ErrFetch)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("publish then fetch", func(t *testing.T) {
		require.NoError(t, f.Publish(ctx, []byte("v1")))
		data, err := f.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), data)
	})

	t.Run("publish replaces without leaving temp files", func(t *testing.T) {
		require.NoError(t, f.Publish(ctx, []byte("v2")))
		data, err := f.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestHTTP(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("snapshot"))
		}))
		defer srv.Close()

		data, err := NewHTTP(srv.URL, time.Second).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("snapshot"), data)
	})

	t.Run("server error is retried once", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("second try"))
		}))
		defer srv.Close()

		data, err := NewHTTP(srv.URL, time.Second, WithRetries(1, time.Millisecond)).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("second try"), data)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("retries are bounded", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewHTTP(srv.URL, time.Second, WithRetries(1, time.Millisecond)).Fetch(ctx)
		assert.ErrorIs(t, err, bank.ErrFetch)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("not found is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		_, err := NewHTTP(srv.URL, time.Second).Fetch(ctx)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("timeout surfaces as fetch error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := NewHTTP(srv.URL, 20*time.Millisecond, WithRetries(0, 0)).Fetch(ctx)
		assert.ErrorIs(t, err, bank.ErrFetch)
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	_, err := m.Fetch(ctx)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, m.Publish(ctx, []byte("x")))
	data, err := m.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	m.FailWith(errors.New("network down"))
	_, err = m.Fetch(ctx)
	assert.ErrorIs(t, err, bank.ErrFetch)
	assert.Equal(t, 3, m.Fetches())
}
