// Package store provides counter.Store implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"foodvote/internal/counter"
)

var (
	scriptDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodvote_counter_script_duration_ms",
		Help:    "Latency of counter store scripts in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	}, []string{"op"})

	tracer = otel.Tracer("foodvote/internal/counter/store")
)

// DefaultHashKey holds every food counter as one field per food.
const DefaultHashKey = "food:votes"

// initializeScript sets absent fields to 0 and returns the value of every
// field in ARGV order. Every present field is checked before anything is
// written; a non-integer value fails the whole call with no writes.
var initializeScript = redis.NewScript(`
local cur = {}
for i, field in ipairs(ARGV) do
  local raw = redis.call('HGET', KEYS[1], field)
  if raw then
    if not string.match(raw, '^%-?%d+$') then
      return redis.error_reply('counter ' .. field .. ' is not an integer')
    end
    cur[i] = tonumber(raw)
  end
end
local out = {}
for i, field in ipairs(ARGV) do
  if cur[i] == nil then
    redis.call('HSETNX', KEYS[1], field, 0)
    out[i] = 0
  else
    out[i] = cur[i]
  end
end
return out
`)

// applyScript takes ARGV as (field, direction) pairs and applies each one
// whose result stays non-negative. Returns the number applied. All fields are
// read and checked before the first write.
var applyScript = redis.NewScript(`
local cur = {}
for i = 1, #ARGV, 2 do
  local field = ARGV[i]
  if cur[field] == nil then
    local raw = redis.call('HGET', KEYS[1], field)
    if raw and not string.match(raw, '^%-?%d+$') then
      return redis.error_reply('counter ' .. field .. ' is not an integer')
    end
    cur[field] = tonumber(raw or '0')
  end
end
local applied = 0
for i = 1, #ARGV, 2 do
  local field = ARGV[i]
  local dir = tonumber(ARGV[i + 1])
  if cur[field] + dir >= 0 then
    redis.call('HINCRBY', KEYS[1], field, dir)
    cur[field] = cur[field] + dir
    applied = applied + 1
  end
end
return applied
`)

// RedisStore implements counter.Store on a single Redis hash. Batches run as
// Lua scripts so each is one atomic round trip.
type RedisStore struct {
	client  redis.Cmdable
	hashKey string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithHashKey overrides the hash holding the counters.
func WithHashKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.hashKey = key
		}
	}
}

// NewRedis constructs a Redis-backed counter store.
func NewRedis(client redis.Cmdable, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required for counter store")
	}
	s := &RedisStore{client: client, hashKey: DefaultHashKey}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *RedisStore) Initialize(ctx context.Context, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, end := s.observe(ctx, "initialize", len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	vals, err := initializeScript.Run(ctx, s.client, []string{s.hashKey}, args...).Int64Slice()
	end(err)
	if err != nil {
		return nil, fmt.Errorf("%w: initialize: %w", counter.ErrStore, err)
	}
	if len(vals) != len(keys) {
		return nil, fmt.Errorf("%w: initialize returned %d values for %d keys", counter.ErrStore, len(vals), len(keys))
	}
	for i, k := range keys {
		out[k] = vals[i]
	}
	return out, nil
}

func (s *RedisStore) ApplyDeltas(ctx context.Context, deltas []counter.Delta) (int, error) {
	if len(deltas) == 0 {
		return 0, nil
	}
	if err := counter.Validate(deltas); err != nil {
		return 0, err
	}
	ctx, end := s.observe(ctx, "apply_deltas", len(deltas))
	args := make([]any, 0, len(deltas)*2)
	for _, d := range deltas {
		args = append(args, d.Key, d.Direction)
	}
	applied, err := applyScript.Run(ctx, s.client, []string{s.hashKey}, args...).Int()
	end(err)
	if err != nil {
		return 0, fmt.Errorf("%w: apply deltas: %w", counter.ErrStore, err)
	}
	return applied, nil
}

func (s *RedisStore) Get(ctx context.Context, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, end := s.observe(ctx, "get", len(keys))
	vals, err := s.client.HMGet(ctx, s.hashKey, keys...).Result()
	end(err)
	if err != nil {
		return nil, fmt.Errorf("%w: get: %w", counter.ErrStore, err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // absent field
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q holds %q", counter.ErrStore, keys[i], str)
		}
		out[keys[i]] = n
	}
	return out, nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]int64, error) {
	ctx, end := s.observe(ctx, "all", 0)
	vals, err := s.client.HGetAll(ctx, s.hashKey).Result()
	end(err)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: all: %w", counter.ErrStore, err)
	}
	out := make(map[string]int64, len(vals))
	for k, str := range vals {
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q holds %q", counter.ErrStore, k, str)
		}
		out[k] = n
	}
	return out, nil
}

func (s *RedisStore) observe(ctx context.Context, op string, size int) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "counter."+op, trace.WithAttributes(
		attribute.String("counter.hash", s.hashKey),
		attribute.Int("counter.batch_size", size),
	))
	return ctx, func(err error) {
		scriptDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
