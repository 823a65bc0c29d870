package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Sink receives full document batches. Upsert replaces any earlier document
// with the same ID.
type Sink interface {
	Upsert(ctx context.Context, docs []Document) error
}

// KafkaSink publishes documents to a compacted topic keyed by food ID, from
// which the search indexer consumes.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects a producer for topic. Extra client options are
// appended after the defaults.
func NewKafkaSink(brokers []string, topic string, opts ...kgo.Opt) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required for kafka sink")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required for kafka sink")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.ZstdCompression(), kgo.SnappyCompression(), kgo.NoCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// Ping checks broker connectivity.
func (k *KafkaSink) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *KafkaSink) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(docs))
	for _, d := range docs {
		value, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode document %d: %w", d.ID, err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(strconv.FormatUint(uint64(d.ID), 10)),
			Value: value,
		})
	}
	if err := k.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", k.topic, err)
	}
	return nil
}

// EnsureTopic creates the topic as a compacted topic if it does not exist,
// so the index can be rebuilt from the latest record per food.
func (k *KafkaSink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	compact := "compact"
	resp, err := kadm.NewClient(k.client).CreateTopic(ctx, partitions, replication,
		map[string]*string{"cleanup.policy": &compact}, k.topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaSink) Close() {
	k.client.Close()
}

// MemorySink keeps the latest document per ID. Used in tests and local runs.
type MemorySink struct {
	mu      sync.Mutex
	docs    map[uint32]Document
	batches int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{docs: make(map[uint32]Document)}
}

func (m *MemorySink) Upsert(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	m.batches++
	return nil
}

// Documents returns the stored documents ordered by ID.
func (m *MemorySink) Documents() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Document) int { return int(a.ID) - int(b.ID) })
	return out
}

// Batches reports how many Upsert calls were received.
func (m *MemorySink) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// LogSink only logs batch summaries, for deployments without a broker.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Upsert(ctx context.Context, docs []Document) error {
	var votes int64
	for _, d := range docs {
		votes += d.Votes
	}
	l.logger.InfoContext(ctx, "search documents ready", "documents", len(docs), "total_votes", votes)
	return nil
}
