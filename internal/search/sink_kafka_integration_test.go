//go:build integration

package search_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"foodvote/internal/search"
	"foodvote/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	broker string
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *KafkaSinkSuite) consume(topic string, want int) map[string]search.Document {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got := make(map[string]search.Document)
	seen := 0
	for seen < want {
		fetches := client.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out after %d of %d records", seen, want)
		fetches.EachRecord(func(r *kgo.Record) {
			var doc search.Document
			s.Require().NoError(json.Unmarshal(r.Value, &doc))
			got[string(r.Key)] = doc
			seen++
		})
	}
	return got
}

func (s *KafkaSinkSuite) TestUpsertKeysRecordsByFoodID() {
	topic := "foods-" + time.Now().Format("150405.000000")
	sink, err := search.NewKafkaSink([]string{s.broker}, topic)
	s.Require().NoError(err)
	defer sink.Close()

	ctx := context.Background()
	s.Require().NoError(sink.Ping(ctx))
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1), "existing topic is not an error")
	s.Require().NoError(sink.Upsert(ctx, []search.Document{
		{ID: 0, Name: "pizza", Votes: 3, Location: "wiley", ServedToday: true},
		{ID: 7, Name: "salad", Votes: 0, Location: "none"},
	}))

	got := s.consume(topic, 2)
	s.Equal(int64(3), got["0"].Votes)
	s.Equal("salad", got["7"].Name)
}

func (s *KafkaSinkSuite) TestEmptyBatchIsNoop() {
	sink, err := search.NewKafkaSink([]string{s.broker}, "foods-empty")
	s.Require().NoError(err)
	defer sink.Close()

	s.NoError(sink.Upsert(context.Background(), nil))
}
