//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"credreg/internal/platform/config"
	platformkafka "credreg/internal/platform/kafka"
	id "credreg/pkg/domain"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/audit/kafka"
	"credreg/pkg/testutil/containers"
)

const topic = "credreg.audit.test"

type SinkSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	client   *platformkafka.Client
}

func TestSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	ctx := context.Background()
	client, err := platformkafka.New(ctx, config.KafkaConfig{
		Brokers:    []string{s.redpanda.Broker},
		AuditTopic: topic,
		ClientID:   "credreg-test",
	})
	s.Require().NoError(err)
	s.client = client
	s.Require().NoError(client.EnsureTopic(ctx, topic))
	s.Require().NoError(client.EnsureTopic(ctx, topic), "second call is a no-op")
}

func (s *SinkSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *SinkSuite) TestAppendIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subject := id.Principal("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	sink := kafka.NewSink(s.client, topic)
	s.Require().NoError(sink.Append(ctx, audit.Event{
		ID:       "evt-int-1",
		Category: audit.CategoryCompliance,
		Action:   string(audit.EventRecordCreated),
		Subject:  subject,
		Domain:   id.DomainEducation,
		RecordID: 1,
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got *kgo.Record
	for got == nil {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "no record before deadline")
		fetches.EachRecord(func(r *kgo.Record) {
			if got == nil {
				got = r
			}
		})
	}

	s.Equal(string(subject), string(got.Key))
	var event audit.Event
	s.Require().NoError(json.Unmarshal(got.Value, &event))
	s.Equal("evt-int-1", event.ID)
	s.Equal(id.DomainEducation, event.Domain)
}
