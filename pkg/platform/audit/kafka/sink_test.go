package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "credreg/pkg/domain"
	audit "credreg/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestSinkAppend(t *testing.T) {
	subject := id.Principal("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	t.Run("produces JSON keyed by subject", func(t *testing.T) {
		producer := &fakeProducer{}
		sink := NewSink(producer, "credreg.audit")

		err := sink.Append(context.Background(), audit.Event{
			ID:       "evt-1",
			Category: audit.CategoryCompliance,
			Action:   string(audit.EventVerificationApproved),
			Subject:  subject,
			Domain:   id.DomainEducation,
			RecordID: 1,
		})
		require.NoError(t, err)
		require.Len(t, producer.records, 1)

		rec := producer.records[0]
		assert.Equal(t, "credreg.audit", rec.Topic)
		assert.Equal(t, string(subject), string(rec.Key))

		var decoded audit.Event
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, "evt-1", decoded.ID)
		assert.Equal(t, uint64(1), decoded.RecordID)
	})

	t.Run("surfaces produce errors", func(t *testing.T) {
		producer := &fakeProducer{err: errors.New("broker down")}
		sink := NewSink(producer, "credreg.audit")

		err := sink.Append(context.Background(), audit.Event{ID: "evt-2", Actor: subject})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	})
}
