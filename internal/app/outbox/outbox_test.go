package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/events"
)

type sampleEvent struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

func (e sampleEvent) EventName() string     { return "sample.happened" }
func (e sampleEvent) AggregateID() string   { return e.ID }
func (e sampleEvent) OccurredAt() time.Time { return e.At }

type sliceOutbox struct {
	records []EventRecord
	err     error
}

func (s *sliceOutbox) Add(_ context.Context, rec EventRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type aggregate struct {
	events.EventRecorder
}

func TestDrain_EncodesAndClears(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	agg := &aggregate{}
	agg.Record(sampleEvent{ID: "a-1", At: at})
	agg.Record(sampleEvent{ID: "a-1", At: at.Add(time.Minute)})

	box := &sliceOutbox{}
	err := Drain(context.Background(), box, JSONEventEncoder{IDGenerator: func() string { return "fixed" }}, agg)
	require.NoError(t, err)

	require.Len(t, box.records, 2)
	assert.Equal(t, "sample.happened", box.records[0].Name)
	assert.Equal(t, "a-1", box.records[0].Aggregate)
	assert.Equal(t, "fixed", box.records[0].ID)
	var decoded sampleEvent
	require.NoError(t, json.Unmarshal(box.records[1].Payload, &decoded))
	assert.Equal(t, at.Add(time.Minute), decoded.At)
	assert.Empty(t, agg.PendingEvents())
}

func TestRecordDomainEvents_PropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	err := RecordDomainEvents(context.Background(), &sliceOutbox{err: boom}, nil, []events.DomainEvent{sampleEvent{ID: "x"}})
	assert.ErrorIs(t, err, boom)
}
