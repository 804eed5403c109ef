package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-venues/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var fixedNow = time.Date(2025, 6, 19, 10, 0, 0, 0, time.UTC)

func newTestProducer(w *fakeWriter) *Producer {
	p := NewProducerWithWriter(w, "venues.events", nil)
	p.now = func() time.Time { return fixedNow }
	return p
}

func decode(t *testing.T, msg kafka.Message) VenueEvent {
	t.Helper()
	var event VenueEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	return event
}

func TestPublishVenueCreated(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	venue := models.Venue{VenueID: "venue-1", Name: "The Grand Hall"}
	require.NoError(t, p.PublishVenueCreated(context.Background(), venue))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, []byte("venue-1"), msg.Key)
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte("venue_created")}}, msg.Headers)

	event := decode(t, msg)
	assert.Equal(t, VenueCreated, event.Type)
	assert.Equal(t, "venue-1", event.VenueID)
	require.NotNil(t, event.Venue)
	assert.Equal(t, "The Grand Hall", event.Venue.Name)
	assert.True(t, fixedNow.Equal(event.OccurredAt))
}

func TestPublishVenueUpdatedAndDeleted(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)
	ctx := context.Background()

	require.NoError(t, p.PublishVenueUpdated(ctx, models.Venue{VenueID: "venue-1", Name: "Renamed"}))
	require.NoError(t, p.PublishVenueDeleted(ctx, "venue-1"))

	require.Len(t, w.messages, 2)
	assert.Equal(t, VenueUpdated, decode(t, w.messages[0]).Type)

	deleted := decode(t, w.messages[1])
	assert.Equal(t, VenueDeleted, deleted.Type)
	assert.Equal(t, "venue-1", deleted.VenueID)
	assert.Nil(t, deleted.Venue)
	assert.NotContains(t, string(w.messages[1].Value), `"venue":`)
}

func TestPublishWrapsWriterError(t *testing.T) {
	cause := errors.New("broker unavailable")
	p := newTestProducer(&fakeWriter{err: cause})

	err := p.PublishVenueDeleted(context.Background(), "venue-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "venue_deleted")
}

func TestProducerClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}

func TestEnsureTopicsExistRequiresBrokers(t *testing.T) {
	err := EnsureTopicsExist(context.Background(), nil, []string{"venues.events"}, nil)
	assert.Error(t, err)

	_, err = ListTopics(context.Background(), nil)
	assert.Error(t, err)
}

func TestVerifyTopicsRequiresBrokers(t *testing.T) {
	err := VerifyTopics(context.Background(), nil, []string{"venues.events"}, nil)
	assert.Error(t, err)
}

func TestMissingTopics(t *testing.T) {
	known := []string{"venues.events", "__consumer_offsets"}

	assert.Empty(t, missingTopics(known, []string{"venues.events"}))
	assert.Equal(t, []string{"venues.audit"}, missingTopics(known, []string{"venues.events", "venues.audit"}))
	assert.Equal(t, []string{"venues.events"}, missingTopics(nil, []string{"venues.events"}))
}
