package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-venues/internal/logger"
	"ms-venues/internal/models"
)

type EventType string

const (
	VenueCreated EventType = "venue_created"
	VenueUpdated EventType = "venue_updated"
	VenueDeleted EventType = "venue_deleted"
)

// VenueEvent is the message value published for every venue mutation.
// Venue is nil for deletions.
type VenueEvent struct {
	Type       EventType     `json:"type"`
	VenueID    string        `json:"venue_id"`
	Venue      *models.Venue `json:"venue,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topic  string
	Logger *logger.Logger
	now    func() time.Time
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewProducerWithWriter(writer, topic, log)
}

func NewProducerWithWriter(w MessageWriter, topic string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Producer{Writer: w, Topic: topic, Logger: log, now: time.Now}
}

func (p *Producer) PublishVenueCreated(ctx context.Context, venue models.Venue) error {
	return p.publish(ctx, VenueEvent{Type: VenueCreated, VenueID: venue.VenueID, Venue: &venue})
}

func (p *Producer) PublishVenueUpdated(ctx context.Context, venue models.Venue) error {
	return p.publish(ctx, VenueEvent{Type: VenueUpdated, VenueID: venue.VenueID, Venue: &venue})
}

func (p *Producer) PublishVenueDeleted(ctx context.Context, venueID string) error {
	return p.publish(ctx, VenueEvent{Type: VenueDeleted, VenueID: venueID})
}

// publish keys messages by venue id so all events for one venue land on one partition, in order.
func (p *Producer) publish(ctx context.Context, event VenueEvent) error {
	event.OccurredAt = p.now().UTC()

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.VenueID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s event for venue %s: %w", event.Type, event.VenueID, err)
	}

	p.Logger.LogKafka(string(event.Type), p.Topic, "published event for venue "+event.VenueID)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
