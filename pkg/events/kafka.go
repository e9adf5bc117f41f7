package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"urut/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Header keys shared with the consumers of the events topic.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderTimestamp = "timestamp"
)

// KafkaSink publishes lifecycle events to a single topic, keyed by booking
// id so all events of one booking land on the same partition in order.
type KafkaSink struct {
	writer *kafka.Writer
	source string
	log    *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewKafkaSink(brokers []string, topic, source string, log *logger.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...any) { log.Error("Kafka writer error", "detail", msg) }),
	}

	return &KafkaSink{
		writer: writer,
		source: source,
		log:    log,
	}
}

// Emit publishes the event and swallows any failure after logging it.
// Notification delivery must never block or fail a booking operation.
func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("Failed to marshal event", "type", event.Type, "booking_id", event.BookingID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.BookingID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(event.ID)},
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderSource, Value: []byte(s.source)},
			{Key: HeaderTimestamp, Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.log.Error("Failed to publish event",
			"type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
