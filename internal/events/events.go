package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"medichat-server/internal/models"
)

// TurnRecorded is published after a chat turn has been stored.
type TurnRecorded struct {
	MessageID string        `json:"message_id"`
	SessionID string        `json:"session_id"`
	CaseID    string        `json:"case_id"`
	PatientID string        `json:"patient_id"`
	Safety    models.Safety `json:"safety"`
	Timestamp time.Time     `json:"timestamp"`
}

// Publisher delivers turn events to downstream consumers.
type Publisher interface {
	PublishTurn(ctx context.Context, event TurnRecorded) error
	Close() error
}

// NopPublisher discards every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishTurn(context.Context, TurnRecorded) error { return nil }
func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic, keyed by session so the
// turns of one session stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishTurn encodes the event as JSON and writes it.
func (p *KafkaPublisher) PublishTurn(ctx context.Context, event TurnRecorded) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode turn event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Time:  event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish turn event: %w", err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
