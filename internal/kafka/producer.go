package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// AnalysisEvent is published after each completed analysis. Consumers use it
// for moderation review and usage accounting; nothing in the request path
// depends on delivery.
type AnalysisEvent struct {
	LogID        uuid.UUID `json:"log_id"`
	UserID       uuid.UUID `json:"user_id"`
	AnalysisType string    `json:"analysis_type"` // text, image
	Verdict      string    `json:"verdict"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// Producer wraps a Kafka producer
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
	}

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("Kafka producer initialized")

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishAnalysis publishes an analysis event, keyed by log ID.
func (p *Producer) PublishAnalysis(ctx context.Context, event AnalysisEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.LogID.String()),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	log.Debug().
		Str("log_id", event.LogID.String()).
		Str("topic", p.topic).
		Msg("Analysis event published")
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
