// Package kafka publishes message events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chainchat/pkg/eventstream"
	"github.com/papercomputeco/chainchat/pkg/logger"
)

// DefaultTopic receives message events when no topic is configured.
const DefaultTopic = "chainchat.messages"

// Writer is the subset of *kafkago.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config is the configuration for a Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Publisher writes each event as one Kafka message keyed by conversation ID,
// so a conversation's events stay on one partition and in order.
type Publisher struct {
	writer Writer
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a publisher backed by a kafka-go Writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}

	return NewPublisherWithWriter(w, cfg.Topic, cfg.Logger), nil
}

// NewPublisherWithWriter creates a publisher over an existing Writer.
func NewPublisherWithWriter(w Writer, topic string, l *slog.Logger) *Publisher {
	if l == nil {
		l = logger.Nop()
	}

	return &Publisher{
		writer: w,
		topic:  topic,
		logger: l,
	}
}

// PublishMessage encodes the event as JSON and writes it synchronously.
func (p *Publisher) PublishMessage(ctx context.Context, event *eventstream.MessageDeliveredEvent) error {
	if event == nil {
		return eventstream.ErrNilMessageEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding message event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Conversation.ID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to topic %s: %w", p.topic, err)
	}

	p.logger.Debug("published message event",
		"topic", p.topic,
		"event_id", event.EventID,
		"conversation_id", event.Conversation.ID,
		"pointer", event.Pointer,
	)

	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
