// Package kafka publishes deposit notifications as JSON events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "deposit_notified"

// Event is the message body written for every payload.
type Event struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Icon        string    `json:"icon,omitempty"`
	SenderLabel string    `json:"senderLabel"`
	Headline    string    `json:"headline"`
	Lines       []string  `json:"lines"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"publishedAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier publishes payloads to Kafka.
type Notifier struct {
	writer messageWriter
	topic  string
	now    func() time.Time
	logger *slog.Logger
}

// Config holds configuration for the Kafka notifier.
type Config struct {
	Brokers []string
	Topic   string
}

// New creates a Kafka notifier. Messages are keyed by destination so a
// destination's notifications stay on one partition.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newNotifier(w, topic, logger), nil
}

func newNotifier(w messageWriter, topic string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{writer: w, topic: topic, now: time.Now, logger: logger}
}

// Send publishes p and returns the event ID.
func (n *Notifier) Send(ctx context.Context, p api.Payload) (string, error) {
	ev := Event{
		ID:          uuid.NewString(),
		Destination: p.Destination,
		Icon:        p.Icon,
		SenderLabel: p.SenderLabel,
		Headline:    p.Headline,
		Lines:       p.Lines,
		Text:        p.Text(),
		PublishedAt: n.now().UTC(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshaling event: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.Destination),
		Value: data,
	})
	if err != nil {
		return "", fmt.Errorf("publishing to %s: %w", n.topic, err)
	}

	n.logger.Debug("published notification event", "topic", n.topic, "id", ev.ID)
	return ev.ID, nil
}

// Close flushes and closes the underlying writer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}

var _ api.Notifier = (*Notifier)(nil)
