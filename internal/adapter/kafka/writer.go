package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crop-yield-dashboard/internal/config"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

const (
	// batchTimeout caps how long a single summary waits for companions
	// before the writer flushes; kafka-go defaults to one second.
	batchTimeout    = 5 * time.Millisecond
	publishAttempts = 3
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces report summaries to the report topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured report topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.ReportTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           5 * time.Second,
	}
	return &Publisher{writer: w, topic: cfg.ReportTopic, logger: logger}
}

// Publish writes one summary keyed by report ID. Transient broker errors
// are retried with exponential backoff until the context ends.
func (p *Publisher) Publish(ctx context.Context, s report.Summary) error {
	msg, err := serializeSummary(s)
	if err != nil {
		return err
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			p.logger.Debug("report event published", "report_id", s.ID, "topic", p.topic, "attempt", attempt)
			return nil
		}
		if attempt == publishAttempts {
			return fmt.Errorf("publish report %s: %w", s.ID, err)
		}
		p.logger.Warn("report event publish retrying", "report_id", s.ID, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("publish report %s: %w", s.ID, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeSummary marshals a report summary into a Kafka message.
func serializeSummary(s report.Summary) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_id", Value: []byte(s.ID)},
			{Key: "generated_at", Value: []byte(s.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
