package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crop-yield-dashboard/internal/config"
	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

type fakeWriter struct {
	failures int
	calls    int
	msgs     []kafkago.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleSummary() report.Summary {
	r := 0.42
	return report.Summary{
		ID:               "abc123",
		GeneratedAt:      time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		Policy:           domain.PolicySkip,
		Rows:             10,
		Categories:       map[domain.Category]int{domain.Good: 6, domain.Bad: 3},
		Skipped:          1,
		YieldCorrelation: map[string]*float64{domain.ColTemperature: &r, domain.ColWindSpeed: nil},
	}
}

func newTestPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w, topic: "crop-yield-reports", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSerializeSummary(t *testing.T) {
	s := sampleSummary()

	msg, err := serializeSummary(s)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc123"), msg.Key)
	assert.Contains(t, string(msg.Value), `"policy":"skip"`)
	assert.Contains(t, string(msg.Value), `"Good":6`)
	assert.Contains(t, string(msg.Value), `"Wind_Speed_kmh":null`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "report_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("abc123"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
}

func TestPublish_RetriesTransientFailure(t *testing.T) {
	w := &fakeWriter{failures: 1}
	p := newTestPublisher(w)

	require.NoError(t, p.Publish(context.Background(), sampleSummary()))
	assert.Equal(t, 2, w.calls)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("abc123"), w.msgs[0].Key)
}

func TestPublish_GivesUpAfterAttempts(t *testing.T) {
	w := &fakeWriter{failures: publishAttempts}
	p := newTestPublisher(w)

	err := p.Publish(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, publishAttempts, w.calls)
}

func TestPublish_StopsOnCancelledContext(t *testing.T) {
	w := &fakeWriter{failures: publishAttempts}
	p := newTestPublisher(w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, sampleSummary())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, w.calls)
}

func TestNewPublisher_UsesConfig(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"b1:9092", "b2:9092"}, ReportTopic: "reports"}
	p := NewPublisher(cfg, slog.Default())

	kw, ok := p.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "reports", kw.Topic)
	assert.Equal(t, kafkago.RequireAll, kw.RequiredAcks)
	assert.Equal(t, 5*time.Millisecond, kw.BatchTimeout, "one summary per upload must not wait for a batch")
	assert.Equal(t, "reports", p.topic)
	require.NoError(t, p.Close())
}
