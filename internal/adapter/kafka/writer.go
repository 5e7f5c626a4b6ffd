package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-alert-service/internal/config"
	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes upserted earthquakes to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// PublishBatch serializes and publishes the earthquakes one source upserted
// in a single WriteMessages call. Messages are keyed by earthquake id so
// repeated publications of the same event land on the same partition.
func (w *Writer) PublishBatch(ctx context.Context, source string, quakes []domain.Earthquake) error {
	if len(quakes) == 0 {
		return nil
	}
	fetchedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(quakes))
	for i := range quakes {
		msg, err := serializeToMessage(quakes[i], source, fetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("published earthquakes", "source", source, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Earthquake into a Kafka message.
func serializeToMessage(eq domain.Earthquake, source string, fetchedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(eq)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(eq.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(source)},
			{Key: "fetched_at", Value: []byte(fetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
