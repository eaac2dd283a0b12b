package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
)

// Writer publishes enriched records to a Kafka topic so downstream consumers
// see each batch as soon as it is appended to the flat file.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	runID  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic. runID is attached to every
// message as a header.
func NewWriter(brokers []string, topic, runID string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, runID: runID, logger: logger}
}

// LoadBatch serializes and publishes the records in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], w.runID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	w.logger.Debug("records published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

// Close flushes pending messages and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a record keyed by series ID, so every
// observation of a series lands on the same partition.
func serializeToMessage(record domain.EnrichedRecord, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "period", Value: []byte(record.Year + "-" + record.Period)},
		},
	}, nil
}
