package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/flood-detection-service/internal/config"
	"github.com/couchcryptid/flood-detection-service/internal/domain"
)

// Writer produces analysis summaries to a Kafka topic.
// It implements pipeline.ResultPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaResultTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes the summary of r keyed by analysis ID, so every message
// for one analysis lands on the same partition.
func (w *Writer) Publish(ctx context.Context, r domain.Result) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish analysis %s: %w", r.ID, err)
	}
	w.logger.Debug("analysis published", "analysis_id", r.ID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals the summary of a Result into a Kafka message.
func serializeToMessage(r domain.Result) (kafkago.Message, error) {
	data, err := json.Marshal(r.Summary())
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize analysis result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_date", Value: []byte(r.Analysis.Window.EventDate())},
			{Key: "mode", Value: []byte(r.Mode)},
			{Key: "processed_at", Value: []byte(r.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}
