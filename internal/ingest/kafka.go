package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSource drains JSON readings from a topic into a batch per fetch.
// Offsets are committed through the consumer group, so a restart resumes
// where it left off; replays are harmless because the merge engine dedups.
type KafkaSource struct {
	reader *kafka.Reader
	log    *slog.Logger
	// drainWait bounds how long a fetch waits once the topic runs dry.
	drainWait time.Duration
}

func NewKafkaSource(brokers []string, topic, group string, log *slog.Logger) *KafkaSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &KafkaSource{
		reader:    r,
		log:       log.With(slog.String("component", "kafka-source")),
		drainWait: 2 * time.Second,
	}
}

func (s *KafkaSource) Fetch(ctx context.Context) (RawBatch, error) {
	batch := RawBatch{Columns: batchColumns}
	for {
		readCtx, cancel := context.WithTimeout(ctx, s.drainWait)
		msg, err := s.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// topic drained for this cycle
				return batch, nil
			}
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				return batch, nil
			}
			return RawBatch{}, err
		}
		var rm readingMessage
		if err := json.Unmarshal(msg.Value, &rm); err != nil {
			s.log.Warn("skipping undecodable message", "offset", msg.Offset, "error", err)
			continue
		}
		batch.Rows = append(batch.Rows, rm.row())
	}
}

func (s *KafkaSource) Close() error { return s.reader.Close() }
