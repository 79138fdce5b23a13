package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// IngestJob asks a worker to build the retrieval index for one video.
type IngestJob struct {
	VideoID     string    `json:"video_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher hands ingest jobs to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(writer *kafka.Writer) *Publisher {
	return &Publisher{writer: writer}
}

// Publish enqueues one job, keyed by video ID so retries for the same
// video land on the same partition.
func (p *Publisher) Publish(ctx context.Context, videoID string) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("queue: publisher not configured")
	}

	job := IngestJob{VideoID: videoID, RequestedAt: time.Now().UTC()}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal ingest job: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(videoID),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
