package workers

import (
	"context"
	"encoding/json"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"tubeqa/internal/kafka"
	"tubeqa/internal/logging"
	"tubeqa/internal/queue"
)

// Handler processes one decoded ingest job.
type Handler func(context.Context, *queue.IngestJob) error

// Run fans workerCount consumers out over the ingest topic and blocks
// until the context is canceled.
func Run(ctx context.Context, brokers []string, topic, group string, workerCount int, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := kafka.NewReader(brokers, topic, group)
			defer reader.Close()
			consume(ctx, reader, handler)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

func consume(ctx context.Context, reader *kafkago.Reader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("worker read error: %v", err)
			continue
		}

		var job queue.IngestJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			logging.Errorf("worker unmarshal error: %v", err)
			continue
		}
		if job.VideoID == "" {
			logging.Errorf("worker skipping job with empty video id")
			continue
		}

		if handler != nil {
			if err := handler(ctx, &job); err != nil {
				logging.Errorf("worker handler error (video=%s): %v", job.VideoID, err)
			}
		}
	}
}
