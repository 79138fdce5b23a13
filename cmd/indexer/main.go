package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tubeqa/internal/cache"
	"tubeqa/internal/chunk"
	"tubeqa/internal/config"
	"tubeqa/internal/embed"
	"tubeqa/internal/kafka"
	"tubeqa/internal/logging"
	"tubeqa/internal/queue"
	"tubeqa/internal/store/sqlite"
	"tubeqa/internal/transcript"
	"tubeqa/internal/workers"
	"tubeqa/internal/youtube"
)

func main() {
	godotenv.Load()
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	brokers := kafka.Brokers()
	topic := kafka.TopicFromEnv("INGEST_KAFKA_TOPIC", kafka.DefaultIngestTopic)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[indexer] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, topic); err != nil {
		logging.Errorf("[indexer] ensure topic warning: %v", err)
	}
	cancelEnsure()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		logging.Fatalf("[indexer] open sqlite: %v", err)
	}
	defer store.Close()

	embedder, err := embed.New(embed.Config{
		APIKey:  cfg.EmbedAPIKey,
		BaseURL: cfg.EmbedBaseURL,
		Model:   cfg.EmbedModel,
	})
	if err != nil {
		logging.Fatalf("[indexer] embed client: %v", err)
	}

	transcripts, err := newTranscriptService(cfg, store)
	if err != nil {
		logging.Fatalf("[indexer] transcript service: %v", err)
	}

	splitter, err := chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		logging.Fatalf("[indexer] splitter: %v", err)
	}

	var embCache cache.EmbeddingCache
	if cfg.RedisAddr != "" {
		embCache, err = cache.NewRedisEmbeddingCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0, "")
		if err != nil {
			logging.Fatalf("[indexer] embedding cache: %v", err)
		}
	}

	processor, err := workers.NewProcessor(workers.ProcessorConfig{
		Transcripts: transcripts,
		Splitter:    splitter,
		Embedder:    embedder,
		EmbedModel:  embedder.Model(),
		EmbedCache:  embCache,
		Store:       store,
	})
	if err != nil {
		logging.Fatalf("[indexer] processor: %v", err)
	}

	logging.Infof("[indexer] consuming %s with group %s (%d workers)", topic, cfg.KafkaGroup, cfg.WorkerCount)
	workers.Run(ctx, brokers, topic, cfg.KafkaGroup, cfg.WorkerCount, func(ctx context.Context, job *queue.IngestJob) error {
		return processor.Process(ctx, job.VideoID)
	})
}

func newTranscriptService(cfg *config.Config, store *sqlite.Store) (*transcript.Service, error) {
	var tcache cache.TranscriptCache
	if cfg.RedisAddr != "" {
		var err error
		tcache, err = cache.NewRedisTranscriptCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TranscriptTTL, "")
		if err != nil {
			return nil, err
		}
	}

	var recognizers []transcript.Recognizer
	if cfg.GroqAPIKey != "" {
		whisper, err := transcript.NewWhisper(transcript.WhisperConfig{
			APIKey: cfg.GroqAPIKey,
			Model:  cfg.WhisperModel,
		})
		if err != nil {
			return nil, err
		}
		recognizers = append(recognizers, whisper)
	}
	if cfg.GoogleBucket != "" {
		gstt, err := transcript.NewGoogleSTT(transcript.GoogleSTTConfig{
			Bucket:          cfg.GoogleBucket,
			LanguageCode:    cfg.GoogleLanguage,
			CredentialsFile: cfg.GoogleCreds,
		})
		if err != nil {
			return nil, err
		}
		recognizers = append(recognizers, gstt)
	}

	var downloader transcript.AudioDownloader
	if len(recognizers) > 0 {
		downloader = transcript.NewDownloader("", 0, 0)
	}

	return transcript.NewService(transcript.Config{
		Captions:    youtube.NewClient(""),
		Downloader:  downloader,
		Recognizers: recognizers,
		Cache:       tcache,
		Store:       store,
		Languages:   cfg.CaptionLanguages,
	})
}
