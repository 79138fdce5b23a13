package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tubeqa/internal/cache"
	"tubeqa/internal/chat"
	"tubeqa/internal/chunk"
	"tubeqa/internal/config"
	"tubeqa/internal/embed"
	"tubeqa/internal/index"
	"tubeqa/internal/kafka"
	"tubeqa/internal/llm"
	"tubeqa/internal/logging"
	"tubeqa/internal/queue"
	"tubeqa/internal/server"
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

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		logging.Fatalf("[server] open sqlite: %v", err)
	}
	defer store.Close()

	embedder, err := embed.New(embed.Config{
		APIKey:  cfg.EmbedAPIKey,
		BaseURL: cfg.EmbedBaseURL,
		Model:   cfg.EmbedModel,
	})
	if err != nil {
		logging.Fatalf("[server] embed client: %v", err)
	}

	provider, err := llm.New(llm.Config{
		Provider:    cfg.LLMProvider,
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: float32(cfg.LLMTemperature),
		MaxTokens:   cfg.LLMMaxTokens,
	})
	if err != nil {
		logging.Fatalf("[server] llm provider: %v", err)
	}

	transcripts, err := newTranscriptService(cfg, store)
	if err != nil {
		logging.Fatalf("[server] transcript service: %v", err)
	}

	registry := index.NewRegistry(store)

	manager, err := chat.NewManager(embedder, registry, provider, chat.Config{
		TopK:     cfg.TopK,
		MaxTurns: cfg.MaxTurns,
		IdleTTL:  cfg.SessionTTL,
	})
	if err != nil {
		logging.Fatalf("[server] chat manager: %v", err)
	}
	go manager.RunSweeper(ctx, time.Minute)

	var enqueuer server.Enqueuer
	var ingester server.Ingester
	if cfg.InlineIngest {
		processor, perr := newProcessor(cfg, transcripts, embedder, store, registry)
		if perr != nil {
			logging.Fatalf("[server] processor: %v", perr)
		}
		ingester = processor
	} else {
		brokers := kafka.Brokers()
		topic := kafka.TopicFromEnv("INGEST_KAFKA_TOPIC", kafka.DefaultIngestTopic)

		ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := kafka.EnsureTopic(ensureCtx, brokers, topic); err != nil {
			logging.Errorf("[server] ensure topic warning: %v", err)
		}
		cancel()

		publisher := queue.NewPublisher(kafka.NewWriter(brokers, topic))
		defer publisher.Close()
		enqueuer = publisher
	}

	srv := server.New(server.Config{
		Addr:        cfg.ListenAddr,
		Store:       store,
		Transcripts: transcripts,
		Provider:    provider,
		Chat:        manager,
		Enqueuer:    enqueuer,
		Ingester:    ingester,
	})
	if err := srv.Run(ctx); err != nil {
		logging.Fatalf("[server] %v", err)
	}
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

func newProcessor(cfg *config.Config, transcripts *transcript.Service, embedder *embed.Client, store *sqlite.Store, registry *index.Registry) (*workers.Processor, error) {
	splitter, err := chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	var embCache cache.EmbeddingCache
	if cfg.RedisAddr != "" {
		embCache, err = cache.NewRedisEmbeddingCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0, "")
		if err != nil {
			return nil, err
		}
	}

	return workers.NewProcessor(workers.ProcessorConfig{
		Transcripts: transcripts,
		Splitter:    splitter,
		Embedder:    embedder,
		EmbedModel:  embedder.Model(),
		EmbedCache:  embCache,
		Store:       store,
		Registry:    registry,
	})
}
