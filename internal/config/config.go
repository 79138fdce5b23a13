package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment surface shared by the binaries. Each
// binary reads the slice of it that it needs.
type Config struct {
	// HTTP server
	ListenAddr string

	// persistence
	SQLitePath string

	// redis caches (empty addr disables caching)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TranscriptTTL time.Duration

	// embeddings
	EmbedAPIKey  string
	EmbedBaseURL string
	EmbedModel   string

	// chat LLM
	LLMProvider    string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	// transcript fallbacks
	CaptionLanguages []string
	GroqAPIKey       string
	WhisperModel     string
	GoogleBucket     string
	GoogleCreds      string
	GoogleLanguage   string

	// chunking and retrieval
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	MaxTurns     int
	SessionTTL   time.Duration

	// ingest pipeline
	KafkaGroup   string
	WorkerCount  int
	InlineIngest bool
}

// Load reads the configuration from the environment. Every field has a
// workable default except the API keys, which stay empty and fail at the
// first call that needs them.
func Load() *Config {
	return &Config{
		ListenAddr: envString("LISTEN_ADDR", ":8080"),

		SQLitePath: envString("SQLITE_PATH", "tubeqa.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		TranscriptTTL: envDuration("TRANSCRIPT_CACHE_TTL", 168*time.Hour),

		EmbedAPIKey:  os.Getenv("OPENAI_API_KEY"),
		EmbedBaseURL: os.Getenv("OPENAI_BASE_URL"),
		EmbedModel:   envString("EMBED_MODEL", "text-embedding-3-small"),

		LLMProvider:    envString("LLM_PROVIDER", "openai"),
		LLMAPIKey:      firstEnv("LLM_API_KEY", "OPENAI_API_KEY"),
		LLMBaseURL:     os.Getenv("LLM_BASE_URL"),
		LLMModel:       os.Getenv("LLM_MODEL"),
		LLMTemperature: envFloat("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:   envInt("LLM_MAX_TOKENS", 800),

		CaptionLanguages: envList("CAPTION_LANGUAGES", []string{"en", "hi"}),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		WhisperModel:     envString("WHISPER_MODEL", "whisper-large-v3"),
		GoogleBucket:     os.Getenv("GOOGLE_STT_BUCKET"),
		GoogleCreds:      os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		GoogleLanguage:   envString("GOOGLE_STT_LANGUAGE", "en-US"),

		ChunkSize:    envInt("CHUNK_SIZE", 1200),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),
		TopK:         envInt("CHAT_TOP_K", 4),
		MaxTurns:     envInt("CHAT_MAX_TURNS", 10),
		SessionTTL:   envDuration("CHAT_SESSION_TTL", 30*time.Minute),

		KafkaGroup:   envString("INGEST_GROUP", "tubeqa-indexer"),
		WorkerCount:  envInt("INGEST_WORKERS", 2),
		InlineIngest: envBool("INGEST_INLINE", false),
	}
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

func envList(key string, def []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}
