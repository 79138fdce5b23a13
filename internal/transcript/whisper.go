package transcript

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultWhisperBaseURL = "https://api.groq.com/openai/v1"
	defaultWhisperModel   = "whisper-large-v3"
)

// Whisper transcribes audio through an OpenAI-compatible transcription
// endpoint (Groq by default).
type Whisper struct {
	api   *openai.Client
	model string
}

// WhisperConfig controls the whisper recognizer.
type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("whisper: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWhisperBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = cfg.BaseURL

	return &Whisper{
		api:   openai.NewClientWithConfig(conf),
		model: cfg.Model,
	}, nil
}

func (w *Whisper) Name() string { return SourceWhisper }

func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
