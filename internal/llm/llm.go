package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Turn is one exchange in a chat conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider answers single-shot prompts and multi-turn conversations.
type Provider interface {
	// Complete sends a single-shot prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Chat sends a system prompt plus ordered turns, the last of which is
	// the pending user message.
	Chat(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
}

// Config holds settings shared by all providers.
type Config struct {
	Provider    string // "openai" (any compatible endpoint) or "gemini"
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// New builds the provider named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return newOpenAI(cfg)
	case "gemini":
		return newGemini(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
