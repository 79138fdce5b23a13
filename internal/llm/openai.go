package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

type openAIProvider struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

func newOpenAI(cfg Config) (*openAIProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	temp := cfg.Temperature
	if temp < 0 {
		temp = 0
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	openaiCfg := openai.DefaultConfig(apiKey)
	openaiCfg.BaseURL = baseURL

	return &openAIProvider{
		api:         openai.NewClientWithConfig(openaiCfg),
		model:       model,
		temperature: temp,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}, nil
}

func (p *openAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if userPrompt == "" {
		return "", fmt.Errorf("llm: user prompt must be provided")
	}
	return p.Chat(ctx, systemPrompt, []Turn{{Role: RoleUser, Content: userPrompt}})
}

func (p *openAIProvider) Chat(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	if p == nil {
		return "", fmt.Errorf("llm: provider is nil")
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("llm: at least one turn is required")
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	resp, err := p.api.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
