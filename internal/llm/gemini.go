package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type geminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

func newGemini(cfg Config) (*geminiProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}

	return &geminiProvider{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}, nil
}

func (p *geminiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if userPrompt == "" {
		return "", fmt.Errorf("llm: user prompt must be provided")
	}
	return p.Chat(ctx, systemPrompt, []Turn{{Role: RoleUser, Content: userPrompt}})
}

func (p *geminiProvider) Chat(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	if p == nil {
		return "", fmt.Errorf("llm: provider is nil")
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("llm: at least one turn is required")
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents := geminiContents(turns)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: int32(p.maxTokens),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := p.client.Models.GenerateContent(ctxWithTimeout, p.model, contents, config)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("llm: empty response")
	}
	return text, nil
}

// geminiContents maps conversation turns onto genai contents. Assistant
// turns become model-role contents; everything else is user-role.
func geminiContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var role genai.Role = genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}
