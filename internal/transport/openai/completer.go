package openai

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
)

// Completer generates answers via the OpenAI-compatible chat completions API.
type Completer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// CompleterConfig holds the chat provider settings.
type CompleterConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *zap.Logger
}

// NewCompleter creates an OpenAI-compatible chat completion provider.
func NewCompleter(cfg *CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Completer{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, system, user string) (domain.CompletionResult, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.CompletionResult{}, parseCompletionError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.CompletionResult{}, fmt.Errorf(
			"empty completion response: %w", domain.ErrCompletionProviderError)
	}

	return domain.CompletionResult{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// parseCompletionError mirrors the embedding error classification for the
// chat endpoint.
func parseCompletionError(err error) error {
	status, detail := errorStatusAndDetail(err)

	wrap := domain.ErrCompletionProviderError
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		wrap = domain.ErrProviderAuth
	case http.StatusTooManyRequests:
		wrap = domain.ErrRateLimited
	}

	if status > 0 {
		return fmt.Errorf("completion API error %d: %s: %w", status, detail, wrap)
	}
	return fmt.Errorf("completion request failed: %w", wrap)
}
