package ai

import (
	"context"
	"fmt"

	"postgame-agent/shared/config"
	"postgame-agent/shared/retry"
)

// Request is one structured-completion call
type Request struct {
	PromptID    string // identifies the prompt in logs and errors
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer returns the raw text response for a request. The text is
// expected to contain a JSON document, possibly fenced.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// NewCompleter builds the completer for the configured provider
func NewCompleter(cfg *config.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiCompleter(cfg)
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// CompleteJSON calls the completer and decodes the response into T. Call
// failures and unparseable responses are both retried under policy.
func CompleteJSON[T any](ctx context.Context, c Completer, policy retry.Policy, req Request) (T, error) {
	return retry.Do(ctx, policy, func() (T, error) {
		var out T
		text, err := c.Complete(ctx, req)
		if err != nil {
			return out, fmt.Errorf("%s completion failed: %w", req.PromptID, err)
		}
		if err := DecodeJSON(text, &out); err != nil {
			return out, fmt.Errorf("%s response: %w", req.PromptID, err)
		}
		return out, nil
	})
}
