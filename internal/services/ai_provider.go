package services

import (
	"context"
	"fmt"
)

// CompletionRequest is one prompt exchange with an AI provider.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int // 0 uses the provider default
}

// AIProvider defines the interface for AI completion providers (Anthropic, OpenAI)
type AIProvider interface {
	// Complete sends one prompt exchange and returns the raw completion text
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// TestConnection verifies the configured credentials with a minimal request
	TestConnection(ctx context.Context) error

	// Name returns the provider name ("anthropic" or "openai")
	Name() string
}

// NewAIProvider builds the AI provider selected by the run configuration.
func NewAIProvider(rc *RunConfig) (AIProvider, error) {
	switch rc.AIProvider {
	case "anthropic":
		if rc.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic_api_key is not configured")
		}
		return NewAnthropicProvider(rc.AnthropicAPIKey, rc.AIModel, rc.AITimeout), nil
	case "openai":
		if rc.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai_api_key is not configured")
		}
		return NewOpenAIProvider(rc.OpenAIAPIKey, rc.AIModel, rc.AITimeout), nil
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", rc.AIProvider)
	}
}
