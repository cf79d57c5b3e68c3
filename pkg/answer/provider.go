package answer

import (
	"context"
	"fmt"
)

// Message is one entry of the prompt conversation.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest contains the parameters for one generation call.
type CompletionRequest struct {
	Model        string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// CompletionResponse contains the generated text and token accounting.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// LLMProvider is an interface for LLM API providers.
type LLMProvider interface {
	// Complete makes a generation API call.
	Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)

	// Provider returns the provider name.
	Provider() string
}

// NewProvider creates an LLM provider by name.
func NewProvider(provider, apiKey string) (LLMProvider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
