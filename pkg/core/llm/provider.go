// Package llm abstracts the text-generation backends used for disclosure
// extraction. Providers are selected by name and configured from the
// environment.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

// New returns the provider for a name. An empty name means Gemini, the
// default extraction backend.
func New(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini":
		return &GeminiProvider{}, nil
	case "openai":
		return &OpenAIProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
