// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate is the text-generation collaborator. It renders prompts
// from the candidate's answers, calls a Generative AI backend, and checks the
// shape of what comes back before handing it to the dossier engine.
package generate

import (
	"context"
	"fmt"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Request is a single prompt sent to a backend.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Backend abstracts the Generative AI API so tests can supply a fake.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewBackend returns the backend named by cfg.Provider. An empty provider
// means anthropic.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", providerOrDefault(cfg.Provider))
	}
	switch providerOrDefault(cfg.Provider) {
	case ProviderAnthropic:
		return NewAnthropicBackend(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIBackend(cfg), nil
	case ProviderGemini:
		return NewGeminiBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

func providerOrDefault(p string) string {
	if p == "" {
		return ProviderAnthropic
	}
	return p
}
