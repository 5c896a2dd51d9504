package provider

import (
	"context"
	"errors"

	"github.com/openscience/digest/config"
	openai_provider "github.com/openscience/digest/provider/openai"
)

// Client represents different LLM providers.
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Usage carries token accounting returned by the completion API. It is
// recorded for observability only and never influences the pipeline.
type Usage = openai_provider.Usage

// Completion is the result of a single completion request.
type Completion = openai_provider.Completion

// Completer is the abstract contract the pipeline depends on: one system
// instruction plus one user message in, generated text out.
type Completer interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}

// NewCompleter creates a completion client based on the provided configuration.
func NewCompleter(client Client, cfg config.LLMConfig) (Completer, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm api key not set")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
