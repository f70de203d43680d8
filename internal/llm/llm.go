package llm

import (
	"context"
	"fmt"

	"taglens/internal/config"
)

// LLM is a language model capable of answering a single prompt.
type LLM interface {
	// Generate sends prompt to the model and returns the full completion
	// text. It honors ctx cancellation and deadlines.
	Generate(ctx context.Context, prompt string) (string, error)
	// Name returns the configured model name.
	Name() string
}

// New constructs an LLM backend from configuration.
func New(cfg *config.BackendConfig) (LLM, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg)
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: '%s'", cfg.Provider)
	}
}
