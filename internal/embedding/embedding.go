package embedding

import (
	"context"
	"fmt"

	"taglens/internal/config"
)

// Embedder converts text into dense vectors. Implementations must return
// vectors of a fixed dimension for a given model.
type Embedder interface {
	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts in order; the result has one vector per
	// input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the configured model name.
	Name() string
}

// New constructs an embedding backend from configuration.
func New(cfg *config.BackendConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg)
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: '%s'", cfg.Provider)
	}
}
