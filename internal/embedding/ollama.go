package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"taglens/internal/config"
)

// Ollama embeds text through a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama creates an Ollama-backed embedder.
func NewOllama(cfg *config.BackendConfig) (*Ollama, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL '%s': %w", baseURL, err)
	}
	return &Ollama{
		client: api.NewClient(u, http.DefaultClient),
		model:  cfg.Model,
	}, nil
}

// Embed embeds a single text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in a single request.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.model,
		Input: texts,
	})
	if err != nil {
		return nil, &ServiceError{Provider: "ollama", Err: err}
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &ServiceError{Provider: "ollama",
			Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))}
	}
	return resp.Embeddings, nil
}

// Name returns the configured model name.
func (o *Ollama) Name() string { return o.model }
