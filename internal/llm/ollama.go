package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"taglens/internal/config"
)

// Ollama generates completions through a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama creates an Ollama-backed LLM.
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

// Generate sends prompt to the model and collects the full response.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", wrapErr(ctx, "ollama", err)
	}
	return sb.String(), nil
}

// Name returns the configured model name.
func (o *Ollama) Name() string { return o.model }
