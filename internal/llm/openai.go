package llm

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"taglens/internal/config"
)

// OpenAI generates completions through an OpenAI-compatible chat API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-backed LLM. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAI(cfg *config.BackendConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(conf),
		model:  cfg.Model,
	}, nil
}

// Generate sends prompt as a single user message and returns the first
// choice.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", wrapErr(ctx, "openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", &ServiceError{Provider: "openai", Err: fmt.Errorf("empty completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Name returns the configured model name.
func (o *OpenAI) Name() string { return o.model }
