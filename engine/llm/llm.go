// Package llm wraps an OpenAI-compatible chat endpoint (vLLM and similar
// servers) for grounded answer generation.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultMaxTokens bounds a single completion.
	DefaultMaxTokens = 512
	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7
)

// Client generates chat completions.
type Client struct {
	api   openai.Client
	model string
}

// Opts configures a Client. APIKey is usually "EMPTY" for vLLM.
type Opts struct {
	BaseURL string
	APIKey  string
	Model   string
}

// New creates a chat client.
func New(opts Opts) *Client {
	if opts.APIKey == "" {
		opts.APIKey = "EMPTY"
	}
	return &Client{
		api: openai.NewClient(
			option.WithBaseURL(opts.BaseURL),
			option.WithAPIKey(opts.APIKey),
		),
		model: opts.Model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// GenParams tunes one generation. Zero values fall back to defaults.
type GenParams struct {
	MaxTokens   int
	Temperature float64
}

func (p GenParams) withDefaults() GenParams {
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Temperature <= 0 {
		p.Temperature = DefaultTemperature
	}
	return p
}

// Chat generates a non-streaming completion for the given messages.
func (c *Client) Chat(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, p GenParams) (string, error) {
	p = p.withDefaults()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(p.MaxTokens)),
		Temperature: openai.Float(p.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream generates a streaming completion, invoking emit for each
// content delta. Stops on stream end, stream error, or context cancel.
func (c *Client) ChatStream(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, p GenParams, emit func(delta string) error) error {
	p = p.withDefaults()
	stream := c.api.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(p.MaxTokens)),
		Temperature: openai.Float(p.Temperature),
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return fmt.Errorf("llm: emit delta: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("llm: chat stream: %w", err)
	}
	return nil
}
