// Package openai provides a reasoning.Provider backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/reasoning"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configures the OpenAI provider adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Provider wraps the OpenAI Chat Completions API behind reasoning.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

var _ reasoning.Provider = (*Provider)(nil)

// NewProvider creates an OpenAI provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts}
}

// NewProviderFromClient creates an OpenAI provider from an existing client.
func NewProviderFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Generate performs a single non-streaming chat completion. Constraint
// overrides from the request take precedence over the adapter defaults.
func (p *Provider) Generate(ctx context.Context, req core.ReasoningRequest) (core.ReasoningResponse, error) {
	maxTokens := p.opts.MaxCompletionTokens
	if req.Constraints.MaxTokens > 0 {
		maxTokens = req.Constraints.MaxTokens
	}
	temperature := p.opts.Temperature
	if req.Constraints.Temperature > 0 {
		temperature = req.Constraints.Temperature
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               p.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.ReasoningResponse{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return core.ReasoningResponse{}, &core.ProviderError{
			Provider: "openai",
			Kind:     core.FailureInvalidResponse,
			Err:      fmt.Errorf("no choices returned"),
		}
	}

	return core.ReasoningResponse{
		Text:       resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Info implements reasoning.Provider.
func (p *Provider) Info() reasoning.Info {
	return reasoning.Info{Name: "openai", Model: p.opts.Model}
}

// classify maps SDK errors onto the gateway failure taxonomy so retry policy
// applies uniformly across providers.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		kind := core.FailureProviderUnavailable
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			kind = core.FailureRateLimited
		case apierr.StatusCode == http.StatusRequestTimeout:
			kind = core.FailureTimeout
		}
		return &core.ProviderError{Provider: "openai", Kind: kind, Err: err}
	}
	return fmt.Errorf("openai api error: %w", err)
}
