// Package anthropic provides a reasoning.Provider backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/reasoning"
)

// Options configures the Anthropic provider adapter (model id, temperature,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic Messages API behind reasoning.Provider.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

var _ reasoning.Provider = (*Provider)(nil)

// NewProvider creates an Anthropic provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts}
}

// NewProviderFromClient creates an Anthropic provider from an existing client.
func NewProviderFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Generate performs a single non-streaming Messages call. Constraint overrides
// from the request take precedence over the adapter defaults.
func (p *Provider) Generate(ctx context.Context, req core.ReasoningRequest) (core.ReasoningResponse, error) {
	maxTokens := p.opts.MaxTokens
	if req.Constraints.MaxTokens > 0 {
		maxTokens = req.Constraints.MaxTokens
	}
	temperature := p.opts.Temperature
	if req.Constraints.Temperature > 0 {
		temperature = req.Constraints.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return core.ReasoningResponse{}, classify(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	return core.ReasoningResponse{
		Text:       text,
		Model:      string(resp.Model),
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

// Info implements reasoning.Provider.
func (p *Provider) Info() reasoning.Info {
	return reasoning.Info{Name: "anthropic", Model: string(p.opts.Model)}
}

// classify maps SDK errors onto the gateway failure taxonomy so retry policy
// applies uniformly across providers.
func classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		kind := core.FailureProviderUnavailable
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			kind = core.FailureRateLimited
		case apierr.StatusCode == http.StatusRequestTimeout:
			kind = core.FailureTimeout
		}
		return &core.ProviderError{Provider: "anthropic", Kind: kind, Err: err}
	}
	return fmt.Errorf("anthropic api error: %w", err)
}
