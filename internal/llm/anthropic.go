package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicModels lists commonly available Anthropic models.
var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// anthropicMaxTokens is required by the Messages API.
const anthropicMaxTokens = 8192

// AnthropicProvider implements LLMProvider for Anthropic's Messages API.
// Web-search requests attach the server-side web search tool.
type AnthropicProvider struct {
	model  string
	client anthropic.Client
	opts   []option.RequestOption
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.opts = append(p.opts, option.WithBaseURL(strings.TrimRight(url, "/")+"/"))
	}
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.opts = append(p.opts, option.WithHTTPClient(client)) }
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &AnthropicProvider{
		model: "claude-sonnet-4-20250514",
		// retries belong to the router
		opts: []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = anthropic.NewClient(p.opts...)
	return p, nil
}

func (p *AnthropicProvider) Name() string     { return ProviderAnthropic }
func (p *AnthropicProvider) Models() []string { return anthropicModels }

// Ping verifies the API key by fetching the configured model.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, anthropic.ModelGetParams{}); err != nil {
		return mapAnthropicError(err)
	}
	return nil
}

// Stream sends a streaming messages request and forwards text deltas.
func (p *AnthropicProvider) Stream(ctx context.Context, r *Request) (<-chan StreamChunk, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(r))

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			switch event := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				delta, ok := event.Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				if !send(ctx, ch, StreamChunk{Content: delta.Text}) {
					return
				}
			case anthropic.MessageStopEvent:
				send(ctx, ch, StreamChunk{Done: true})
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, StreamChunk{Err: mapAnthropicError(err)})
			return
		}
		send(ctx, ch, StreamChunk{Done: true})
	}()
	return ch, nil
}

// ── Helpers ──

func (p *AnthropicProvider) buildParams(r *Request) anthropic.MessageNewParams {
	model := p.model
	if r.Model != "" {
		model = r.Model
	}
	maxTokens := int64(anthropicMaxTokens)
	if r.MaxTokens > 0 {
		maxTokens = int64(r.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(r.Prompt))},
	}
	if r.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: r.System}}
	}
	if r.Temperature > 0 {
		params.Temperature = anthropic.Float(r.Temperature)
	}
	if r.WebSearch {
		params.Tools = []anthropic.ToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{MaxUses: anthropic.Int(5)},
		}}
	}
	return params
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: anthropic: %v", ErrProviderDown, err)
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrNoAPIKey, err)
	case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == 529:
		return fmt.Errorf("%w: %v", ErrRateLimit, err)
	case apiErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrInvalidModel, err)
	case apiErr.StatusCode == http.StatusBadRequest && strings.Contains(err.Error(), "prompt is too long"):
		return fmt.Errorf("%w: %v", ErrContextLength, err)
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	return fmt.Errorf("anthropic: API error (%d): %w", apiErr.StatusCode, err)
}
