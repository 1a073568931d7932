package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// geminiModels lists commonly available Gemini models.
var geminiModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
}

// GeminiProvider implements LLMProvider on the Gemini API. Web-search
// requests are grounded with the Google Search tool.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	client     *genai.Client
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.httpClient = client }
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &GeminiProvider{
		apiKey: apiKey,
		model:  "gemini-2.0-flash",
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      p.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Name() string     { return ProviderGemini }
func (p *GeminiProvider) Models() []string { return geminiModels }

// Ping verifies the API key by fetching the configured model.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return mapGeminiError(err)
	}
	return nil
}

// Stream runs GenerateContentStream and forwards each response's text.
func (p *GeminiProvider) Stream(ctx context.Context, r *Request) (<-chan StreamChunk, error) {
	model := p.model
	if r.Model != "" {
		model = r.Model
	}
	contents := []*genai.Content{genai.NewContentFromText(r.Prompt, genai.RoleUser)}
	config := p.buildConfig(r)

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				send(ctx, ch, StreamChunk{Err: mapGeminiError(err)})
				return
			}
			if !send(ctx, ch, StreamChunk{Content: resp.Text()}) {
				return
			}
		}
		send(ctx, ch, StreamChunk{Done: true})
	}()
	return ch, nil
}

// ── Helpers ──

func (p *GeminiProvider) buildConfig(r *Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if r.System != "" {
		config.SystemInstruction = genai.NewContentFromText(r.System, genai.RoleUser)
	}
	if r.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(r.Temperature))
	}
	if r.MaxTokens > 0 {
		config.MaxOutputTokens = int32(r.MaxTokens)
	}
	if r.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return config
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gemini: %v", ErrProviderDown, err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, apiErr.Message)
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrNoAPIKey, apiErr.Message)
	case apiErr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrInvalidModel, apiErr.Message)
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
		return fmt.Errorf("%w: %s", ErrNoAPIKey, apiErr.Message)
	case apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrProviderDown, apiErr.Message)
	}
	return fmt.Errorf("gemini: API error (%d): %s", apiErr.Code, apiErr.Message)
}
