// Package llm provides a unified text-generation interface over multiple LLM
// providers (OpenAI, Ollama, Gemini, Anthropic) with streaming collection,
// runaway-output detection, call timeouts and a fallback router.
package llm

import (
	"context"
	"errors"
	"time"
)

// Provider names for routing and configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Common errors returned by LLM providers.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrContextLength = errors.New("llm: context length exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrNoProviders   = errors.New("llm: no providers configured")
	ErrCallTimeout   = errors.New("llm: call timed out")
	ErrRunawayOutput = errors.New("llm: runaway output detected")
	ErrEmptyResponse = errors.New("llm: empty response")
)

// DefaultCallTimeout bounds a single streamed call.
const DefaultCallTimeout = 120 * time.Second

// Request is a single text-in request. All structure is conveyed in the
// prompt; the only switch is WebSearch, which enables the provider's
// search grounding when it has one.
type Request struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	WebSearch   bool    `json:"web_search,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Err     error  `json:"-"`
}

// LLMProvider is the interface that all LLM backends must implement.
type LLMProvider interface {
	// Name returns the provider identifier (e.g., "openai", "ollama").
	Name() string

	// Models returns the list of commonly available models.
	Models() []string

	// Stream sends the request and returns a channel of text chunks.
	// The channel is closed when the response is complete or ctx is done.
	Stream(ctx context.Context, req *Request) (<-chan StreamChunk, error)

	// Ping checks if the provider is reachable and the API key is valid.
	Ping(ctx context.Context) error
}

// send delivers a chunk unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
