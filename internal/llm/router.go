package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/seenimoa/openrank/internal/config"
)

// Router routes generation requests to the primary provider and walks the
// fallback chain when it fails. Each provider call is collected with a
// wall-clock timeout and retried with exponential backoff on transport
// errors.
type Router struct {
	mu          sync.RWMutex
	providers   map[string]LLMProvider
	primary     string
	fallbacks   []string
	maxRetries  int
	retryDelay  time.Duration
	callTimeout time.Duration
	limiter     *rate.Limiter
	log         zerolog.Logger
	sleep       func(context.Context, time.Duration) error
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of extra attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries. The delay doubles on
// every attempt.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithCallTimeout bounds each streamed call.
func WithCallTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.callTimeout = d }
}

// WithRateLimit limits outbound calls to rps requests per second.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(r *Router) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the router's logger.
func WithLogger(log zerolog.Logger) RouterOption {
	return func(r *Router) { r.log = log.With().Str("component", "llm/router").Logger() }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:   make(map[string]LLMProvider),
		primary:     primary,
		maxRetries:  3,
		retryDelay:  1 * time.Second,
		callTimeout: DefaultCallTimeout,
		log:         zerolog.Nop(),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Generate sends req through the provider chain and returns the collected
// text. A timeout ends the call immediately; runaway output and transport
// failures are retried with backoff, then move on to the next provider.
func (r *Router) Generate(ctx context.Context, req *Request) (string, error) {
	chain := r.providerChain()
	if len(chain) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for _, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}

		text, err := r.generateWithRetry(ctx, provider, req)
		if err == nil {
			return text, nil
		}

		lastErr = err
		r.log.Warn().Err(err).Str("provider", providerName).Msg("provider failed, trying next")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isTerminal(err) || isNonRetryable(err) {
			return "", err
		}
	}

	if lastErr == nil {
		return "", ErrNoProviders
	}
	return "", fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p LLMProvider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}

// ProviderNames returns the names of all registered providers.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) generateWithRetry(ctx context.Context, provider LLMProvider, req *Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay << (attempt - 1)
			r.log.Debug().
				Str("provider", provider.Name()).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying")
			if err := r.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		if err := r.wait(ctx); err != nil {
			return "", err
		}

		text, err := Collect(ctx, provider, req, r.callTimeout)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if isTerminal(err) || isNonRetryable(err) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (r *Router) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isTerminal reports failures that end the call without retry or fallback.
func isTerminal(err error) bool {
	return errors.Is(err, ErrCallTimeout)
}

func isNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength) ||
		strings.Contains(err.Error(), "API key")
}

// NewRouterFromConfig creates a fully configured Router from the application config.
// It instantiates the appropriate providers based on available API keys.
func NewRouterFromConfig(cfg *config.Config, log zerolog.Logger) (*Router, error) {
	router := NewRouter(cfg.LLM.Primary,
		WithMaxRetries(cfg.LLM.MaxRetries),
		WithRetryDelay(cfg.LLM.RetryDelay),
		WithCallTimeout(cfg.LLM.CallTimeout),
		WithRateLimit(cfg.LLM.RateLimit, cfg.LLM.Burst),
		WithLogger(log),
	)

	var fallbacks []string
	registered := 0
	register := func(p LLMProvider) {
		router.RegisterProvider(p)
		registered++
		if cfg.LLM.Primary != p.Name() {
			fallbacks = append(fallbacks, p.Name())
		}
	}

	if cfg.LLM.OpenAIKey != "" {
		p, err := NewOpenAIProvider(cfg.LLM.OpenAIKey,
			WithOpenAIModel(defaultOpenAIModel(cfg.LLM.Model)),
		)
		if err == nil {
			register(p)
		}
	}

	// Ollama needs no key, just a URL
	if cfg.LLM.OllamaURL != "" {
		model := cfg.LLM.Model
		if cfg.LLM.Primary != ProviderOllama {
			model = "qwen2.5:7b"
		}
		p, err := NewOllamaProvider(cfg.LLM.OllamaURL,
			WithOllamaModel(model),
		)
		if err == nil {
			register(p)
		}
	}

	if cfg.LLM.GeminiKey != "" {
		p, err := NewGeminiProvider(cfg.LLM.GeminiKey,
			WithGeminiModel(defaultGeminiModel(cfg.LLM.Model)),
		)
		if err == nil {
			register(p)
		}
	}

	if cfg.LLM.AnthropicKey != "" {
		p, err := NewAnthropicProvider(cfg.LLM.AnthropicKey,
			WithAnthropicModel(defaultAnthropicModel(cfg.LLM.Model)),
		)
		if err == nil {
			register(p)
		}
	}

	if registered == 0 {
		return nil, ErrNoProviders
	}

	router.fallbacks = fallbacks
	return router, nil
}

func defaultOpenAIModel(model string) string {
	if strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") {
		return model
	}
	return "gpt-4o"
}

func defaultGeminiModel(model string) string {
	if strings.HasPrefix(model, "gemini") {
		return model
	}
	return "gemini-2.0-flash"
}

func defaultAnthropicModel(model string) string {
	if strings.HasPrefix(model, "claude") {
		return model
	}
	return "claude-sonnet-4-20250514"
}
