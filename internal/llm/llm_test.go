package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ════════════════════════════════════════════════════════════════════
// Test doubles
// ════════════════════════════════════════════════════════════════════

// scriptedProvider streams canned chunks, or fails Stream with openErr.
type scriptedProvider struct {
	name    string
	chunks  []string
	openErr error
	hang    bool
	calls   atomic.Int32
	lastReq *Request
}

func (s *scriptedProvider) Name() string                   { return s.name }
func (s *scriptedProvider) Models() []string               { return []string{s.name + "-model"} }
func (s *scriptedProvider) Ping(ctx context.Context) error { return s.openErr }

func (s *scriptedProvider) Stream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	s.calls.Add(1)
	s.lastReq = req
	if s.openErr != nil {
		return nil, s.openErr
	}
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range s.chunks {
			if !send(ctx, ch, StreamChunk{Content: c}) {
				return
			}
		}
		if s.hang {
			<-ctx.Done()
			return
		}
		send(ctx, ch, StreamChunk{Done: true})
	}()
	return ch, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// ════════════════════════════════════════════════════════════════════
// loop.go
// ════════════════════════════════════════════════════════════════════

func TestLoopDetector_RepeatedTail(t *testing.T) {
	d := NewLoopDetector()
	block := "The company shows consistent growth in revenue and margins. "
	var err error
	for i := 0; i < 20 && err == nil; i++ {
		err = d.Feed(block)
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunawayOutput)
}

func TestLoopDetector_FillerPhrases(t *testing.T) {
	d := NewLoopDetector()
	for i := 0; i < 6; i++ {
		d.buf.WriteString(fmt.Sprintf("Let me think about item %d in a different way %s. ", i, strings.Repeat("x", i*7)))
	}
	err := d.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "let me think")
}

func TestLoopDetector_RepeatedTicker(t *testing.T) {
	d := NewLoopDetector()
	d.buf.WriteString(`{"results":[{"ticker":"WEGE3","score":80},{"ticker":"ITUB4","score":70},` +
		`{"ticker":"WEGE3","score":81},{"ticker": "wege3","score":82}]}`)
	err := d.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEGE3")
}

func TestLoopDetector_NormalTextPasses(t *testing.T) {
	d := NewLoopDetector()
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, `{"ticker":"TICK%d","score":%d,"reason":"distinct narrative number %d"},`, i, 50+i, i*i)
	}
	assert.NoError(t, d.Feed(sb.String()))
	assert.NoError(t, d.Check())
}

// ════════════════════════════════════════════════════════════════════
// collect.go
// ════════════════════════════════════════════════════════════════════

func TestCollect_JoinsChunks(t *testing.T) {
	p := &scriptedProvider{name: "fake", chunks: []string{"Hello", ", ", "world"}}
	text, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
}

func TestCollect_Timeout(t *testing.T) {
	p := &scriptedProvider{name: "slow", chunks: []string{"partial"}, hang: true}
	start := time.Now()
	_, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCollect_Empty(t *testing.T) {
	p := &scriptedProvider{name: "mute", chunks: []string{"  ", "\n"}}
	_, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, time.Second)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestCollect_Runaway(t *testing.T) {
	chunks := make([]string, 50)
	for i := range chunks {
		chunks[i] = "Analyzing the fundamentals of the company once again now. "
	}
	p := &scriptedProvider{name: "loopy", chunks: chunks, hang: true}
	_, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, 5*time.Second)
	assert.ErrorIs(t, err, ErrRunawayOutput)
}

func TestCollect_ShortReplyIsCheckedAtEnd(t *testing.T) {
	p := &scriptedProvider{name: "stalled", chunks: []string{
		"Let me think. ", "Let me think. ", "Let me think. ", "Let me think. ", "Let me think.",
	}}
	_, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, time.Second)
	assert.ErrorIs(t, err, ErrRunawayOutput)

	tail := `{"results": [{"ticker": "PETR4"}, {"ticker": "PETR4"}, {"ticker": "PETR4"}]}`
	p = &scriptedProvider{name: "stalled", chunks: []string{tail}}
	_, err = Collect(context.Background(), p, &Request{Prompt: "hi"}, time.Second)
	assert.ErrorIs(t, err, ErrRunawayOutput)
}

func TestCollect_StreamError(t *testing.T) {
	p := &scriptedProvider{name: "down", openErr: ErrProviderDown}
	_, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, time.Second)
	assert.ErrorIs(t, err, ErrProviderDown)
}

// ════════════════════════════════════════════════════════════════════
// router.go
// ════════════════════════════════════════════════════════════════════

func TestRouterBasic(t *testing.T) {
	r := NewRouter("primary")
	r.RegisterProvider(&scriptedProvider{name: "primary"})
	r.RegisterProvider(&scriptedProvider{name: "backup"})

	p, ok := r.GetProvider("primary")
	require.True(t, ok)
	assert.Equal(t, "primary", p.Name())
	assert.Equal(t, []string{"backup", "primary"}, r.ProviderNames())
}

func TestRouterGenerate(t *testing.T) {
	r := NewRouter("main")
	r.RegisterProvider(&scriptedProvider{name: "main", chunks: []string{"from ", "main"}})

	text, err := r.Generate(context.Background(), &Request{Prompt: "test"})
	require.NoError(t, err)
	assert.Equal(t, "from main", text)
}

func TestRouterRetriesWithBackoff(t *testing.T) {
	var delays []time.Duration
	r := NewRouter("flaky", WithMaxRetries(3), WithRetryDelay(time.Second))
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	p := &scriptedProvider{name: "flaky", openErr: ErrRateLimit}
	r.RegisterProvider(p)

	_, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.EqualValues(t, 4, p.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestRouterFallback(t *testing.T) {
	r := NewRouter("primary", WithFallbacks("backup"), WithMaxRetries(1))
	r.sleep = noSleep
	primary := &scriptedProvider{name: "primary", openErr: ErrProviderDown}
	r.RegisterProvider(primary)
	r.RegisterProvider(&scriptedProvider{name: "backup", chunks: []string{"from backup"}})

	text, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from backup", text)
	assert.EqualValues(t, 2, primary.calls.Load())
}

func TestRouterTimeoutIsTerminal(t *testing.T) {
	r := NewRouter("slow", WithFallbacks("backup"), WithCallTimeout(30*time.Millisecond))
	r.sleep = noSleep
	slow := &scriptedProvider{name: "slow", hang: true}
	backup := &scriptedProvider{name: "backup", chunks: []string{"ok"}}
	r.RegisterProvider(slow)
	r.RegisterProvider(backup)

	_, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrCallTimeout)
	assert.EqualValues(t, 1, slow.calls.Load())
	assert.EqualValues(t, 0, backup.calls.Load())
}

func TestRouterRetriesRunawayThenFallsBack(t *testing.T) {
	chunks := make([]string, 50)
	for i := range chunks {
		chunks[i] = "Analyzing the fundamentals of the company once again now. "
	}
	r := NewRouter("loopy", WithFallbacks("backup"), WithMaxRetries(2))
	r.sleep = noSleep
	loopy := &scriptedProvider{name: "loopy", chunks: chunks, hang: true}
	backup := &scriptedProvider{name: "backup", chunks: []string{"from backup"}}
	r.RegisterProvider(loopy)
	r.RegisterProvider(backup)

	text, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from backup", text)
	assert.EqualValues(t, 3, loopy.calls.Load())
	assert.EqualValues(t, 1, backup.calls.Load())
}

func TestRouterRunawayEverywhere(t *testing.T) {
	r := NewRouter("loopy", WithMaxRetries(1))
	r.sleep = noSleep
	r.RegisterProvider(&scriptedProvider{name: "loopy", chunks: []string{
		"let me think. let me think. let me think. let me think. let me think.",
	}})

	_, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrRunawayOutput)
}

func TestRouterNonRetryableError(t *testing.T) {
	r := NewRouter("main", WithFallbacks("backup"))
	r.sleep = noSleep
	main := &scriptedProvider{name: "main", openErr: fmt.Errorf("%w: bad key", ErrNoAPIKey)}
	backup := &scriptedProvider{name: "backup", chunks: []string{"ok"}}
	r.RegisterProvider(main)
	r.RegisterProvider(backup)

	_, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.EqualValues(t, 1, main.calls.Load())
	assert.EqualValues(t, 0, backup.calls.Load())
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("missing")
	_, err := r.Generate(context.Background(), &Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestRouterHealthCheck(t *testing.T) {
	r := NewRouter("a")
	r.RegisterProvider(&scriptedProvider{name: "a"})
	r.RegisterProvider(&scriptedProvider{name: "b", openErr: ErrProviderDown})

	results := r.HealthCheck(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results["a"])
	assert.ErrorIs(t, results["b"], ErrProviderDown)
}

func TestRouterRateLimited(t *testing.T) {
	r := NewRouter("main", WithRateLimit(1000, 1))
	r.RegisterProvider(&scriptedProvider{name: "main", chunks: []string{"ok"}})
	for i := 0; i < 3; i++ {
		text, err := r.Generate(context.Background(), &Request{Prompt: "x"})
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	}
}

func TestIsNonRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimit, false},
		{ErrProviderDown, false},
		{fmt.Errorf("wrapped: %w", ErrNoAPIKey), true},
		{ErrInvalidModel, true},
		{ErrContextLength, true},
		{errors.New("invalid API key supplied"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isNonRetryable(tt.err), "%v", tt.err)
	}
}

// ════════════════════════════════════════════════════════════════════
// openai.go
// ════════════════════════════════════════════════════════════════════

func TestOpenAIProviderNew(t *testing.T) {
	_, err := NewOpenAIProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewOpenAIProvider("sk-test", WithOpenAIModel("gpt-4o-mini"))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
	assert.Equal(t, "gpt-4o-mini", p.model)
}

func TestOpenAIStream(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"Hello"},"index":0}]}`,
		``,
		`data: {"choices":[{"delta":{"content":" world"},"index":0}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop","index":0}]}`,
		`data: [DONE]`,
	})

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	text, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestOpenAIWebSearchRequest(t *testing.T) {
	var body openAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := Collect(context.Background(), p, &Request{Prompt: "rank", System: "sys", WebSearch: true, Temperature: 0.4}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-search-preview", body.Model)
	assert.NotNil(t, body.WebSearchOptions)
	assert.Nil(t, body.Temperature)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "rank", body.Messages[1].Content)
}

func TestOpenAIErrorHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ErrNoAPIKey},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimit},
		{"context", http.StatusBadRequest, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, ErrContextLength},
		{"model", http.StatusNotFound, `{"error":{"message":"nope","code":"model_not_found"}}`, ErrInvalidModel},
		{"server", http.StatusBadGateway, `upstream`, ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
			_, err := p.Stream(context.Background(), &Request{Prompt: "hi"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	good, _ := NewOpenAIProvider("sk-good", WithOpenAIBaseURL(server.URL))
	assert.NoError(t, good.Ping(context.Background()))

	bad, _ := NewOpenAIProvider("sk-bad", WithOpenAIBaseURL(server.URL))
	assert.ErrorIs(t, bad.Ping(context.Background()), ErrNoAPIKey)
}

func TestOpenAIStreamParseError(t *testing.T) {
	server := sseServer(t, []string{`data: {not json`})
	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream parse")
}

// ════════════════════════════════════════════════════════════════════
// ollama.go
// ════════════════════════════════════════════════════════════════════

func TestOllamaStream(t *testing.T) {
	var body ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprintln(w, `{"model":"qwen2.5:7b","message":{"role":"assistant","content":"Olá"},"done":false}`)
		fmt.Fprintln(w, `{"model":"qwen2.5:7b","message":{"role":"assistant","content":" mundo"},"done":false}`)
		fmt.Fprintln(w, `{"model":"qwen2.5:7b","message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL)
	require.NoError(t, err)
	text, err := Collect(context.Background(), p, &Request{Prompt: "oi", MaxTokens: 256}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Olá mundo", text)
	assert.True(t, body.Stream)
	require.NotNil(t, body.Options)
	assert.Equal(t, 256, body.Options.NumPredict)
}

func TestOllamaStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	_, err := Collect(context.Background(), p, &Request{Prompt: "oi"}, time.Second)
	assert.ErrorIs(t, err, ErrProviderDown)
}

func TestOllamaUnknownModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model not found"}`)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	_, err := p.Stream(context.Background(), &Request{Prompt: "oi"})
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL + "/")
	assert.NoError(t, p.Ping(context.Background()))
}

// ════════════════════════════════════════════════════════════════════
// gemini.go / anthropic.go
// ════════════════════════════════════════════════════════════════════

func TestGeminiProviderNew(t *testing.T) {
	_, err := NewGeminiProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewGeminiProvider("AIza-test", WithGeminiModel("gemini-2.5-flash"))
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())
	assert.Equal(t, "gemini-2.5-flash", p.model)
}

func TestGeminiBuildConfig(t *testing.T) {
	p, err := NewGeminiProvider("AIza-test")
	require.NoError(t, err)

	cfg := p.buildConfig(&Request{Prompt: "x", System: "be brief", Temperature: 0.2, MaxTokens: 100, WebSearch: true})
	require.NotNil(t, cfg.SystemInstruction)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.2, float64(*cfg.Temperature), 1e-6)
	assert.EqualValues(t, 100, cfg.MaxOutputTokens)
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)

	plain := p.buildConfig(&Request{Prompt: "x"})
	assert.Empty(t, plain.Tools)
	assert.Nil(t, plain.Temperature)
}

func TestAnthropicProviderNew(t *testing.T) {
	_, err := NewAnthropicProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewAnthropicProvider("sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())
}

func TestAnthropicStream(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n",
			"event: ping\ndata: {\"type\":\"ping\"}\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n",
		}
		for _, e := range events {
			fmt.Fprintln(w, e)
		}
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test", WithAnthropicBaseURL(server.URL))
	text, err := Collect(context.Background(), p, &Request{Prompt: "hi", WebSearch: true}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)

	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.Equal(t, "web_search", tools[0].(map[string]any)["name"])
}

func TestAnthropicErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow"}}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test", WithAnthropicBaseURL(server.URL))
	_, err := Collect(context.Background(), p, &Request{Prompt: "hi"}, 2*time.Second)
	assert.ErrorIs(t, err, ErrRateLimit)
}
