package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ollamaModels lists commonly used Ollama models.
var ollamaModels = []string{
	"qwen2.5:32b",
	"qwen2.5:14b",
	"qwen2.5:7b",
	"llama3.3:70b",
	"llama3.1:8b",
	"mistral:7b",
	"deepseek-r1:14b",
	"gemma2:27b",
}

// OllamaProvider implements LLMProvider for local Ollama instances. Local
// models have no web search; the flag is ignored.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures the Ollama provider.
type OllamaOption func(*OllamaProvider)

// WithOllamaModel sets the default model.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.model = model }
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.client = client }
}

// NewOllamaProvider creates an Ollama provider.
// baseURL is the Ollama server URL (e.g., "http://localhost:11434").
func NewOllamaProvider(baseURL string, opts ...OllamaOption) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	p := &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   "qwen2.5:7b",
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *OllamaProvider) Name() string     { return ProviderOllama }
func (p *OllamaProvider) Models() []string { return ollamaModels }

// Ping checks if the Ollama server is reachable.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProviderDown, resp.StatusCode)
	}
	return nil
}

// Stream sends a streaming chat request to Ollama using /api/chat.
func (p *OllamaProvider) Stream(ctx context.Context, r *Request) (<-chan StreamChunk, error) {
	data, err := json.Marshal(p.buildRequest(r))
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrInvalidModel, strings.TrimSpace(string(bodyBytes)))
		}
		return nil, fmt.Errorf("ollama: HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	ch := make(chan StreamChunk, 64)
	go p.readStream(ctx, resp.Body, ch)
	return ch, nil
}

// ── Internal Types ──

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// ── Helpers ──

func (p *OllamaProvider) buildRequest(r *Request) ollamaChatRequest {
	model := p.model
	if r.Model != "" {
		model = r.Model
	}

	var messages []ollamaMessage
	if r.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: r.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: r.Prompt})

	body := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if r.Temperature > 0 || r.MaxTokens > 0 {
		body.Options = &ollamaOptions{Temperature: r.Temperature, NumPredict: r.MaxTokens}
	}
	return body
}

func (p *OllamaProvider) readStream(ctx context.Context, body io.ReadCloser, ch chan<- StreamChunk) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Ollama may return large lines; increase buffer
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			send(ctx, ch, StreamChunk{Err: fmt.Errorf("ollama: stream parse: %w", err)})
			return
		}
		if chunk.Error != "" {
			send(ctx, ch, StreamChunk{Err: fmt.Errorf("%w: ollama: %s", ErrProviderDown, chunk.Error)})
			return
		}

		sc := StreamChunk{
			Content: chunk.Message.Content,
			Done:    chunk.Done,
		}
		if !send(ctx, ch, sc) || chunk.Done {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		send(ctx, ch, StreamChunk{Err: fmt.Errorf("ollama: stream read: %w", err)})
	}
}
