// Package agent implements the AI-orchestrated ranking strategy. A run
// filters the universe, asks an LLM to shortlist candidates, runs every
// deterministic strategy on the shortlist, asks the LLM (with web search) to
// score the batch and falls back to a deterministic weighted ranking whenever
// the LLM stages cannot produce valid output.
package agent

import (
	"context"
	"errors"

	"github.com/seenimoa/openrank/internal/config"
	"github.com/seenimoa/openrank/internal/llm"
)

// ── Errors ──

var (
	// ErrValidation marks LLM output that parsed but broke a structural rule.
	ErrValidation = errors.New("agent: invalid LLM output")
	// ErrParse marks LLM output that no parser could recover.
	ErrParse = errors.New("agent: unparseable LLM output")
)

// ── Generator ──

// Generator turns a single prompt into the full response text. llm.Router
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req *llm.Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req *llm.Request) (string, error) {
	return f(ctx, req)
}

// ── Config ──

// Pipeline defaults.
const (
	DefaultMaxAttempts     = 3
	DefaultWaveSize        = 10
	DefaultMaxCandidates   = 50
	DefaultMinOverallScore = 50.0
	selectionSlack         = 5
	maxSelection           = 15
)

// Config tunes the pipeline.
type Config struct {
	MaxAttempts     int     // per LLM stage
	WaveSize        int     // companies analyzed concurrently
	MaxCandidates   int     // cap after the quality pre-filter
	MinOverallScore float64 // pre-filter keeps scores strictly above this
	Temperature     float64
	MaxTokens       int
	Seed            int64 // fixed random source when non-zero
}

// DefaultConfig returns the stock pipeline settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     DefaultMaxAttempts,
		WaveSize:        DefaultWaveSize,
		MaxCandidates:   DefaultMaxCandidates,
		MinOverallScore: DefaultMinOverallScore,
		Temperature:     0.2,
	}
}

// ConfigFrom maps application settings onto the pipeline config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Ranking.MaxAttempts > 0 {
		c.MaxAttempts = cfg.Ranking.MaxAttempts
	}
	if cfg.Ranking.WaveSize > 0 {
		c.WaveSize = cfg.Ranking.WaveSize
	}
	if cfg.Ranking.MaxCandidates > 0 {
		c.MaxCandidates = cfg.Ranking.MaxCandidates
	}
	if cfg.Ranking.MinOverallScore > 0 {
		c.MinOverallScore = cfg.Ranking.MinOverallScore
	}
	c.Temperature = cfg.LLM.Temperature
	c.MaxTokens = cfg.LLM.MaxTokens
	c.Seed = cfg.Ranking.Seed
	return c
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.WaveSize <= 0 {
		c.WaveSize = def.WaveSize
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = def.MaxCandidates
	}
	if c.MinOverallScore <= 0 {
		c.MinOverallScore = def.MinOverallScore
	}
	return c
}

// selectionTarget is how many companies the LLM shortlists for a limit.
func selectionTarget(limit int) int {
	return min(limit+selectionSlack, maxSelection)
}
