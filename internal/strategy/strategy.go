// Package strategy implements the deterministic valuation strategies and the
// factory that dispatches over them. Strategies are pure: analysis and ranking
// read the caller's companies and never mutate them.
package strategy

import (
	"context"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
)

// DefaultLimit caps a ranking when params.Limit is zero.
const DefaultLimit = 10

// ── Strategy Interface ──

// Strategy is the contract shared by every ranking model.
type Strategy interface {
	// Type returns the strategy's type token.
	Type() models.StrategyType

	// Name returns a human-readable strategy name.
	Name() string

	// ValidateCompanyData reports whether the company carries the minimum
	// data needed for a meaningful verdict.
	ValidateCompanyData(c *models.CompanyData, p models.StrategyParams) bool

	// RunAnalysis evaluates one company. It never fails; missing data is
	// reflected in the criteria.
	RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis

	// RunRanking filters, analyzes and orders a company universe.
	RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error)

	// GenerateRational describes the methodology for the given params.
	GenerateRational(p models.StrategyParams) string
}

// ranked is implemented by strategies that plug into the shared ranking
// pipeline. rankingKey orders eligible companies; it is distinct from the
// criteria pass-rate score.
type ranked interface {
	Strategy
	rankingKey(c *models.CompanyData, a models.StrategyAnalysis, p models.StrategyParams) float64
}

// value reads a metric, averaging over the trailing window when requested.
func value(c *models.CompanyData, m fundamental.Metric, p models.StrategyParams) *float64 {
	return fundamental.Value(c, m, p.Use7YearAverages)
}

func limitOf(p models.StrategyParams) int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// capped scales v against target into [0,1].
func capped(v *float64, target float64) float64 {
	if v == nil || target <= 0 {
		return 0
	}
	return clamp(*v/target, 0, 1)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
