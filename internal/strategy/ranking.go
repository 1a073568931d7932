package strategy

import (
	"context"
	"sort"

	"github.com/seenimoa/openrank/internal/analysis/technical"
	"github.com/seenimoa/openrank/pkg/models"
)

// candidate is an eligible company waiting to be ordered.
type candidate struct {
	company  *models.CompanyData
	analysis models.StrategyAnalysis
	key      float64
}

// rank runs the shared pipeline: universe filters → validation → analysis →
// eligible only → composite key → sort desc → dedupe → limit → optional
// technical prioritization.
func rank(ctx context.Context, s ranked, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	universe := ApplyUniverseFilters(companies, p)

	pool := make([]candidate, 0, len(universe))
	for _, c := range universe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.ValidateCompanyData(c, p) {
			continue
		}
		a := s.RunAnalysis(c, p)
		if !a.IsEligible {
			continue
		}
		pool = append(pool, candidate{company: c, analysis: a, key: s.rankingKey(c, a, p)})
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].key > pool[j].key })

	pool = Dedupe(pool,
		func(c candidate) string { return c.company.Ticker },
		func(cur, cand candidate) bool { return cand.company.MarketCap() > cur.company.MarketCap() },
	)

	if limit := limitOf(p); len(pool) > limit {
		pool = pool[:limit]
	}
	if p.UseTechnicalAnalysis {
		pool = technical.Prioritize(pool, func(c candidate) []float64 { return c.company.Closes() })
	}

	out := make([]models.RankBuilderResult, len(pool))
	for i, c := range pool {
		out[i] = ToResult(c.company, c.analysis)
	}
	return out, nil
}

// ToResult converts an analysis into a ranking row.
func ToResult(c *models.CompanyData, a models.StrategyAnalysis) models.RankBuilderResult {
	r := models.RankBuilderResult{
		Ticker:       c.Ticker,
		Name:         c.Name,
		Sector:       c.Sector,
		CurrentPrice: c.CurrentPrice,
		Logo:         c.Logo,
		FairValue:    a.FairValue,
		Upside:       a.Upside,
		Rational:     a.Reasoning,
		KeyMetrics:   a.KeyMetrics,
	}
	if a.FairValue != nil && *a.FairValue > 0 && c.CurrentPrice > 0 {
		ratio := c.CurrentPrice / *a.FairValue
		mos := (1 - ratio) * 100
		r.MarginOfSafety = &mos
	}
	return r
}
