package agent

import (
	"sort"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/internal/strategy"
	"github.com/seenimoa/openrank/pkg/models"
)

// filterCandidates runs the universe filters and the quality pre-filter:
// overall score strictly above the floor, company size, profitability
// (banks and insurers judged on ROE only, missing values kept), one ticker
// per company (largest market cap), then the top MaxCandidates by score.
func filterCandidates(companies []models.CompanyData, p models.StrategyParams, cfg Config) []*models.CompanyData {
	universe := strategy.ApplyUniverseFilters(companies, p)

	pool := make([]*models.CompanyData, 0, len(universe))
	for _, c := range universe {
		if c.OverallScore == nil || *c.OverallScore <= cfg.MinOverallScore {
			continue
		}
		if !profitable(c) {
			continue
		}
		pool = append(pool, c)
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score() > pool[j].Score() })

	pool = strategy.Dedupe(pool,
		func(c *models.CompanyData) string { return c.Ticker },
		func(cur, cand *models.CompanyData) bool { return cand.MarketCap() > cur.MarketCap() },
	)

	if len(pool) > cfg.MaxCandidates {
		pool = pool[:cfg.MaxCandidates]
	}
	return pool
}

func profitable(c *models.CompanyData) bool {
	roe := fundamental.Current(c, fundamental.MetricROE)
	if roe != nil && *roe <= 0 {
		return false
	}
	if fundamental.IsFinancialSector(c.Sector) {
		return true
	}
	margin := fundamental.Current(c, fundamental.MetricNetMargin)
	return margin == nil || *margin > 0
}
