package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	grahamDefaultMargin   = 0.30
	grahamMaxPL           = 15.0
	grahamMaxPVP          = 1.5
	grahamMaxProduct      = 22.5
	grahamMinCurrentRatio = 1.5
	grahamMaxLeverage     = 1.0
	grahamMinROE          = 0.10
	grahamMinPassed       = 6

	// BDRs report on foreign balance sheets; liquidity and pass count are relaxed.
	grahamBDRMinCurrentRatio = 1.0
	grahamBDRMinPassed       = 5
)

// Graham values a company at the Graham number and requires a margin of
// safety plus balance-sheet quality.
type Graham struct{}

func NewGraham() Strategy { return Graham{} }

func (Graham) Type() models.StrategyType { return models.StrategyGraham }
func (Graham) Name() string              { return "Benjamin Graham" }

func (Graham) params(p models.StrategyParams) models.StrategyParams {
	p.MarginOfSafety = orDefault(p.MarginOfSafety, grahamDefaultMargin)
	return p
}

func (Graham) ValidateCompanyData(c *models.CompanyData, _ models.StrategyParams) bool {
	if c.CurrentPrice <= 0 {
		return false
	}
	eps, bvps := fundamental.EPS(c), fundamental.BVPS(c)
	return eps != nil && *eps > 0 && bvps != nil && *bvps > 0
}

func (g Graham) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	p = g.params(p)
	bdr := utils.IsBDR(c.Ticker)

	var fair, upside *float64
	eps, bvps := fundamental.EPS(c), fundamental.BVPS(c)
	if eps != nil && bvps != nil {
		if v := fundamental.GrahamNumber(*eps, *bvps); v > 0 {
			fair = &v
			upside = fundamental.Upside(v, c.CurrentPrice)
		}
	}

	pl := value(c, fundamental.MetricPL, p)
	pvp := value(c, fundamental.MetricPVP, p)
	var product *float64
	if pl != nil && pvp != nil {
		v := *pl * *pvp
		product = &v
	}

	minCR, minPassed := grahamMinCurrentRatio, grahamMinPassed
	if bdr {
		minCR, minPassed = grahamBDRMinCurrentRatio, grahamBDRMinPassed
	}

	e := newEvaluation(8)
	core := e.required("Margin of safety", upside, atLeast(p.MarginOfSafety*100), func(v float64) string {
		return fmt.Sprintf("Upside %.1f%% to Graham value (min %.0f%%)", v, p.MarginOfSafety*100)
	})
	e.optional("P/L", pl, between(0, grahamMaxPL), ratioAtMost("P/L", grahamMaxPL))
	e.optional("P/VP", pvp, between(0, grahamMaxPVP), ratioAtMost("P/VP", grahamMaxPVP))
	e.optional("P/L x P/VP", product, between(0, grahamMaxProduct), ratioAtMost("P/L x P/VP", grahamMaxProduct))
	e.optional("Current ratio", value(c, fundamental.MetricCurrentRatio, p), atLeast(minCR), ratioIs("Current ratio", minCR))
	e.optional("Leverage", value(c, fundamental.MetricNetDebtToEquity, p), atMost(grahamMaxLeverage), ratioAtMost("Net debt/equity", grahamMaxLeverage))
	e.optional("ROE", value(c, fundamental.MetricROE, p), atLeast(grahamMinROE), pctIs("ROE", grahamMinROE))
	e.optional("Earnings growth", value(c, fundamental.MetricEarningsGrowth, p), atLeast(0), pctIs("Earnings growth", 0))

	eligible := core && e.passed() >= minPassed

	metrics := map[string]float64{}
	if fair != nil {
		metrics["grahamNumber"] = *fair
	}
	if upside != nil {
		metrics["upside"] = *upside
	}
	if eps != nil {
		metrics["lpa"] = *eps
	}
	if bvps != nil {
		metrics["vpa"] = *bvps
	}
	if pl != nil {
		metrics["pl"] = *pl
	}
	if pvp != nil {
		metrics["pvp"] = *pvp
	}

	reasoning := fmt.Sprintf("Graham value %s vs price %.2f. %s.",
		utils.FormatOptional(fair, func(v float64) string { return fmt.Sprintf("%.2f", v) }),
		c.CurrentPrice, e.summary())

	return models.StrategyAnalysis{
		IsEligible: eligible,
		Score:      e.score(),
		FairValue:  fair,
		Upside:     upside,
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

func (g Graham) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, g, companies, g.params(p))
}

func (Graham) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return 0.5*math.Min(deref(a.Upside), 100) + 0.5*a.Score
}

func (g Graham) GenerateRational(p models.StrategyParams) string {
	p = g.params(p)
	return fmt.Sprintf(`Benjamin Graham value investing.
Fair value is the Graham number, sqrt(22.5 x EPS x book value per share).
A company qualifies with a margin of safety of at least %.0f%% and at least %d of 8 criteria:
P/L <= %.0f, P/VP <= %.1f, P/L x P/VP <= %.1f, current ratio >= %.1f (BDR %.1f),
net debt/equity <= %.1f, ROE >= %.0f%% and non-negative earnings growth.
Missing data gets the benefit of the doubt except for the margin of safety.
Ranked by half capped upside plus half criteria score.`,
		p.MarginOfSafety*100, grahamMinPassed,
		grahamMaxPL, grahamMaxPVP, grahamMaxProduct, grahamMinCurrentRatio, grahamBDRMinCurrentRatio,
		grahamMaxLeverage, grahamMinROE*100)
}
