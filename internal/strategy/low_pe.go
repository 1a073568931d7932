package strategy

import (
	"context"
	"fmt"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	lowPEDefaultMinPL   = 3.0
	lowPEDefaultMaxPL   = 12.0
	lowPEDefaultMinROE  = 0.12
	lowPEMinROA         = 0.05
	lowPEMinROIC        = 0.10
	lowPEMinNetMargin   = 0.05
	lowPEMaxLeverage    = 1.5
	lowPEMinCurrentRate = 1.0
	lowPEMinPassed      = 6
	lowPEFairMultiple   = 15.0

	// Targets at which a value-score component saturates.
	lowPETargetROE    = 0.30
	lowPETargetROA    = 0.15
	lowPETargetROIC   = 0.25
	lowPETargetMargin = 0.25
	lowPETargetGrowth = 0.20
)

// LowPE buys cheap earnings while rejecting suspiciously low multiples and
// weak returns.
type LowPE struct{}

func NewLowPE() Strategy { return LowPE{} }

func (LowPE) Type() models.StrategyType { return models.StrategyLowPE }
func (LowPE) Name() string              { return "Low P/E" }

func (LowPE) params(p models.StrategyParams) models.StrategyParams {
	p.MinPL = orDefault(p.MinPL, lowPEDefaultMinPL)
	p.MaxPL = orDefault(p.MaxPL, lowPEDefaultMaxPL)
	p.MinROE = orDefault(p.MinROE, lowPEDefaultMinROE)
	return p
}

func (LowPE) ValidateCompanyData(c *models.CompanyData, _ models.StrategyParams) bool {
	return c.CurrentPrice > 0 && c.Financials.PL != nil && *c.Financials.PL > 0
}

func (l LowPE) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	p = l.params(p)

	pl := value(c, fundamental.MetricPL, p)
	roe := value(c, fundamental.MetricROE, p)
	roa := value(c, fundamental.MetricROA, p)
	roic := value(c, fundamental.MetricROIC, p)
	ml := fundamental.NetMargin(c, p.Use7YearAverages)
	growth := value(c, fundamental.MetricRevenueGrowth, p)

	e := newEvaluation(8)
	plOK := e.required("P/L band", pl, between(p.MinPL, p.MaxPL), func(v float64) string {
		return fmt.Sprintf("P/L %.1f (band %.0f-%.0f)", v, p.MinPL, p.MaxPL)
	})
	roeOK := e.required("ROE", roe, atLeast(p.MinROE), pctIs("ROE", p.MinROE))
	e.optional("ROA", roa, atLeast(lowPEMinROA), pctIs("ROA", lowPEMinROA))
	e.optional("ROIC", roic, atLeast(lowPEMinROIC), pctIs("ROIC", lowPEMinROIC))
	e.optional("Net margin", ml, atLeast(lowPEMinNetMargin), pctIs("Net margin", lowPEMinNetMargin))
	e.optional("Revenue growth", growth, atLeast(0), pctIs("Revenue growth", 0))
	e.optional("Leverage", value(c, fundamental.MetricNetDebtToEquity, p), atMost(lowPEMaxLeverage), ratioAtMost("Net debt/equity", lowPEMaxLeverage))
	e.optional("Current ratio", value(c, fundamental.MetricCurrentRatio, p), atLeast(lowPEMinCurrentRate), ratioIs("Current ratio", lowPEMinCurrentRate))

	var fair, upside *float64
	if eps := fundamental.EPS(c); eps != nil && *eps > 0 {
		fv := *eps * lowPEFairMultiple
		fair = &fv
		upside = fundamental.Upside(fv, c.CurrentPrice)
	}

	vs := valueScore(pl, roe, roa, roic, ml, growth, p)
	metrics := map[string]float64{"valueScore": vs}
	if pl != nil {
		metrics["pl"] = *pl
	}
	if roe != nil {
		metrics["roe"] = *roe
	}

	reasoning := fmt.Sprintf("P/L %s, ROE %s, value score %.0f. %s.",
		utils.FormatOptional(pl, func(v float64) string { return fmt.Sprintf("%.1f", v) }),
		utils.FormatOptional(roe, utils.FormatRatio), vs, e.summary())

	return models.StrategyAnalysis{
		IsEligible: plOK && roeOK && e.passed() >= lowPEMinPassed,
		Score:      e.score(),
		FairValue:  fair,
		Upside:     upside,
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

// valueScore rewards a low P/L inside the band and high returns, in [0,100].
func valueScore(pl, roe, roa, roic, ml, growth *float64, p models.StrategyParams) float64 {
	plScore := 0.0
	if pl != nil && p.MaxPL > p.MinPL {
		plScore = clamp((p.MaxPL-*pl)/(p.MaxPL-p.MinPL), 0, 1)
	}
	growthScore := 0.0
	if growth != nil && *growth >= 0 {
		growthScore = capped(growth, lowPETargetGrowth)
	}
	return 100 * (0.30*plScore +
		0.25*capped(roe, lowPETargetROE) +
		0.10*capped(roa, lowPETargetROA) +
		0.15*capped(roic, lowPETargetROIC) +
		0.10*capped(ml, lowPETargetMargin) +
		0.10*growthScore)
}

func (l LowPE) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, l, companies, l.params(p))
}

func (LowPE) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return a.KeyMetrics["valueScore"]
}

func (l LowPE) GenerateRational(p models.StrategyParams) string {
	p = l.params(p)
	return fmt.Sprintf(`Low P/E value investing, not value traps.
Requires P/L between %.0f and %.0f (lower multiples flag a trap) and ROE >= %.0f%%.
At least %d of 8 criteria including ROA >= %.0f%%, ROIC >= %.0f%%, net margin >= %.0f%%,
non-negative revenue growth, net debt/equity <= %.1f and current ratio >= %.1f.
Fair value is %.0f x EPS. Ranked by a value score weighting P/L 30%%, ROE 25%%, ROA 10%%,
ROIC 15%%, margin 10%% and growth 10%%.`,
		p.MinPL, p.MaxPL, p.MinROE*100, lowPEMinPassed, lowPEMinROA*100, lowPEMinROIC*100,
		lowPEMinNetMargin*100, lowPEMaxLeverage, lowPEMinCurrentRate, lowPEFairMultiple)
}
