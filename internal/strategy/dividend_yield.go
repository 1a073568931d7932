package strategy

import (
	"context"
	"fmt"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	dyDefaultMinYield    = 0.06
	dyMinROE             = 0.10
	dyMinCurrentRatio    = 1.2
	dyMaxLeverage        = 1.0
	dyMinPL              = 4.0
	dyMaxPL              = 25.0
	dyMinNetMargin       = 0.05
	dyMinMarketCap       = 1e9
	dyMinPassed          = 5
	dyBDRMinROE          = 0.08
	dyNeutralSubScore    = 50.0
	dySustainabilityROE  = 0.20
	dySustainabilityCR   = 2.0
	dySustainabilityDebt = 1.5
	dySustainabilityML   = 0.20
	dySustainabilityROIC = 0.15
	dySustainabilityDY   = 0.12
)

// DividendYield looks for high yields that are not dividend traps: the yield
// must clear a floor and the business behind it must be sound.
type DividendYield struct{}

func NewDividendYield() Strategy { return DividendYield{} }

func (DividendYield) Type() models.StrategyType { return models.StrategyDividendYield }
func (DividendYield) Name() string              { return "Dividend Yield (anti-trap)" }

func (DividendYield) params(p models.StrategyParams) models.StrategyParams {
	p.MinYield = orDefault(p.MinYield, dyDefaultMinYield)
	return p
}

func (DividendYield) ValidateCompanyData(c *models.CompanyData, _ models.StrategyParams) bool {
	return c.CurrentPrice > 0 && c.Financials.DY != nil
}

func (d DividendYield) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	p = d.params(p)
	minROE := dyMinROE
	if utils.IsBDR(c.Ticker) {
		minROE = dyBDRMinROE
	}

	dy := value(c, fundamental.MetricDY, p)
	roe := value(c, fundamental.MetricROE, p)
	cr := value(c, fundamental.MetricCurrentRatio, p)
	lev := value(c, fundamental.MetricNetDebtToEquity, p)
	pl := value(c, fundamental.MetricPL, p)
	ml := fundamental.NetMargin(c, p.Use7YearAverages)
	mc := fundamental.Current(c, fundamental.MetricMarketCap)

	e := newEvaluation(7)
	core := e.required("Dividend yield", dy, atLeast(p.MinYield), pctIs("Dividend yield", p.MinYield))
	e.optional("ROE", roe, atLeast(minROE), pctIs("ROE", minROE))
	e.optional("Current ratio", cr, atLeast(dyMinCurrentRatio), ratioIs("Current ratio", dyMinCurrentRatio))
	e.optional("Leverage", lev, atMost(dyMaxLeverage), ratioAtMost("Net debt/equity", dyMaxLeverage))
	e.optional("P/L band", pl, between(dyMinPL, dyMaxPL), func(v float64) string {
		return fmt.Sprintf("P/L %.1f (band %.0f-%.0f)", v, dyMinPL, dyMaxPL)
	})
	e.optional("Net margin", ml, atLeast(dyMinNetMargin), pctIs("Net margin", dyMinNetMargin))
	e.optional("Market cap", mc, atLeast(dyMinMarketCap), func(v float64) string {
		return fmt.Sprintf("Market cap %s (min %s)", utils.FormatCompact(v), utils.FormatCompact(dyMinMarketCap))
	})

	var fair, upside *float64
	metrics := map[string]float64{}
	if dy != nil {
		fv := c.CurrentPrice * (1 + *dy)
		up := *dy * 100
		fair, upside = &fv, &up
		metrics["dy"] = *dy
	}
	metrics["sustainabilityScore"] = sustainabilityScore(dy, roe, cr, lev, ml, value(c, fundamental.MetricROIC, p))
	if roe != nil {
		metrics["roe"] = *roe
	}
	if lev != nil {
		metrics["dividaLiquidaPl"] = *lev
	}

	reasoning := fmt.Sprintf("Yield %s with sustainability score %.0f. %s.",
		utils.FormatOptional(dy, utils.FormatRatio), metrics["sustainabilityScore"], e.summary())

	return models.StrategyAnalysis{
		IsEligible: core && e.passed() >= dyMinPassed,
		Score:      e.score(),
		FairValue:  fair,
		Upside:     upside,
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

// sustainabilityScore blends the fundamentals that keep a dividend alive.
// Each component lies in [0,100]; a missing input scores neutral.
func sustainabilityScore(dy, roe, cr, lev, ml, roic *float64) float64 {
	component := func(v *float64, f func(float64) float64) float64 {
		if v == nil {
			return dyNeutralSubScore
		}
		return clamp(f(*v), 0, 1) * 100
	}
	return 0.25*component(roe, func(v float64) float64 { return v / dySustainabilityROE }) +
		0.15*component(cr, func(v float64) float64 { return v / dySustainabilityCR }) +
		0.20*component(lev, func(v float64) float64 { return 1 - v/dySustainabilityDebt }) +
		0.15*component(ml, func(v float64) float64 { return v / dySustainabilityML }) +
		0.10*component(roic, func(v float64) float64 { return v / dySustainabilityROIC }) +
		0.15*component(dy, func(v float64) float64 { return v / dySustainabilityDY })
}

func (d DividendYield) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, d, companies, d.params(p))
}

func (DividendYield) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return a.KeyMetrics["sustainabilityScore"]
}

func (d DividendYield) GenerateRational(p models.StrategyParams) string {
	p = d.params(p)
	return fmt.Sprintf(`Dividend yield, avoiding dividend traps.
Requires a dividend yield of at least %.1f%%; a missing yield disqualifies.
At least %d of 7 criteria: yield, ROE >= %.0f%% (BDR %.0f%%), current ratio >= %.1f,
net debt/equity <= %.1f, P/L between %.0f and %.0f, net margin >= %.0f%% and market cap >= %s.
Ranked by a sustainability score weighting ROE 25%%, liquidity 15%%, leverage 20%%,
margin 15%%, ROIC 10%% and yield 15%%.`,
		p.MinYield*100, dyMinPassed, dyMinROE*100, dyBDRMinROE*100, dyMinCurrentRatio,
		dyMaxLeverage, dyMinPL, dyMaxPL, dyMinNetMargin*100, utils.FormatCompact(dyMinMarketCap))
}
