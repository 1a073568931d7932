package strategy

import (
	"context"
	"fmt"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	fcdDefaultMargin       = 0.20
	fcdDefaultGrowth       = 0.025
	fcdDefaultDiscount     = 0.10
	fcdDefaultYears        = 5
	fcdEbitdaToCash        = 0.6
	fcdMaxInitialGrowth    = 0.20
	fcdMinROE              = 0.10
	fcdMinEbitdaMargin     = 0.10
	fcdMinRevenueGrowth    = -0.05
	fcdMinCurrentRatio     = 1.0
	fcdMinMarketCap        = 1e9
	fcdMinPassed           = 5
	fcdBDRDiscountPremium  = 0.02
	fcdUpsideWeight        = 0.7
	fcdScoreWeight         = 0.3
	fcdInitialGrowthFactor = 2.0
)

// FCD values a company by discounting projected free cash flow.
type FCD struct{}

func NewFCD() Strategy { return FCD{} }

func (FCD) Type() models.StrategyType { return models.StrategyFCD }
func (FCD) Name() string              { return "Discounted Cash Flow" }

func (FCD) params(p models.StrategyParams) models.StrategyParams {
	p.MarginOfSafety = orDefault(p.MarginOfSafety, fcdDefaultMargin)
	p.GrowthRate = orDefault(p.GrowthRate, fcdDefaultGrowth)
	p.DiscountRate = orDefault(p.DiscountRate, fcdDefaultDiscount)
	if p.YearsProjection <= 0 {
		p.YearsProjection = fcdDefaultYears
	}
	return p
}

// BaseCashFlow prefers reported free cash flow and falls back to
// EBITDA × 0.6. ok is false when no base is available.
func BaseCashFlow(c *models.CompanyData) (base float64, fromEbitda bool, ok bool) {
	if fcf := fundamental.Current(c, fundamental.MetricFreeCashFlow); fcf != nil {
		return *fcf, false, true
	}
	if ebitda := fundamental.Current(c, fundamental.MetricEbitda); ebitda != nil {
		return *ebitda * fcdEbitdaToCash, true, true
	}
	return 0, false, false
}

// Projection builds the cash-flow projection for a company, or false when
// the company cannot be valued.
func (f FCD) Projection(c *models.CompanyData, p models.StrategyParams) (fundamental.CashFlowProjection, bool) {
	p = f.params(p)
	base, _, ok := BaseCashFlow(c)
	if !ok || base <= 0 {
		return fundamental.CashFlowProjection{}, false
	}
	shares := fundamental.Current(c, fundamental.MetricSharesOutstanding)
	if shares == nil || *shares <= 0 {
		return fundamental.CashFlowProjection{}, false
	}

	discount := p.DiscountRate
	if utils.IsBDR(c.Ticker) {
		discount += fcdBDRDiscountPremium
	}
	initial := fcdInitialGrowthFactor * p.GrowthRate
	if g := fundamental.Current(c, fundamental.MetricRevenueGrowth); g != nil {
		initial = clamp(*g, 0, fcdMaxInitialGrowth)
	}

	return fundamental.CashFlowProjection{
		BaseCashFlow:      base,
		InitialGrowth:     initial,
		TerminalGrowth:    p.GrowthRate,
		DiscountRate:      discount,
		Years:             p.YearsProjection,
		SharesOutstanding: *shares,
	}, true
}

func (f FCD) ValidateCompanyData(c *models.CompanyData, p models.StrategyParams) bool {
	if c.CurrentPrice <= 0 {
		return false
	}
	proj, ok := f.Projection(c, p)
	if !ok {
		return false
	}
	_, ok = fundamental.ProjectCashFlows(proj)
	return ok
}

func (f FCD) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	p = f.params(p)

	var fair, upside *float64
	metrics := map[string]float64{}
	if proj, ok := f.Projection(c, p); ok {
		if res, ok := fundamental.ProjectCashFlows(proj); ok {
			fv := res.FairValue
			fair = &fv
			upside = fundamental.Upside(fv, c.CurrentPrice)
			metrics["baseCashFlow"] = proj.BaseCashFlow
			metrics["discountRate"] = proj.DiscountRate
			metrics["initialGrowth"] = proj.InitialGrowth
			metrics["enterpriseValue"] = res.EnterpriseValue
			metrics["terminalValue"] = res.TerminalValue
		}
	}

	fcf := fundamental.Current(c, fundamental.MetricFreeCashFlow)

	e := newEvaluation(7)
	core := e.required("Margin of safety", upside, atLeast(p.MarginOfSafety*100), func(v float64) string {
		return fmt.Sprintf("Upside %.1f%% to discounted cash flow value (min %.0f%%)", v, p.MarginOfSafety*100)
	})
	e.optional("ROE", value(c, fundamental.MetricROE, p), atLeast(fcdMinROE), pctIs("ROE", fcdMinROE))
	e.optional("EBITDA margin", value(c, fundamental.MetricEbitdaMargin, p), atLeast(fcdMinEbitdaMargin), pctIs("EBITDA margin", fcdMinEbitdaMargin))
	e.optional("Revenue growth", value(c, fundamental.MetricRevenueGrowth, p), atLeast(fcdMinRevenueGrowth), pctIs("Revenue growth", fcdMinRevenueGrowth))
	e.optional("Current ratio", value(c, fundamental.MetricCurrentRatio, p), atLeast(fcdMinCurrentRatio), ratioIs("Current ratio", fcdMinCurrentRatio))
	e.optional("Market cap", fundamental.Current(c, fundamental.MetricMarketCap), atLeast(fcdMinMarketCap), func(v float64) string {
		return fmt.Sprintf("Market cap %s (min %s)", utils.FormatCompact(v), utils.FormatCompact(fcdMinMarketCap))
	})
	e.optional("Free cash flow", fcf, func(v float64) bool { return v > 0 }, func(v float64) string {
		return fmt.Sprintf("Free cash flow %s", utils.FormatCompact(v))
	})

	if upside != nil {
		metrics["upside"] = *upside
	}

	reasoning := fmt.Sprintf("Discounted cash flow value %s vs price %.2f. %s.",
		utils.FormatOptional(fair, func(v float64) string { return fmt.Sprintf("%.2f", v) }),
		c.CurrentPrice, e.summary())

	return models.StrategyAnalysis{
		IsEligible: core && e.passed() >= fcdMinPassed,
		Score:      e.score(),
		FairValue:  fair,
		Upside:     upside,
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

func (f FCD) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, f, companies, f.params(p))
}

func (FCD) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return fcdUpsideWeight*deref(a.Upside) + fcdScoreWeight*a.Score
}

func (f FCD) GenerateRational(p models.StrategyParams) string {
	p = f.params(p)
	return fmt.Sprintf(`Discounted cash flow (FCD).
Base cash flow is reported free cash flow, else EBITDA x %.1f. Companies with a non-positive base are excluded.
%d years are projected with growth converging from current revenue growth (capped at %.0f%%)
to a terminal %.1f%%, discounted at %.1f%% (BDR +%.0f points) plus a Gordon terminal value.
Fair value is enterprise value divided by shares outstanding.
Requires a margin of safety of %.0f%% and at least %d of 7 criteria.
Ranked by 70%% upside plus 30%% criteria score.`,
		fcdEbitdaToCash, p.YearsProjection, fcdMaxInitialGrowth*100, p.GrowthRate*100,
		p.DiscountRate*100, fcdBDRDiscountPremium*100, p.MarginOfSafety*100, fcdMinPassed)
}
