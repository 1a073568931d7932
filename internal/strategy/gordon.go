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
	gordonDefaultDiscount = 0.12
	gordonDefaultGrowth   = 0.05
	gordonDefaultMargin   = 0.15
	gordonMinDY           = 0.04
	gordonMaxPayout       = 0.80
	gordonMinROE          = 0.10
	gordonMaxDebtEbitda   = 3.0
	gordonMaxImpliedPL    = 40.0
	gordonMaxImpliedPVP   = 8.0
	gordonMinPassed       = 5

	// Sector adjustments.
	gordonUtilityDiscountDelta = -0.02
	gordonUtilityGrowthCap     = 0.04
	gordonTechDiscountDelta    = 0.03
	gordonTechGrowthCap        = 0.10

	// Safety clamps.
	gordonMinDiscount = 0.06
	gordonMaxDiscount = 0.25
	gordonMaxGrowth   = 0.12
	gordonMinSpread   = 0.01
)

// Gordon prices a company with the dividend discount model.
type Gordon struct{}

func NewGordon() Strategy { return Gordon{} }

func (Gordon) Type() models.StrategyType { return models.StrategyGordon }
func (Gordon) Name() string              { return "Gordon Growth Model" }

func (Gordon) params(p models.StrategyParams) models.StrategyParams {
	p.DiscountRate = orDefault(p.DiscountRate, gordonDefaultDiscount)
	p.DividendGrowthRate = orDefault(p.DividendGrowthRate, gordonDefaultGrowth)
	p.MarginOfSafety = orDefault(p.MarginOfSafety, gordonDefaultMargin)
	return p
}

// Rates returns the discount and growth rates for the company's sector after
// adjustments and clamps. The result always satisfies growth < discount.
func (g Gordon) Rates(sector string, p models.StrategyParams) (discount, growth float64) {
	p = g.params(p)
	discount, growth = p.DiscountRate, p.DividendGrowthRate

	if !p.SkipSectorAdjustment {
		switch {
		case fundamental.IsUtilitySector(sector):
			discount += gordonUtilityDiscountDelta
			growth = math.Min(growth, gordonUtilityGrowthCap)
		case fundamental.IsTechSector(sector):
			discount += gordonTechDiscountDelta
			growth = math.Min(growth, gordonTechGrowthCap)
		}
	}

	discount = clamp(discount, gordonMinDiscount, gordonMaxDiscount)
	growth = clamp(growth, 0, gordonMaxGrowth)
	growth = math.Min(growth, discount-gordonMinSpread)
	return discount, growth
}

func (Gordon) ValidateCompanyData(c *models.CompanyData, _ models.StrategyParams) bool {
	d := fundamental.DividendPerShare(c)
	return c.CurrentPrice > 0 && d != nil && *d > 0
}

func (g Gordon) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	p = g.params(p)
	r, growth := g.Rates(c.Sector, p)

	var fair, upside *float64
	metrics := map[string]float64{"discountRate": r, "growthRate": growth}
	if d0 := fundamental.DividendPerShare(c); d0 != nil {
		metrics["dividendoPorAcao"] = *d0
		if v, ok := fundamental.GordonValue(*d0, r, growth); ok {
			fair = &v
			upside = fundamental.Upside(v, c.CurrentPrice)
		}
	}

	// Implied multiples at fair value; implausible results are flagged, not rejected.
	var plausible *float64
	if fair != nil {
		ok := 1.0
		if impliedAbove(*fair, fundamental.EPS(c), gordonMaxImpliedPL) || impliedAbove(*fair, fundamental.BVPS(c), gordonMaxImpliedPVP) {
			ok = 0
		}
		plausible = &ok
	}

	e := newEvaluation(7)
	core := e.required("Margin of safety", upside, atLeast(p.MarginOfSafety*100), func(v float64) string {
		return fmt.Sprintf("Upside %.1f%% to dividend discount value (min %.0f%%)", v, p.MarginOfSafety*100)
	})
	e.optional("Dividend yield", value(c, fundamental.MetricDY, p), atLeast(gordonMinDY), pctIs("Dividend yield", gordonMinDY))
	e.optional("Payout", value(c, fundamental.MetricPayout, p), atMost(gordonMaxPayout), pctAtMost("Payout", gordonMaxPayout))
	e.optional("ROE", value(c, fundamental.MetricROE, p), atLeast(gordonMinROE), pctIs("ROE", gordonMinROE))
	e.optional("Leverage", value(c, fundamental.MetricNetDebtToEbitda, p), atMost(gordonMaxDebtEbitda), ratioAtMost("Net debt/EBITDA", gordonMaxDebtEbitda))
	e.optional("Earnings growth", value(c, fundamental.MetricEarningsGrowth, p), atLeast(0), pctIs("Earnings growth", 0))
	e.optional("Implied multiples", plausible, func(v float64) bool { return v > 0 }, func(v float64) string {
		if v > 0 {
			return "Fair value is consistent with peer P/L and P/VP"
		}
		return fmt.Sprintf("Fair value implies P/L above %.0f or P/VP above %.0f", gordonMaxImpliedPL, gordonMaxImpliedPVP)
	})

	if upside != nil {
		metrics["upside"] = *upside
	}

	reasoning := fmt.Sprintf("Dividend discount value %s at r=%.1f%% g=%.1f%%. %s.",
		utils.FormatOptional(fair, func(v float64) string { return fmt.Sprintf("%.2f", v) }),
		r*100, growth*100, e.summary())

	return models.StrategyAnalysis{
		IsEligible: core && e.passed() >= gordonMinPassed,
		Score:      e.score(),
		FairValue:  fair,
		Upside:     upside,
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

func impliedAbove(fair float64, perShare *float64, limit float64) bool {
	if perShare == nil || *perShare <= 0 {
		return false
	}
	multiple := fair / *perShare
	return multiple > limit
}

func (g Gordon) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, g, companies, g.params(p))
}

func (Gordon) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return 0.6*deref(a.Upside) + 0.4*a.Score
}

func (g Gordon) GenerateRational(p models.StrategyParams) string {
	p = g.params(p)
	return fmt.Sprintf(`Gordon growth dividend discount model.
Fair value is D1 / (r - g) with D1 = D0 x (1 + g), r = %.1f%% and g = %.1f%%.
Utilities use r %.0f points and g capped at %.0f%%; technology uses r +%.0f points and g capped at %.0f%%.
Rates are clamped to r in [%.0f%%, %.0f%%], g in [0%%, %.0f%%] and g <= r - 1 point.
Requires a margin of safety of %.0f%% and at least %d of 7 criteria. Fair values implying
P/L above %.0f or P/VP above %.0f are flagged. Ranked by 60%% upside plus 40%% criteria score.`,
		p.DiscountRate*100, p.DividendGrowthRate*100,
		gordonUtilityDiscountDelta*100, gordonUtilityGrowthCap*100, gordonTechDiscountDelta*100, gordonTechGrowthCap*100,
		gordonMinDiscount*100, gordonMaxDiscount*100, gordonMaxGrowth*100,
		p.MarginOfSafety*100, gordonMinPassed, gordonMaxImpliedPL, gordonMaxImpliedPVP)
}
