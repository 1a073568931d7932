package strategy

import (
	"context"
	"fmt"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	barsiDefaultTargetYield = 0.06
	barsiDefaultMinYears    = 5
	barsiDividendWindow     = 5
	barsiMaxLeverage        = 1.0
	barsiMinROE             = 0.10
	barsiMaxPayout          = 0.90
	barsiMinPassed          = 5
	barsiYearPoints         = 2.0
)

// Barsi follows long-horizon dividend accumulation: perennial sectors, a
// steady dividend record and a price below the ceiling implied by the
// target yield.
type Barsi struct{}

func NewBarsi() Strategy { return Barsi{} }

func (Barsi) Type() models.StrategyType { return models.StrategyBarsi }
func (Barsi) Name() string              { return "Barsi dividend accumulation" }

func (Barsi) params(p models.StrategyParams) models.StrategyParams {
	p.TargetDividendYield = orDefault(p.TargetDividendYield, barsiDefaultTargetYield)
	if p.MinConsecutiveDividendYears <= 0 {
		p.MinConsecutiveDividendYears = barsiDefaultMinYears
	}
	return p
}

// CeilingPrice is the average dividend per share divided by the target yield.
func (b Barsi) CeilingPrice(c *models.CompanyData, p models.StrategyParams) *float64 {
	p = b.params(p)
	avg := fundamental.AverageDividendPerShare(c, barsiDividendWindow)
	if avg == nil || *avg <= 0 {
		return nil
	}
	v := *avg / p.TargetDividendYield
	return &v
}

func (b Barsi) ValidateCompanyData(c *models.CompanyData, p models.StrategyParams) bool {
	return c.CurrentPrice > 0 && b.CeilingPrice(c, p) != nil
}

func (b Barsi) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	p = b.params(p)
	ceiling := b.CeilingPrice(c, p)
	years := fundamental.ConsecutiveDividendYears(c)
	financial := fundamental.IsFinancialSector(c.Sector)

	var upside *float64
	if ceiling != nil {
		upside = fundamental.Upside(*ceiling, c.CurrentPrice)
	}

	e := newEvaluation(7)
	core := e.required("Ceiling price", ceiling, atLeast(c.CurrentPrice), func(v float64) string {
		return fmt.Sprintf("Price %.2f vs ceiling %.2f at %.0f%% target yield", c.CurrentPrice, v, p.TargetDividendYield*100)
	})
	if fundamental.HasDividendHistory(c) {
		e.add("Dividend record", years >= p.MinConsecutiveDividendYears,
			fmt.Sprintf("%d consecutive dividend years (min %d)", years, p.MinConsecutiveDividendYears))
	} else {
		e.add("Dividend record", true, "Dividend record: no history, benefit of the doubt")
	}
	e.optional("Dividend yield", value(c, fundamental.MetricDY, p), atLeast(p.TargetDividendYield), pctIs("Dividend yield", p.TargetDividendYield))
	if financial {
		e.add("Leverage", true, "Leverage: not applicable to financials")
	} else {
		e.optional("Leverage", value(c, fundamental.MetricNetDebtToEquity, p), atMost(barsiMaxLeverage), ratioAtMost("Net debt/equity", barsiMaxLeverage))
	}
	e.optional("ROE", value(c, fundamental.MetricROE, p), atLeast(barsiMinROE), pctIs("ROE", barsiMinROE))
	sector := c.Sector
	if sector == "" {
		sector = "unknown"
	}
	e.add("Perennial sector", fundamental.IsPerennialSector(c.Sector), fmt.Sprintf("Sector %s", sector))
	e.optional("Payout", value(c, fundamental.MetricPayout, p), atMost(barsiMaxPayout), pctAtMost("Payout", barsiMaxPayout))

	metrics := map[string]float64{"consecutiveDividendYears": float64(years)}
	if ceiling != nil {
		metrics["ceilingPrice"] = *ceiling
	}
	if upside != nil {
		metrics["upside"] = *upside
	}

	reasoning := fmt.Sprintf("Ceiling price %s, %d consecutive dividend years. %s.",
		utils.FormatOptional(ceiling, func(v float64) string { return fmt.Sprintf("%.2f", v) }),
		years, e.summary())

	return models.StrategyAnalysis{
		IsEligible: core && e.passed() >= barsiMinPassed,
		Score:      e.score(),
		FairValue:  ceiling,
		Upside:     upside,
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

func (b Barsi) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, b, companies, b.params(p))
}

func (Barsi) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return 0.5*deref(a.Upside) + 0.3*a.Score + barsiYearPoints*a.KeyMetrics["consecutiveDividendYears"]
}

func (b Barsi) GenerateRational(p models.StrategyParams) string {
	p = b.params(p)
	return fmt.Sprintf(`Barsi-style dividend accumulation.
Ceiling price is the %d-year average dividend per share divided by a %.0f%% target yield;
the price must sit at or below it. At least %d of 7 criteria: ceiling, %d consecutive dividend years,
yield >= target, net debt/equity <= %.1f (skipped for financials), ROE >= %.0f%%,
a perennial sector (banks, energy, sanitation, insurance, telecom) and payout <= %.0f%%.
Ranked by 50%% upside, 30%% criteria score and %.0f points per dividend year.`,
		barsiDividendWindow, p.TargetDividendYield*100, barsiMinPassed, p.MinConsecutiveDividendYears,
		barsiMaxLeverage, barsiMinROE*100, barsiMaxPayout*100, barsiYearPoints)
}
