package strategy

import (
	"context"
	"fmt"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	fundQualityWeight  = 35.0
	fundPriceWeight    = 30.0
	fundLeverageWeight = 20.0
	fundDividendWeight = 15.0

	fundMinROE          = 0.15
	fundMinROIC         = 0.12
	fundMaxFinancialPL  = 10.0
	fundMaxPEG          = 1.0
	fundFallbackMaxPL   = 15.0
	fundMaxEVEbitda     = 10.0
	fundMaxDebtEbitda   = 2.5
	fundMinPayout       = 0.25
	fundMaxPayout       = 0.75
	fundMinDY           = 0.04
	fundEarningsCAGRLen = 5
)

// Fundamentalist scores quality, price and leverage with indicators chosen
// from the company's profile, plus a dividend bonus.
type Fundamentalist struct{}

func NewFundamentalist() Strategy { return Fundamentalist{} }

func (Fundamentalist) Type() models.StrategyType { return models.StrategyFundamentalist }
func (Fundamentalist) Name() string              { return "Fundamentalist 3+1" }

func (Fundamentalist) ValidateCompanyData(c *models.CompanyData, _ models.StrategyParams) bool {
	return c.CurrentPrice > 0 && (c.Financials.ROE != nil || c.Financials.ROIC != nil)
}

// pillar is one evaluated leg of the 3+1 score.
type pillar struct {
	passed      bool
	points      float64
	description string
}

func (Fundamentalist) quality(c *models.CompanyData, p models.StrategyParams, financial, debtFree bool) pillar {
	label, m, target := "ROIC", fundamental.MetricROIC, fundMinROIC
	if financial || debtFree {
		label, m, target = "ROE", fundamental.MetricROE, fundMinROE
	}
	v := value(c, m, p)
	if v == nil {
		return pillar{description: fmt.Sprintf("Quality: %s unavailable", label)}
	}
	return pillar{
		passed:      *v >= target,
		points:      fundQualityWeight * capped(v, target),
		description: fmt.Sprintf("Quality: %s %.1f%% (min %.0f%%)", label, *v*100, target*100),
	}
}

func (Fundamentalist) price(c *models.CompanyData, p models.StrategyParams, financial, debtFree bool) pillar {
	pl := value(c, fundamental.MetricPL, p)
	plPillar := func(limit float64, why string) pillar {
		if pl == nil || *pl <= 0 {
			return pillar{description: "Price: P/L unavailable"}
		}
		return pillar{
			passed:      *pl <= limit,
			points:      fundPriceWeight * clamp(limit / *pl, 0, 1),
			description: fmt.Sprintf("Price: P/L %.1f (max %.0f, %s)", *pl, limit, why),
		}
	}

	switch {
	case financial:
		return plPillar(fundMaxFinancialPL, "financial")
	case debtFree:
		growth := fundamental.EarningsCAGR(c, fundEarningsCAGRLen)
		if pl == nil || *pl <= 0 || growth == nil || *growth <= 0 {
			return plPillar(fundFallbackMaxPL, "no earnings growth history")
		}
		peg := *pl / (*growth * 100)
		return pillar{
			passed:      peg <= fundMaxPEG,
			points:      fundPriceWeight * clamp(fundMaxPEG/peg, 0, 1),
			description: fmt.Sprintf("Price: PEG %.2f from P/L %.1f and %d-year earnings CAGR %.1f%% (max %.1f)", peg, *pl, fundEarningsCAGRLen, *growth*100, fundMaxPEG),
		}
	default:
		ev := value(c, fundamental.MetricEVEbitda, p)
		if ev == nil || *ev <= 0 {
			return pillar{description: "Price: EV/EBITDA unavailable"}
		}
		return pillar{
			passed:      *ev <= fundMaxEVEbitda,
			points:      fundPriceWeight * clamp(fundMaxEVEbitda / *ev, 0, 1),
			description: fmt.Sprintf("Price: EV/EBITDA %.1f (max %.0f)", *ev, fundMaxEVEbitda),
		}
	}
}

func (Fundamentalist) leverage(c *models.CompanyData, p models.StrategyParams, financial bool) pillar {
	if financial {
		return pillar{passed: true, points: fundLeverageWeight, description: "Leverage: not applicable to financials"}
	}
	v := value(c, fundamental.MetricNetDebtToEbitda, p)
	switch {
	case v == nil:
		return pillar{passed: true, points: fundLeverageWeight, description: "Leverage: no data, benefit of the doubt"}
	case *v <= 0:
		return pillar{passed: true, points: fundLeverageWeight, description: fmt.Sprintf("Leverage: net cash (net debt/EBITDA %.2f)", *v)}
	}
	return pillar{
		passed:      *v <= fundMaxDebtEbitda,
		points:      fundLeverageWeight * clamp(fundMaxDebtEbitda / *v, 0, 1),
		description: fmt.Sprintf("Leverage: net debt/EBITDA %.2f (max %.1f)", *v, fundMaxDebtEbitda),
	}
}

func (Fundamentalist) dividend(c *models.CompanyData, p models.StrategyParams) pillar {
	payout := value(c, fundamental.MetricPayout, p)
	dy := value(c, fundamental.MetricDY, p)
	payoutOK := payout != nil && *payout >= fundMinPayout && *payout <= fundMaxPayout
	dyOK := dy != nil && *dy >= fundMinDY

	points := 0.0
	switch {
	case payoutOK && dyOK:
		points = fundDividendWeight
	case payoutOK || dyOK:
		points = fundDividendWeight / 2
	}
	description := fmt.Sprintf("Dividend bonus: payout %s (band %.0f%%-%.0f%%), yield %s (min %.0f%%)",
		utils.FormatOptional(payout, utils.FormatRatio), fundMinPayout*100, fundMaxPayout*100,
		utils.FormatOptional(dy, utils.FormatRatio), fundMinDY*100)
	return pillar{passed: payoutOK && dyOK, points: points, description: description}
}

func (f Fundamentalist) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	financial := fundamental.IsFinancialSector(c.Sector)
	debtFree := fundamental.IsDebtFree(c)

	q := f.quality(c, p, financial, debtFree)
	pr := f.price(c, p, financial, debtFree)
	lev := f.leverage(c, p, financial)
	div := f.dividend(c, p)

	e := newEvaluation(4)
	e.add("Quality", q.passed, q.description)
	e.add("Price", pr.passed, pr.description)
	e.add("Leverage", lev.passed, lev.description)
	e.add("Dividend bonus", div.passed, div.description)

	score := clamp(q.points+pr.points+lev.points+div.points, 0, 100)
	metrics := map[string]float64{
		"qualityPoints":  q.points,
		"pricePoints":    pr.points,
		"leveragePoints": lev.points,
		"dividendPoints": div.points,
	}

	profile := "leveraged"
	switch {
	case financial:
		profile = "financial"
	case debtFree:
		profile = "debt-free"
	}
	reasoning := fmt.Sprintf("3+1 score %.0f/100 (%s profile). %s.", score, profile, e.summary())

	return models.StrategyAnalysis{
		IsEligible: q.passed && pr.passed && lev.passed,
		Score:      score,
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

func (f Fundamentalist) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, f, companies, p)
}

func (Fundamentalist) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return a.Score
}

func (Fundamentalist) GenerateRational(models.StrategyParams) string {
	return fmt.Sprintf(`Fundamentalist 3+1.
Quality (%.0f pts): ROE >= %.0f%% for financials and debt-free companies, else ROIC >= %.0f%%.
Price (%.0f pts): P/L <= %.0f for financials; PEG <= %.1f from the %d-year earnings CAGR for
debt-free companies (P/L <= %.0f without history); EV/EBITDA <= %.0f otherwise.
Leverage (%.0f pts): net debt/EBITDA <= %.1f, skipped for financials.
Dividend bonus (%.0f pts): payout between %.0f%% and %.0f%% with yield >= %.0f%%.
Eligible when quality, price and leverage all pass. Ranked by the weighted score.`,
		fundQualityWeight, fundMinROE*100, fundMinROIC*100,
		fundPriceWeight, fundMaxFinancialPL, fundMaxPEG, fundEarningsCAGRLen, fundFallbackMaxPL, fundMaxEVEbitda,
		fundLeverageWeight, fundMaxDebtEbitda,
		fundDividendWeight, fundMinPayout*100, fundMaxPayout*100, fundMinDY*100)
}
