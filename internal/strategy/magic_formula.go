package strategy

import (
	"context"
	"fmt"

	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	magicDefaultMinROIC = 0.15
	magicDefaultMinEY   = 0.08
	magicMinROE         = 0.15
	magicMinNetMargin   = 0.05
	magicMinCurrentRate = 1.0
	magicMaxDebtEbitda  = 3.0
	magicMinMarketCap   = 5e8
	magicMinPassed      = 6

	// Caps keep a single outlier metric from dominating the score.
	magicCapROIC   = 0.40
	magicCapEY     = 0.20
	magicCapROE    = 0.30
	magicCapMargin = 0.25
	magicCapGrowth = 0.20
)

// MagicFormula ranks by return on invested capital and earnings yield.
type MagicFormula struct{}

func NewMagicFormula() Strategy { return MagicFormula{} }

func (MagicFormula) Type() models.StrategyType { return models.StrategyMagicFormula }
func (MagicFormula) Name() string              { return "Magic Formula" }

func (MagicFormula) params(p models.StrategyParams) models.StrategyParams {
	p.MinROIC = orDefault(p.MinROIC, magicDefaultMinROIC)
	p.MinEarningsYield = orDefault(p.MinEarningsYield, magicDefaultMinEY)
	return p
}

func (MagicFormula) ValidateCompanyData(c *models.CompanyData, _ models.StrategyParams) bool {
	return c.CurrentPrice > 0 && c.Financials.ROIC != nil && fundamental.EarningsYield(c) != nil
}

func (m MagicFormula) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	p = m.params(p)

	roic := value(c, fundamental.MetricROIC, p)
	ey := fundamental.EarningsYield(c)
	roe := value(c, fundamental.MetricROE, p)
	ml := fundamental.NetMargin(c, p.Use7YearAverages)
	growth := value(c, fundamental.MetricRevenueGrowth, p)

	e := newEvaluation(8)
	roicOK := e.required("ROIC", roic, atLeast(p.MinROIC), pctIs("ROIC", p.MinROIC))
	eyOK := e.required("Earnings yield", ey, atLeast(p.MinEarningsYield), pctIs("Earnings yield", p.MinEarningsYield))
	e.optional("ROE", roe, atLeast(magicMinROE), pctIs("ROE", magicMinROE))
	e.optional("Net margin", ml, atLeast(magicMinNetMargin), pctIs("Net margin", magicMinNetMargin))
	e.optional("Current ratio", value(c, fundamental.MetricCurrentRatio, p), atLeast(magicMinCurrentRate), ratioIs("Current ratio", magicMinCurrentRate))
	e.optional("Leverage", value(c, fundamental.MetricNetDebtToEbitda, p), atMost(magicMaxDebtEbitda), ratioAtMost("Net debt/EBITDA", magicMaxDebtEbitda))
	e.optional("Revenue growth", growth, atLeast(0), pctIs("Revenue growth", 0))
	e.optional("Market cap", fundamental.Current(c, fundamental.MetricMarketCap), atLeast(magicMinMarketCap), func(v float64) string {
		return fmt.Sprintf("Market cap %s (min %s)", utils.FormatCompact(v), utils.FormatCompact(magicMinMarketCap))
	})

	growthScore := 0.0
	if growth != nil && *growth > 0 {
		growthScore = capped(growth, magicCapGrowth)
	}
	ms := 100 * (0.35*capped(roic, magicCapROIC) +
		0.30*capped(ey, magicCapEY) +
		0.15*capped(roe, magicCapROE) +
		0.10*capped(ml, magicCapMargin) +
		0.10*growthScore)

	metrics := map[string]float64{"magicScore": ms}
	if roic != nil {
		metrics["roic"] = *roic
	}
	if ey != nil {
		metrics["earningsYield"] = *ey
	}

	reasoning := fmt.Sprintf("ROIC %s, earnings yield %s, magic score %.0f. %s.",
		utils.FormatOptional(roic, utils.FormatRatio), utils.FormatOptional(ey, utils.FormatRatio), ms, e.summary())

	return models.StrategyAnalysis{
		IsEligible: roicOK && eyOK && e.passed() >= magicMinPassed,
		Score:      e.score(),
		Reasoning:  reasoning,
		Criteria:   e.criteria,
		KeyMetrics: metrics,
	}
}

func (m MagicFormula) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	return rank(ctx, m, companies, m.params(p))
}

func (MagicFormula) rankingKey(_ *models.CompanyData, a models.StrategyAnalysis, _ models.StrategyParams) float64 {
	return a.KeyMetrics["magicScore"]
}

func (m MagicFormula) GenerateRational(p models.StrategyParams) string {
	p = m.params(p)
	return fmt.Sprintf(`Joel Greenblatt's Magic Formula: good businesses at bargain prices.
Requires ROIC >= %.0f%% and earnings yield >= %.0f%%, plus at least %d of 8 criteria:
ROE >= %.0f%%, net margin >= %.0f%%, current ratio >= %.1f, net debt/EBITDA <= %.1f,
non-negative revenue growth and market cap >= %s.
No fair value is estimated. Ranked by a magic score weighting capped ROIC 35%%,
earnings yield 30%%, ROE 15%%, margin 10%% and growth 10%%.`,
		p.MinROIC*100, p.MinEarningsYield*100, magicMinPassed, magicMinROE*100, magicMinNetMargin*100,
		magicMinCurrentRate, magicMaxDebtEbitda, utils.FormatCompact(magicMinMarketCap))
}
