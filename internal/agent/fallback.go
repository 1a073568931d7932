package agent

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/openrank/internal/agent/prompts"
	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

// fallbackWeights are the per-strategy weights of the heuristic composite.
// They sum to 1 and are renormalized over the eligible strategies.
var fallbackWeights = map[models.StrategyType]float64{
	models.StrategyGraham:        0.15,
	models.StrategyDividendYield: 0.15,
	models.StrategyLowPE:         0.15,
	models.StrategyMagicFormula:  0.15,
	models.StrategyFCD:           0.15,
	models.StrategyGordon:        0.10,
	models.StrategyBarsi:         0.15,
}

const (
	bonusPerStrategy = 2.0
	maxBonus         = 10.0
	jitterSpan       = 3.0 // perturbation in [-1.5, 1.5)
)

// fallbackRanking scores every outcome without the LLM. It is the terminal
// safety net of the pipeline and never panics.
func (s *AIStrategy) fallbackRanking(outcomes []outcome, p models.StrategyParams) []scoredCompany {
	out := make([]scoredCompany, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Company == nil {
			continue
		}
		out = append(out, s.fallbackEntry(o, p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func (s *AIStrategy) fallbackEntry(o outcome, p models.StrategyParams) (sc scoredCompany) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("ticker", o.Company.Ticker).Interface("panic", r).Msg("fallback scoring failed")
			sc = scoredCompany{
				company:   o.Company,
				narrative: o.Company.Ticker + " could not be scored by the heuristic models.",
				source:    sourceFallback,
			}
		}
	}()

	eligible := o.Eligible()
	score := compositeScore(o.Verdicts) + s.jitter()

	sc = scoredCompany{
		company:  o.Company,
		score:    clampScore(score),
		eligible: len(eligible),
		source:   sourceFallback,
	}
	conf := min(30+10*float64(len(eligible)), 90)
	sc.confidence = &conf

	if fv := meanFairValue(eligible); fv != nil {
		sc.fairValue = fv
		sc.upside = fundamental.Upside(*fv, o.Company.CurrentPrice)
	}

	sc.narrative = narrative(o, sc, p.RiskTolerance, s.randIntN(len(openings)))
	return sc
}

// compositeScore blends the eligible strategies' scores with renormalized
// weights and adds the consistency bonus. It does not include jitter.
func compositeScore(verdicts []verdict) float64 {
	var acc, wsum float64
	n := 0
	for _, v := range verdicts {
		if !v.Analysis.IsEligible {
			continue
		}
		w := fallbackWeights[v.Strategy]
		acc += w * v.Analysis.Score
		wsum += w
		n++
	}
	base := 0.0
	if wsum > 0 {
		base = acc / wsum
	}
	return base + min(bonusPerStrategy*float64(n), maxBonus)
}

// meanFairValue averages the positive fair values of the verdicts.
func meanFairValue(verdicts []verdict) *float64 {
	var fair []float64
	for _, v := range verdicts {
		if fv := v.Analysis.FairValue; fv != nil && *fv > 0 {
			fair = append(fair, *fv)
		}
	}
	if len(fair) == 0 {
		return nil
	}
	mean := stat.Mean(fair, nil)
	return &mean
}

func (s *AIStrategy) jitter() float64 {
	return s.randFloat()*jitterSpan - jitterSpan/2
}

func clampScore(v float64) float64 {
	return max(0, min(v, 100))
}

// ── Narrative ──

var openings = []string{
	"%s stands out in the quantitative screen.",
	"%s shows a consistent fundamental profile.",
	"The valuation models point to %s as a solid candidate.",
	"%s passes a broad set of valuation checks.",
}

// narrative writes the templated explanation. opening picks the first
// sentence and wraps around.
func narrative(o outcome, sc scoredCompany, risk models.RiskTolerance, opening int) string {
	c := o.Company
	label := c.Ticker
	if c.Name != "" {
		label = fmt.Sprintf("%s (%s)", c.Name, c.Ticker)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf(openings[opening%len(openings)], label))

	if eligible := o.Eligible(); len(eligible) > 0 {
		names := make([]string, len(eligible))
		for i, v := range eligible {
			names[i] = v.Name
		}
		parts = append(parts, fmt.Sprintf("It qualifies under %d of %d models: %s.", len(eligible), len(o.Verdicts), strings.Join(names, ", ")))
	} else {
		parts = append(parts, "No valuation model fully qualifies it, so it ranks on partial evidence.")
	}

	parts = append(parts, "Sector view: "+prompts.SectorNote(c.Sector)+".")

	if nd := fundamental.Current(c, fundamental.MetricNetDebtToEbitda); nd != nil {
		switch {
		case *nd > 3:
			parts = append(parts, fmt.Sprintf("Leverage is high at %.1fx net debt to EBITDA.", *nd))
		case *nd < 1:
			parts = append(parts, fmt.Sprintf("The balance sheet is light, with net debt at %.1fx EBITDA.", *nd))
		}
	}
	if m := fundamental.Current(c, fundamental.MetricNetMargin); m != nil {
		switch {
		case *m > 0.15:
			parts = append(parts, fmt.Sprintf("A net margin of %s shows pricing power.", utils.FormatRatio(*m)))
		case *m < 0.05:
			parts = append(parts, fmt.Sprintf("A thin net margin of %s leaves little room for error.", utils.FormatRatio(*m)))
		}
	}

	if sc.fairValue != nil {
		parts = append(parts, fmt.Sprintf("The models average a fair value of %.2f (%s).",
			*sc.fairValue, utils.FormatOptional(sc.upside, utils.FormatPct)))
	}

	parts = append(parts, closing(risk, sc.upside))
	return strings.Join(parts, " ")
}

func closing(risk models.RiskTolerance, upside *float64) string {
	switch risk {
	case models.RiskConservative:
		return "For a conservative investor, dividend record and balance sheet matter more than upside; size the position accordingly."
	case models.RiskAggressive:
		if upside != nil && *upside > 0 {
			return fmt.Sprintf("For an aggressive investor, the estimated upside of %s supports a larger allocation.", utils.FormatPct(*upside))
		}
		return "For an aggressive investor, it works as a quality anchor rather than a high-upside bet."
	default:
		return "For a moderate profile, it balances value and quality."
	}
}
