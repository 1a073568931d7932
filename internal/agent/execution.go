package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/openrank/internal/strategy"
	"github.com/seenimoa/openrank/pkg/models"
)

// verdict is one deterministic strategy's analysis of a company.
type verdict struct {
	Strategy models.StrategyType
	Name     string
	Analysis models.StrategyAnalysis
}

// outcome gathers every deterministic verdict for one company, in the
// fixed strategy order. Failed is set when the analysis panicked and the
// verdicts are all-ineligible placeholders.
type outcome struct {
	Company  *models.CompanyData
	Verdicts []verdict
	Failed   bool
}

// Eligible returns the verdicts that judged the company eligible.
func (o outcome) Eligible() []verdict {
	var out []verdict
	for _, v := range o.Verdicts {
		if v.Analysis.IsEligible {
			out = append(out, v)
		}
	}
	return out
}

// executeStrategies runs every deterministic strategy over the companies in
// waves of waveSize. A company whose analysis fails gets placeholders; the
// batch never aborts. Output order matches input order.
func executeStrategies(ctx context.Context, f *strategy.Factory, companies []*models.CompanyData, p models.StrategyParams, waveSize int, log zerolog.Logger) ([]outcome, error) {
	if waveSize <= 0 {
		waveSize = DefaultWaveSize
	}
	out := make([]outcome, len(companies))

	for start := 0; start < len(companies); start += waveSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+waveSize, len(companies))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				out[i] = analyzeCompany(f, companies[i], p, log)
				return nil
			})
		}
		_ = g.Wait()
	}
	return out, nil
}

func analyzeCompany(f *strategy.Factory, c *models.CompanyData, p models.StrategyParams, log zerolog.Logger) (o outcome) {
	o.Company = c
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("ticker", c.Ticker).Interface("panic", r).Msg("strategy analysis failed")
			o = placeholder(c, fmt.Sprint(r))
		}
	}()

	for _, t := range strategy.Deterministic() {
		s, err := f.Create(t)
		if err != nil {
			panic(err)
		}
		o.Verdicts = append(o.Verdicts, verdict{Strategy: t, Name: s.Name(), Analysis: s.RunAnalysis(c, p)})
	}
	return o
}

// placeholder is the all-ineligible outcome used when analysis fails.
func placeholder(c *models.CompanyData, reason string) outcome {
	o := outcome{Company: c, Failed: true}
	for _, t := range strategy.Deterministic() {
		o.Verdicts = append(o.Verdicts, verdict{
			Strategy: t,
			Name:     string(t),
			Analysis: models.StrategyAnalysis{Reasoning: "analysis unavailable: " + reason},
		})
	}
	return o
}
