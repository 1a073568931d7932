package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seenimoa/openrank/internal/agent/prompts"
	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/internal/analysis/technical"
	"github.com/seenimoa/openrank/internal/llm"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const guidanceTickerJSON = `Answer with one JSON object of the form {"tickers": ["TICK3", ...]} and nothing else.`

// selectCandidates shortlists target companies. When the candidates already
// fit, no LLM call is made. It never fails: an exhausted or timed-out LLM
// stage falls back to a score-weighted random draw.
func (s *AIStrategy) selectCandidates(ctx context.Context, log zerolog.Logger, profile prompts.Profile, candidates []*models.CompanyData, target int) []*models.CompanyData {
	if len(candidates) <= target {
		log.Debug().Int("candidates", len(candidates)).Int("target", target).Msg("selection skipped")
		return candidates
	}

	inputs := make([]prompts.Candidate, len(candidates))
	byTicker := make(map[string]*models.CompanyData, len(candidates))
	for i, c := range candidates {
		inputs[i] = candidateInput(c)
		byTicker[utils.NormalizeTicker(c.Ticker)] = c
	}
	base := prompts.Selection(profile, target, inputs)

	state := newAttemptState(prompts.StageSelection, s.cfg.MaxAttempts)
	for state.next() {
		text, err := s.gen.Generate(ctx, s.request(buildPrompt(base, state.guidance), prompts.SelectionSystemPrompt, false))
		if err != nil {
			log.Warn().Err(err).Str("stage", state.String()).Msg("selection call failed")
			if errors.Is(err, llm.ErrCallTimeout) || ctx.Err() != nil {
				break
			}
			if errors.Is(err, llm.ErrRunawayOutput) {
				state.fail(guidanceNoRepeat)
			}
			continue
		}

		tickers, err := parseTickerList(text)
		if err != nil {
			log.Warn().Err(err).Str("stage", state.String()).Msg("selection output unparseable")
			state.fail(guidanceTickerJSON)
			continue
		}
		if issues := validateSelection(tickers, byTicker, target); len(issues) > 0 {
			log.Warn().Strs("issues", issues).Str("stage", state.String()).Msg("selection rejected")
			state.fail(issues...)
			continue
		}

		out := make([]*models.CompanyData, len(tickers))
		for i, t := range tickers {
			out[i] = byTicker[utils.NormalizeTicker(t)]
		}
		log.Info().Int("selected", len(out)).Str("stage", state.String()).Msg("selection accepted")
		return out
	}

	log.Warn().Int("target", target).Msg("selection falling back to weighted random draw")
	return s.weightedRandomSelection(candidates, target)
}

// validateSelection checks the exact count, candidate membership and that
// no two tickers share an underlying company.
func validateSelection(tickers []string, candidates map[string]*models.CompanyData, target int) []string {
	var issues []string
	if len(tickers) != target {
		issues = append(issues, fmt.Sprintf("Select exactly %d tickers; you selected %d.", target, len(tickers)))
	}

	roots := make(map[string]string, len(tickers))
	for _, raw := range tickers {
		t := utils.NormalizeTicker(raw)
		if _, ok := candidates[t]; !ok {
			issues = append(issues, fmt.Sprintf("%s is not a candidate; choose only tickers from the table.", t))
			continue
		}
		root := utils.TickerRoot(t)
		if prev, dup := roots[root]; dup {
			if prev == t {
				issues = append(issues, fmt.Sprintf("%s was selected twice; list each ticker once.", t))
			} else {
				issues = append(issues, fmt.Sprintf("%s and %s are the same company; keep only one.", prev, t))
			}
			continue
		}
		roots[root] = t
	}
	return issues
}

// weightedRandomSelection draws target companies without replacement, with
// probability proportional to the overall score.
func (s *AIStrategy) weightedRandomSelection(candidates []*models.CompanyData, target int) []*models.CompanyData {
	pool := append([]*models.CompanyData(nil), candidates...)
	out := make([]*models.CompanyData, 0, target)
	roots := make(map[string]bool, target)

	for len(out) < target && len(pool) > 0 {
		total := 0.0
		for _, c := range pool {
			total += selectionWeight(c)
		}
		r := s.randFloat() * total
		idx := len(pool) - 1
		for i, c := range pool {
			r -= selectionWeight(c)
			if r < 0 {
				idx = i
				break
			}
		}

		c := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		root := utils.TickerRoot(c.Ticker)
		if roots[root] {
			continue
		}
		roots[root] = true
		out = append(out, c)
	}
	return out
}

func selectionWeight(c *models.CompanyData) float64 {
	return max(c.Score(), 1)
}

func candidateInput(c *models.CompanyData) prompts.Candidate {
	in := prompts.Candidate{
		Ticker:          c.Ticker,
		Name:            c.Name,
		Sector:          c.Sector,
		Price:           c.CurrentPrice,
		OverallScore:    c.Score(),
		MarketCap:       fundamental.Current(c, fundamental.MetricMarketCap),
		PL:              fundamental.Current(c, fundamental.MetricPL),
		PVP:             fundamental.Current(c, fundamental.MetricPVP),
		ROE:             fundamental.Current(c, fundamental.MetricROE),
		DY:              fundamental.Current(c, fundamental.MetricDY),
		NetMargin:       fundamental.Current(c, fundamental.MetricNetMargin),
		NetDebtToEbitda: fundamental.Current(c, fundamental.MetricNetDebtToEbitda),
	}
	if closes := c.Closes(); len(closes) > 0 {
		in.Technical = technical.Analyze(closes).String()
	}
	return in
}
