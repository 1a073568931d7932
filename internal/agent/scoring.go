package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/seenimoa/openrank/internal/agent/prompts"
	"github.com/seenimoa/openrank/internal/llm"
	"github.com/seenimoa/openrank/pkg/utils"
)

// AIResult is the LLM's holistic verdict for one ticker.
type AIResult struct {
	Ticker       string     `json:"ticker" validate:"required"`
	CurrentPrice flexFloat  `json:"currentPrice" validate:"gt=0"`
	Score        flexFloat  `json:"score" validate:"gte=0,lte=100"`
	FairValue    *flexFloat `json:"fairValue,omitempty" validate:"omitempty,gte=0"`
	Upside       *flexFloat `json:"upside,omitempty"`
	Confidence   *flexFloat `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=100"`
	Narrative    string     `json:"narrative" validate:"required"`
}

// flexFloat decodes numbers the way models tend to write them: plain
// numbers, quoted numbers, "25%", "R$ 10,50" or "1.234,56".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] != '"' {
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	// Unreadable text decodes as zero so validation can name the field.
	v, err := parseLooseNumber(s)
	if err != nil {
		v = 0
	}
	*f = flexFloat(v)
	return nil
}

func (f flexFloat) ptr() *float64 {
	v := float64(f)
	return &v
}

func parseLooseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("R$", "", "US$", "", "$", "", "%", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return 0, nil
	}
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

// ── Validation ──

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateResults checks a parsed batch against the tickers that were sent.
// Every problem is returned as a corrective instruction for the next attempt.
func validateResults(results []AIResult, tickers []string) []string {
	var issues []string
	if len(results) != len(tickers) {
		issues = append(issues, fmt.Sprintf("Return exactly %d results, one per ticker; you returned %d.", len(tickers), len(results)))
	}

	want := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		want[utils.NormalizeTicker(t)] = true
	}
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		t := utils.NormalizeTicker(r.Ticker)
		switch {
		case t == "":
		case seen[t]:
			issues = append(issues, fmt.Sprintf("Ticker %s appears more than once; score each company exactly once.", t))
		case !want[t]:
			issues = append(issues, fmt.Sprintf("Ticker %s was not in the list; score only the companies given.", t))
		}
		seen[t] = true

		if err := validate.Struct(r); err != nil {
			issues = append(issues, fieldIssues(t, err)...)
		}
	}

	var missing []string
	for _, t := range tickers {
		if !seen[utils.NormalizeTicker(t)] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, "Missing results for: "+strings.Join(missing, ", ")+".")
	}
	return issues
}

func fieldIssues(ticker string, err error) []string {
	if ticker == "" {
		ticker = "a result"
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{fmt.Sprintf("Result for %s is invalid: %v.", ticker, err)}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("Result for %s is missing %q.", ticker, fe.Field()))
		case "gt", "gte", "lte":
			out = append(out, fmt.Sprintf("Result for %s has %q out of range (%s %s).", ticker, fe.Field(), fe.Tag(), fe.Param()))
		default:
			out = append(out, fmt.Sprintf("Result for %s has an invalid %q.", ticker, fe.Field()))
		}
	}
	return out
}

// ── Stage ──

const (
	guidanceJSONOnly = `Answer with one JSON object of the form {"results": [...]} and no text before or after it.`
	guidanceNoRepeat = "Do not repeat yourself. Write each ticker once and stop right after the closing brace."
)

// scoreBatch asks the LLM, with web search, to score every outcome. A
// timeout or cancelled context aborts at once; any other failure spends an
// attempt and feeds guidance into the next prompt.
func (s *AIStrategy) scoreBatch(ctx context.Context, log zerolog.Logger, profile prompts.Profile, outcomes []outcome) ([]AIResult, error) {
	inputs := make([]prompts.Scored, len(outcomes))
	tickers := make([]string, len(outcomes))
	for i, o := range outcomes {
		inputs[i] = scoredInput(o)
		tickers[i] = o.Company.Ticker
	}
	base := prompts.Scoring(profile, inputs)

	state := newAttemptState(prompts.StageScoring, s.cfg.MaxAttempts)
	var lastErr error
	for state.next() {
		text, err := s.gen.Generate(ctx, s.request(buildPrompt(base, state.guidance), prompts.ScoringSystemPrompt, true))
		if err != nil {
			if errors.Is(err, llm.ErrCallTimeout) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			log.Warn().Err(err).Str("stage", state.String()).Msg("scoring call failed")
			if errors.Is(err, llm.ErrRunawayOutput) {
				state.fail(guidanceNoRepeat)
			}
			continue
		}

		results, parser, err := parseResults(text)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("stage", state.String()).Msg("scoring output unparseable")
			state.fail(guidanceJSONOnly)
			continue
		}
		if issues := validateResults(results, tickers); len(issues) > 0 {
			lastErr = fmt.Errorf("%w: %s", ErrValidation, strings.Join(issues, " "))
			log.Warn().Strs("issues", issues).Str("stage", state.String()).Msg("scoring output rejected")
			state.fail(issues...)
			continue
		}

		log.Debug().Str("parser", parser).Str("stage", state.String()).Int("results", len(results)).Msg("scoring accepted")
		return results, nil
	}
	return nil, fmt.Errorf("scoring gave up after %d attempts: %w", state.attempt, lastErr)
}

func scoredInput(o outcome) prompts.Scored {
	sc := prompts.Scored{Candidate: candidateInput(o.Company)}
	for _, v := range o.Verdicts {
		sc.Verdicts = append(sc.Verdicts, prompts.Verdict{
			Strategy:  v.Name,
			Eligible:  v.Analysis.IsEligible,
			Score:     v.Analysis.Score,
			FairValue: v.Analysis.FairValue,
			Upside:    v.Analysis.Upside,
			Reasoning: v.Analysis.Reasoning,
		})
	}
	return sc
}
