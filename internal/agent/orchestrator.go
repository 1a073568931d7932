package agent

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/openrank/internal/agent/prompts"
	"github.com/seenimoa/openrank/internal/analysis/fundamental"
	"github.com/seenimoa/openrank/internal/analysis/technical"
	"github.com/seenimoa/openrank/internal/llm"
	"github.com/seenimoa/openrank/internal/strategy"
	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

const (
	sourceAI       = "ai"
	sourceFallback = "fallback"

	// minAgreement is how many deterministic models must qualify a company
	// for a single-company AI analysis to call it eligible.
	minAgreement = 2
)

// scoredCompany is a shortlisted company with its final composite score,
// from either the LLM or the heuristic fallback.
type scoredCompany struct {
	company    *models.CompanyData
	score      float64
	fairValue  *float64
	upside     *float64
	confidence *float64
	narrative  string
	eligible   int
	source     string
}

// ── AIStrategy ──

// AIStrategy ranks companies with the four-stage LLM pipeline. It satisfies
// strategy.Strategy and is safe for concurrent use.
type AIStrategy struct {
	gen     Generator
	factory *strategy.Factory
	cfg     Config
	log     zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an AIStrategy.
type Option func(*AIStrategy)

// WithConfig sets the pipeline config.
func WithConfig(cfg Config) Option {
	return func(s *AIStrategy) { s.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *AIStrategy) { s.log = log }
}

// WithRand injects the random source used for fallback selection, score
// jitter and narrative openings.
func WithRand(r *rand.Rand) Option {
	return func(s *AIStrategy) { s.rng = r }
}

// WithFactory sets the factory the deterministic strategies are built from.
func WithFactory(f *strategy.Factory) Option {
	return func(s *AIStrategy) { s.factory = f }
}

// New creates the AI strategy. A nil gen skips both LLM stages and always
// ranks with the heuristic fallback.
func New(gen Generator, opts ...Option) *AIStrategy {
	s := &AIStrategy{
		gen: gen,
		cfg: DefaultConfig(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.normalized()
	if s.factory == nil {
		s.factory = strategy.NewFactory()
	}
	if s.rng == nil {
		seed := uint64(s.cfg.Seed)
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		s.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	s.log = s.log.With().Str("component", "ai_strategy").Logger()
	return s
}

// Register adds the AI strategy to f under models.StrategyAI. Every Create
// returns the same instance.
func Register(f *strategy.Factory, gen Generator, opts ...Option) *AIStrategy {
	s := New(gen, append([]Option{WithFactory(f)}, opts...)...)
	f.Register(models.StrategyAI, func() strategy.Strategy { return s })
	return s
}

func (s *AIStrategy) Type() models.StrategyType { return models.StrategyAI }
func (s *AIStrategy) Name() string              { return "AI Ranking (multi-strategy + LLM)" }

// ValidateCompanyData requires a ticker and a positive price; the
// deterministic models judge the rest.
func (s *AIStrategy) ValidateCompanyData(c *models.CompanyData, _ models.StrategyParams) bool {
	return c != nil && c.Ticker != "" && c.CurrentPrice > 0
}

// RunAnalysis runs every deterministic model on one company and blends them
// with the heuristic composite. It makes no LLM call and is deterministic.
func (s *AIStrategy) RunAnalysis(c *models.CompanyData, p models.StrategyParams) models.StrategyAnalysis {
	o := analyzeCompany(s.factory, c, p, s.log)
	eligible := o.Eligible()

	sc := scoredCompany{
		company:  c,
		score:    clampScore(compositeScore(o.Verdicts)),
		eligible: len(eligible),
	}
	if fv := meanFairValue(eligible); fv != nil {
		sc.fairValue = fv
		sc.upside = fundamental.Upside(*fv, c.CurrentPrice)
	}

	criteria := make([]models.Criterion, len(o.Verdicts))
	for i, v := range o.Verdicts {
		criteria[i] = models.Criterion{
			Label:       v.Name,
			Passed:      v.Analysis.IsEligible,
			Description: v.Analysis.Reasoning,
		}
	}

	return models.StrategyAnalysis{
		IsEligible: len(eligible) >= minAgreement,
		Score:      sc.score,
		FairValue:  sc.fairValue,
		Upside:     sc.upside,
		Reasoning:  narrative(o, sc, p.RiskTolerance, stableIndex(c.Ticker)),
		Criteria:   criteria,
		KeyMetrics: map[string]float64{
			"eligible_strategies": float64(len(eligible)),
			"composite":           sc.score,
		},
	}
}

// RunRanking filters the universe, shortlists with the LLM, runs every
// deterministic model on the shortlist, scores it with the LLM and falls
// back to the heuristic composite whenever an LLM stage cannot deliver.
// LLM failures never surface as errors; only a cancelled context does.
func (s *AIStrategy) RunRanking(ctx context.Context, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	start := time.Now()
	log := s.log.With().Str("run_id", uuid.NewString()).Logger()

	cfg := s.cfg
	if p.MinOverallScore > 0 {
		cfg.MinOverallScore = p.MinOverallScore
	}
	limit := p.Limit
	if limit <= 0 {
		limit = strategy.DefaultLimit
	}

	candidates := filterCandidates(companies, p, cfg)
	log.Info().Int("universe", len(companies)).Int("candidates", len(candidates)).Msg("pre-filter done")
	if len(candidates) == 0 {
		return []models.RankBuilderResult{}, nil
	}

	profile := profileOf(p, limit)
	var selected []*models.CompanyData
	if s.gen == nil {
		selected = s.shortlistWithoutLLM(candidates, selectionTarget(limit))
	} else {
		selected = s.selectCandidates(ctx, log, profile, candidates, selectionTarget(limit))
	}

	outcomes, err := executeStrategies(ctx, s.factory, selected, p, cfg.WaveSize, log)
	if err != nil {
		return nil, fmt.Errorf("strategy execution: %w", err)
	}

	var scored []scoredCompany
	if s.gen != nil {
		results, err := s.scoreBatch(ctx, log, profile, outcomes)
		if err == nil {
			scored = mergeResults(outcomes, results)
		} else {
			log.Warn().Err(err).Msg("scoring unavailable, using heuristic fallback")
		}
	}
	if scored == nil {
		scored = s.fallbackRanking(outcomes, p)
	}

	out := finish(scored, p, limit)
	source := sourceFallback
	if len(scored) > 0 {
		source = scored[0].source
	}
	log.Info().
		Int("results", len(out)).
		Str("source", source).
		Dur("elapsed", time.Since(start)).
		Msg("ranking complete")
	return out, nil
}

// GenerateRational describes the pipeline for the given params.
func (s *AIStrategy) GenerateRational(p models.StrategyParams) string {
	limit := p.Limit
	if limit <= 0 {
		limit = strategy.DefaultLimit
	}
	floor := s.cfg.MinOverallScore
	if p.MinOverallScore > 0 {
		floor = p.MinOverallScore
	}
	risk := p.RiskTolerance
	if risk == "" {
		risk = models.RiskModerate
	}

	var sb strings.Builder
	sb.WriteString("# AI Ranking: multi-strategy valuation with LLM synthesis\n\n")
	sb.WriteString("## Pipeline\n")
	fmt.Fprintf(&sb, "1. **Pre-filter**: overall score above %.0f, profitable companies only (banks and insurers judged on ROE), one share class per company, top %d by score.\n", floor, s.cfg.MaxCandidates)
	fmt.Fprintf(&sb, "2. **Selection**: the LLM shortlists %d companies for the %s profile; after %d rejected answers a score-weighted draw takes over.\n", selectionTarget(limit), risk, s.cfg.MaxAttempts)
	fmt.Fprintf(&sb, "3. **Valuation**: %d deterministic models run on every shortlisted company, %d at a time.\n", len(strategy.Deterministic()), s.cfg.WaveSize)
	sb.WriteString("4. **Scoring**: the LLM, with web search, weighs the models' verdicts and recent context into one score, fair value and narrative per company.\n")
	sb.WriteString("5. **Fallback**: if scoring fails, a weighted blend of the eligible models plus a consistency bonus ranks the shortlist.\n")
	if p.UseTechnicalAnalysis {
		sb.WriteString("6. **Timing**: oversold companies (RSI and Bollinger bands) move ahead of neutral and overbought ones.\n")
	}
	fmt.Fprintf(&sb, "\nThe final list keeps one entry per company and the top %d results.\n", limit)
	return sb.String()
}

// ── Helpers ──

// shortlistWithoutLLM is the selection stage when no LLM is configured.
func (s *AIStrategy) shortlistWithoutLLM(candidates []*models.CompanyData, target int) []*models.CompanyData {
	if len(candidates) <= target {
		return candidates
	}
	return s.weightedRandomSelection(candidates, target)
}

func (s *AIStrategy) request(prompt, system string, webSearch bool) *llm.Request {
	return &llm.Request{
		Prompt:      prompt,
		System:      system,
		WebSearch:   webSearch,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
}

func (s *AIStrategy) randFloat() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

func (s *AIStrategy) randIntN(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

func profileOf(p models.StrategyParams, limit int) prompts.Profile {
	return prompts.Profile{
		RiskTolerance: string(p.RiskTolerance),
		Horizon:       p.InvestmentHorizon,
		Focus:         p.Focus,
		Limit:         limit,
	}
}

// impliedFairValue returns the LLM's fair value, or the one its upside
// implies at price. Zero means neither is usable, and the result then
// carries no upside either.
func impliedFairValue(r AIResult, price float64) float64 {
	if r.FairValue != nil && *r.FairValue > 0 {
		return float64(*r.FairValue)
	}
	if r.Upside != nil && price > 0 && *r.Upside > -100 {
		return price * (1 + float64(*r.Upside)/100)
	}
	return 0
}

// mergeResults pairs validated LLM results with their outcomes.
func mergeResults(outcomes []outcome, results []AIResult) []scoredCompany {
	byTicker := make(map[string]AIResult, len(results))
	for _, r := range results {
		byTicker[utils.NormalizeTicker(r.Ticker)] = r
	}

	out := make([]scoredCompany, 0, len(outcomes))
	for _, o := range outcomes {
		r, ok := byTicker[utils.NormalizeTicker(o.Company.Ticker)]
		if !ok {
			continue
		}
		sc := scoredCompany{
			company:   o.Company,
			score:     clampScore(float64(r.Score)),
			narrative: strings.TrimSpace(r.Narrative),
			eligible:  len(o.Eligible()),
			source:    sourceAI,
		}
		if fv := impliedFairValue(r, o.Company.CurrentPrice); fv > 0 {
			sc.fairValue = &fv
			sc.upside = fundamental.Upside(fv, o.Company.CurrentPrice)
		}
		if r.Confidence != nil {
			sc.confidence = r.Confidence.ptr()
		}
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// finish dedupes by company keeping the best score, applies technical
// prioritization and truncates to the limit.
func finish(scored []scoredCompany, p models.StrategyParams, limit int) []models.RankBuilderResult {
	scored = strategy.Dedupe(scored,
		func(sc scoredCompany) string { return sc.company.Ticker },
		func(cur, cand scoredCompany) bool { return cand.score > cur.score },
	)
	if p.UseTechnicalAnalysis {
		scored = technical.Prioritize(scored, func(sc scoredCompany) []float64 { return sc.company.Closes() })
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]models.RankBuilderResult, len(scored))
	for i, sc := range scored {
		metrics := map[string]float64{
			"score":               sc.score,
			"eligible_strategies": float64(sc.eligible),
		}
		if sc.confidence != nil {
			metrics["confidence"] = *sc.confidence
		}
		out[i] = strategy.ToResult(sc.company, models.StrategyAnalysis{
			IsEligible: true,
			Score:      sc.score,
			FairValue:  sc.fairValue,
			Upside:     sc.upside,
			Reasoning:  sc.narrative,
			KeyMetrics: metrics,
		})
	}
	return out
}

func stableIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(len(openings)))
}
