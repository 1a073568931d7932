package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/openrank/pkg/models"
)

// ErrUnknownStrategy is returned for an unregistered strategy type.
var ErrUnknownStrategy = errors.New("unknown strategy type")

// Constructor builds a strategy instance.
type Constructor func() Strategy

// Factory maps strategy type tokens to constructors. It is safe for
// concurrent use.
type Factory struct {
	mu    sync.RWMutex
	ctors map[models.StrategyType]Constructor
	log   zerolog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger logs every ranking run at debug level.
func WithLogger(l zerolog.Logger) FactoryOption {
	return func(f *Factory) { f.log = l.With().Str("component", "strategy").Logger() }
}

// NewFactory returns a factory with every deterministic strategy registered.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		ctors: make(map[models.StrategyType]Constructor),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.Register(models.StrategyGraham, NewGraham)
	f.Register(models.StrategyDividendYield, NewDividendYield)
	f.Register(models.StrategyLowPE, NewLowPE)
	f.Register(models.StrategyMagicFormula, NewMagicFormula)
	f.Register(models.StrategyFCD, NewFCD)
	f.Register(models.StrategyGordon, NewGordon)
	f.Register(models.StrategyFundamentalist, NewFundamentalist)
	f.Register(models.StrategyBarsi, NewBarsi)
	return f
}

// Register adds or replaces a constructor.
func (f *Factory) Register(t models.StrategyType, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[t] = ctor
}

// Create builds the strategy for t or fails with ErrUnknownStrategy.
func (f *Factory) Create(t models.StrategyType) (Strategy, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[t]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, t)
	}
	return ctor(), nil
}

// Types lists the registered strategy types in sorted order.
func (f *Factory) Types() []models.StrategyType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.StrategyType, 0, len(f.ctors))
	for t := range f.ctors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Deterministic lists the strategies the AI pipeline runs per company, in
// a fixed order.
func Deterministic() []models.StrategyType {
	return []models.StrategyType{
		models.StrategyGraham,
		models.StrategyDividendYield,
		models.StrategyLowPE,
		models.StrategyMagicFormula,
		models.StrategyFCD,
		models.StrategyGordon,
		models.StrategyBarsi,
	}
}

// Analyze runs one strategy's analysis on a company.
func (f *Factory) Analyze(t models.StrategyType, c *models.CompanyData, p models.StrategyParams) (models.StrategyAnalysis, error) {
	s, err := f.Create(t)
	if err != nil {
		return models.StrategyAnalysis{}, err
	}
	return s.RunAnalysis(c, p), nil
}

// Rank runs one strategy's ranking over a company universe.
func (f *Factory) Rank(ctx context.Context, t models.StrategyType, companies []models.CompanyData, p models.StrategyParams) ([]models.RankBuilderResult, error) {
	s, err := f.Create(t)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := s.RunRanking(ctx, companies, p)
	if err != nil {
		f.log.Warn().Err(err).Str("strategy", string(t)).Msg("ranking failed")
		return nil, err
	}
	f.log.Debug().
		Str("strategy", string(t)).
		Int("companies", len(companies)).
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("ranking finished")
	return results, nil
}

// Rational returns one strategy's methodology description.
func (f *Factory) Rational(t models.StrategyType, p models.StrategyParams) (string, error) {
	s, err := f.Create(t)
	if err != nil {
		return "", err
	}
	return s.GenerateRational(p), nil
}
