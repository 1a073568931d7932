package models

// StrategyType identifies a ranking strategy.
type StrategyType string

const (
	StrategyGraham         StrategyType = "graham"
	StrategyDividendYield  StrategyType = "dividend_yield"
	StrategyLowPE          StrategyType = "low_pe"
	StrategyMagicFormula   StrategyType = "magic_formula"
	StrategyFCD            StrategyType = "fcd"
	StrategyGordon         StrategyType = "gordon"
	StrategyFundamentalist StrategyType = "fundamentalist_3_1"
	StrategyBarsi          StrategyType = "barsi"
	StrategyAI             StrategyType = "ai"
)

// CompanySize buckets companies by market capitalization.
type CompanySize string

const (
	SizeAll   CompanySize = "all"
	SizeSmall CompanySize = "small_caps" // < 2B
	SizeMid   CompanySize = "mid_caps"   // 2B - 10B
	SizeLarge CompanySize = "large_caps" // > 10B
)

// AssetType selects locally listed shares, BDRs or both.
type AssetType string

const (
	AssetLocal AssetType = "local"
	AssetBDR   AssetType = "bdr"
	AssetBoth  AssetType = "both"
)

// RiskTolerance is the investor profile used by the AI pipeline.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// ExclusionRule reports whether a company must be left out of a ranking.
type ExclusionRule func(c *CompanyData) bool

// StrategyParams configures one ranking invocation. Zero values fall back
// to the defaults of the strategy being run.
type StrategyParams struct {
	Limit                int         `json:"limit,omitempty"`
	CompanySize          CompanySize `json:"companySize,omitempty"`
	AssetType            AssetType   `json:"assetType,omitempty"`
	UseTechnicalAnalysis bool        `json:"useTechnicalAnalysis,omitempty"`
	Use7YearAverages     bool        `json:"use7YearAverages,omitempty"`

	// Threshold knobs; each strategy reads the ones it needs.
	MinYield                    float64 `json:"minYield,omitempty"`
	MinPL                       float64 `json:"minPL,omitempty"`
	MaxPL                       float64 `json:"maxPL,omitempty"`
	MinROE                      float64 `json:"minROE,omitempty"`
	MinROIC                     float64 `json:"minROIC,omitempty"`
	MinEarningsYield            float64 `json:"minEarningsYield,omitempty"`
	MarginOfSafety              float64 `json:"marginOfSafety,omitempty"`
	GrowthRate                  float64 `json:"growthRate,omitempty"`
	DiscountRate                float64 `json:"discountRate,omitempty"`
	YearsProjection             int     `json:"yearsProjection,omitempty"`
	DividendGrowthRate          float64 `json:"dividendGrowthRate,omitempty"`
	SkipSectorAdjustment        bool    `json:"skipSectorAdjustment,omitempty"`
	TargetDividendYield         float64 `json:"targetDividendYield,omitempty"`
	MinConsecutiveDividendYears int     `json:"minConsecutiveDividendYears,omitempty"`

	// Investor profile for the AI pipeline.
	RiskTolerance     RiskTolerance `json:"riskTolerance,omitempty"`
	InvestmentHorizon string        `json:"investmentHorizon,omitempty"`
	Focus             string        `json:"focus,omitempty"`

	// Universe controls.
	MinOverallScore float64       `json:"minOverallScore,omitempty"`
	ExcludedTickers []string      `json:"excludedTickers,omitempty"`
	ExcludedSectors []string      `json:"excludedSectors,omitempty"`
	Exclude         ExclusionRule `json:"-"`
}

// Criterion is one evaluated rule of a strategy.
type Criterion struct {
	Label       string `json:"label"`
	Passed      bool   `json:"passed"`
	Description string `json:"description"`
}

// StrategyAnalysis is the single-company verdict of a strategy.
type StrategyAnalysis struct {
	IsEligible bool               `json:"isEligible"`
	Score      float64            `json:"score"`
	FairValue  *float64           `json:"fairValue,omitempty"`
	Upside     *float64           `json:"upside,omitempty"`
	Reasoning  string             `json:"reasoning"`
	Criteria   []Criterion        `json:"criteria"`
	KeyMetrics map[string]float64 `json:"key_metrics,omitempty"`
}

// PassedCount returns how many criteria passed.
func (a StrategyAnalysis) PassedCount() int {
	n := 0
	for _, c := range a.Criteria {
		if c.Passed {
			n++
		}
	}
	return n
}

// RankBuilderResult is one company's row in a ranking output.
type RankBuilderResult struct {
	Ticker         string             `json:"ticker"`
	Name           string             `json:"name"`
	Sector         string             `json:"sector,omitempty"`
	CurrentPrice   float64            `json:"currentPrice"`
	Logo           string             `json:"logo,omitempty"`
	FairValue      *float64           `json:"fairValue,omitempty"`
	Upside         *float64           `json:"upside,omitempty"`
	MarginOfSafety *float64           `json:"marginOfSafety,omitempty"`
	Rational       string             `json:"rational"`
	KeyMetrics     map[string]float64 `json:"key_metrics,omitempty"`
}
