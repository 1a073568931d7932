package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// ── CompanyData Tests ──

func TestCompanyDataDecodesPortugueseKeys(t *testing.T) {
	raw := `{
		"ticker": "TAEE11",
		"name": "Taesa",
		"currentPrice": 35.5,
		"overallScore": 81,
		"financials": {
			"dy": 0.09,
			"liquidezCorrente": 1.4,
			"dividaLiquidaEbitda": 3.1,
			"margemLiquida": 0.42,
			"lpa": 3.2,
			"vpa": 21.7
		},
		"historicalFinancials": [{"year": 2024, "financials": {"lpa": 3.0}}]
	}`

	var c CompanyData
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("json.Unmarshal(CompanyData) error: %v", err)
	}

	checks := map[string]*float64{
		"dy":                  c.Financials.DY,
		"liquidezCorrente":    c.Financials.CurrentRatio,
		"dividaLiquidaEbitda": c.Financials.NetDebtToEbitda,
		"margemLiquida":       c.Financials.NetMargin,
		"lpa":                 c.Financials.EPS,
		"vpa":                 c.Financials.BVPS,
	}
	for key, v := range checks {
		if v == nil {
			t.Errorf("%s was not decoded", key)
		}
	}
	if c.Financials.PL != nil {
		t.Error("absent fields must stay nil")
	}
	if c.Score() != 81 {
		t.Errorf("Score() = %v, want 81", c.Score())
	}
	if len(c.HistoricalFinancials) != 1 || c.HistoricalFinancials[0].Year != 2024 {
		t.Errorf("historical snapshots = %+v", c.HistoricalFinancials)
	}
}

func TestCompanyDataOmitsMissingFields(t *testing.T) {
	c := CompanyData{Ticker: "WEGE3", Name: "WEG", CurrentPrice: 40}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	for _, key := range []string{"overallScore", "priceHistory", "dy", "sector"} {
		if strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("missing %s should be omitted: %s", key, data)
		}
	}
}

func TestCompanyAccessors(t *testing.T) {
	var c CompanyData
	if c.MarketCap() != 0 || c.Score() != 0 {
		t.Error("missing market cap and score should read as zero")
	}
	if c.Closes() != nil {
		t.Error("no price history should give nil closes")
	}

	c.Financials.MarketCap = Float(5e9)
	c.OverallScore = Float(72)
	if c.MarketCap() != 5e9 {
		t.Errorf("MarketCap() = %v", c.MarketCap())
	}
	if c.Score() != 72 {
		t.Errorf("Score() = %v", c.Score())
	}
}

func TestClosesKeepsOrder(t *testing.T) {
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	c := CompanyData{PriceHistory: []OHLCV{
		{Timestamp: day, Close: 10},
		{Timestamp: day.AddDate(0, 0, 1), Close: 11},
		{Timestamp: day.AddDate(0, 0, 2), Close: 9.5},
	}}

	closes := c.Closes()
	want := []float64{10, 11, 9.5}
	if len(closes) != len(want) {
		t.Fatalf("len(Closes()) = %d, want %d", len(closes), len(want))
	}
	for i := range want {
		if closes[i] != want[i] {
			t.Errorf("closes[%d] = %v, want %v", i, closes[i], want[i])
		}
	}
}

func TestFloat(t *testing.T) {
	a, b := Float(1), Float(1)
	if a == b {
		t.Error("Float must return distinct pointers")
	}
	*a = 2
	if *b != 1 {
		t.Error("pointers must not alias")
	}
}

// ── Strategy Tests ──

func TestStrategyTypeConstants(t *testing.T) {
	tests := []struct {
		st   StrategyType
		want string
	}{
		{StrategyGraham, "graham"},
		{StrategyDividendYield, "dividend_yield"},
		{StrategyLowPE, "low_pe"},
		{StrategyMagicFormula, "magic_formula"},
		{StrategyFCD, "fcd"},
		{StrategyGordon, "gordon"},
		{StrategyFundamentalist, "fundamentalist_3_1"},
		{StrategyBarsi, "barsi"},
		{StrategyAI, "ai"},
	}
	for _, tt := range tests {
		if string(tt.st) != tt.want {
			t.Errorf("StrategyType = %q, want %q", tt.st, tt.want)
		}
	}
}

func TestPassedCount(t *testing.T) {
	a := StrategyAnalysis{Criteria: []Criterion{
		{Label: "P/L", Passed: true},
		{Label: "ROE", Passed: false},
		{Label: "Dívida", Passed: true},
	}}
	if got := a.PassedCount(); got != 2 {
		t.Errorf("PassedCount() = %d, want 2", got)
	}
	if got := (StrategyAnalysis{}).PassedCount(); got != 0 {
		t.Errorf("empty PassedCount() = %d, want 0", got)
	}
}

func TestStrategyParamsSkipsExclusionRule(t *testing.T) {
	p := StrategyParams{
		Limit:         5,
		RiskTolerance: RiskAggressive,
		Exclude:       func(*CompanyData) bool { return true },
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal(StrategyParams) error: %v", err)
	}

	var decoded StrategyParams
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if decoded.Limit != 5 || decoded.RiskTolerance != RiskAggressive {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Exclude != nil {
		t.Error("exclusion rules are not serialized")
	}
}

func TestRankBuilderResultKeyMetricsTag(t *testing.T) {
	r := RankBuilderResult{Ticker: "BBAS3", KeyMetrics: map[string]float64{"score": 80}}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"key_metrics":{"score":80}`) {
		t.Errorf("unexpected encoding: %s", data)
	}
}
