package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

// ── System Prompts ──

func TestSystemPromptsDescribeOutput(t *testing.T) {
	assert.Contains(t, SelectionSystemPrompt, `{"tickers"`)
	assert.Contains(t, ScoringSystemPrompt, `{"results"`)
	assert.Contains(t, ScoringSystemPrompt, "narrative")
	assert.NotEqual(t, StageSelection, StageScoring)
}

// ── Market Context ──

func TestMarketPromptSuffix(t *testing.T) {
	s := MarketPromptSuffix()
	assert.Contains(t, s, "B3")
	assert.Contains(t, s, "Number Conventions")
}

func TestSectorNote(t *testing.T) {
	tests := []struct {
		sector string
		want   string
	}{
		{"Bancos", "financial sector"},
		{"Energia Elétrica", "regulated utility"},
		{"Petróleo, Gás e Biocombustíveis", "commodity exposure"},
		{"Software", "technology company"},
		{"", "sector not classified"},
		{"Transporte", "operates in Transporte"},
	}
	for _, tt := range tests {
		t.Run(tt.sector, func(t *testing.T) {
			assert.Contains(t, SectorNote(tt.sector), tt.want)
		})
	}
}

func TestListing(t *testing.T) {
	assert.Equal(t, "BDR", Listing("AAPL34"))
	assert.Equal(t, "B3", Listing("PETR4"))
}

// ── Task Prompts ──

func TestSelection(t *testing.T) {
	p := Profile{RiskTolerance: "conservative", Horizon: "5 years", Focus: "dividends", Limit: 5}
	cands := []Candidate{
		{Ticker: "TAEE11", Name: "Taesa", Sector: "Energia Elétrica", Price: 35.2, OverallScore: 81, DY: f(0.09), PL: f(7.5)},
		{Ticker: "AAPL34", Name: "Apple", Sector: "Tecnologia", Price: 60, OverallScore: 77},
	}

	out := Selection(p, 10, cands)

	assert.Contains(t, out, "Select exactly 10 companies")
	assert.Contains(t, out, "conservative")
	assert.Contains(t, out, "dividends")
	assert.Contains(t, out, "## Candidates (2)")
	assert.Contains(t, out, "TAEE11 | Taesa")
	assert.Contains(t, out, "9%")
	assert.Contains(t, out, "7.5x")
	assert.Contains(t, out, "AAPL34 | Apple | Tecnologia | BDR")
	assert.Contains(t, out, "n/a")
}

func TestSelectionDefaultsProfile(t *testing.T) {
	out := Selection(Profile{Limit: 3}, 8, nil)
	assert.Contains(t, out, "Risk tolerance: moderate")
	assert.Contains(t, out, "Horizon: long term")
	assert.NotContains(t, out, "Focus:")
}

func TestScoring(t *testing.T) {
	companies := []Scored{{
		Candidate: Candidate{Ticker: "WEGE3", Name: "WEG", Sector: "Máquinas", Price: 40, OverallScore: 88, ROE: f(0.3), Technical: "oversold (RSI 27.0)"},
		Verdicts: []Verdict{
			{Strategy: "Graham", Eligible: false, Score: 40, Reasoning: "Price above\n fair value"},
			{Strategy: "FCD", Eligible: true, Score: 85, FairValue: f(52.5), Upside: f(31.25)},
		},
	}}

	out := Scoring(Profile{RiskTolerance: "aggressive", Limit: 3}, companies)

	assert.Contains(t, out, "Score each of the 1 companies")
	assert.Contains(t, out, "## WEGE3 — WEG (Máquinas, B3)")
	assert.Contains(t, out, "ROE: 30%")
	assert.Contains(t, out, "Technical: oversold")
	assert.Contains(t, out, "- Graham: ineligible, score 40, fair value n/a")
	assert.Contains(t, out, "Price above fair value")
	assert.Contains(t, out, "- FCD: ELIGIBLE, score 85, fair value 52.50, upside +31.25%")
	assert.Contains(t, out, "Return exactly 1 results")
	assert.Contains(t, out, "search the web")
}

func TestScoringIsDeterministic(t *testing.T) {
	companies := []Scored{{Candidate: Candidate{Ticker: "ITSA4", Name: "Itaúsa", Price: 10}}}
	p := Profile{Limit: 1}
	assert.Equal(t, Scoring(p, companies), Scoring(p, companies))
	assert.True(t, strings.HasSuffix(Scoring(p, companies), MarketPromptSuffix()))
}
