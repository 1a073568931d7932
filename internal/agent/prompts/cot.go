package prompts

import (
	"fmt"
	"strings"

	"github.com/seenimoa/openrank/pkg/utils"
)

// ── Prompt Inputs ──

// Profile is the investor profile the prompts are written for.
type Profile struct {
	RiskTolerance string
	Horizon       string
	Focus         string
	Limit         int
}

// Candidate is one company's headline metrics. Ratios are decimals.
type Candidate struct {
	Ticker          string
	Name            string
	Sector          string
	Price           float64
	OverallScore    float64
	MarketCap       *float64
	PL              *float64
	PVP             *float64
	ROE             *float64
	DY              *float64
	NetMargin       *float64
	NetDebtToEbitda *float64
	Technical       string // optional short-horizon signal
}

// Verdict is one deterministic model's result for a company.
type Verdict struct {
	Strategy  string
	Eligible  bool
	Score     float64
	FairValue *float64
	Upside    *float64
	Reasoning string
}

// Scored is a shortlisted company with every model's verdict.
type Scored struct {
	Candidate
	Verdicts []Verdict
}

// ── Chain-of-Thought Templates ──

// Selection builds the shortlisting prompt: pick exactly target tickers
// from the candidates.
func Selection(p Profile, target int, candidates []Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Select exactly %d companies for a ranking of the top %d.\n\n", target, p.Limit)
	writeProfile(&sb, p)

	fmt.Fprintf(&sb, "## Candidates (%d)\n", len(candidates))
	sb.WriteString("ticker | name | sector | listing | price | score | mkt cap | P/L | P/VP | ROE | DY | net margin | net debt/EBITDA\n")
	for _, c := range candidates {
		writeCandidateRow(&sb, c)
	}

	fmt.Fprintf(&sb, `
Think step-by-step, then answer:

**Step 1 — Fit**: which candidates match the risk tolerance, horizon and focus?
**Step 2 — Quality**: which of those combine profitability with a sound balance sheet?
**Step 3 — Price**: which still trade at reasonable multiples?
**Step 4 — Diversify**: avoid concentrating in one sector and never pick two classes of the same company.
**Step 5 — Answer**: exactly %d tickers from the table, as {"tickers": [...]}.
`, target)
	sb.WriteString(MarketPromptSuffix())
	return sb.String()
}

// Scoring builds the batch-scoring prompt over every shortlisted company.
func Scoring(p Profile, companies []Scored) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Score each of the %d companies below.\n\n", len(companies))
	writeProfile(&sb, p)

	for _, c := range companies {
		fmt.Fprintf(&sb, "## %s — %s (%s, %s)\n", c.Ticker, c.Name, orUnknown(c.Sector), Listing(c.Ticker))
		fmt.Fprintf(&sb, "Price: %.2f | Score: %.0f | Mkt cap: %s | P/L: %s | ROE: %s | DY: %s | Net margin: %s | Net debt/EBITDA: %s\n",
			c.Price, c.OverallScore,
			utils.FormatOptional(c.MarketCap, utils.FormatCompact),
			utils.FormatOptional(c.PL, multiple),
			utils.FormatOptional(c.ROE, utils.FormatRatio),
			utils.FormatOptional(c.DY, utils.FormatRatio),
			utils.FormatOptional(c.NetMargin, utils.FormatRatio),
			utils.FormatOptional(c.NetDebtToEbitda, multiple),
		)
		if c.Technical != "" {
			fmt.Fprintf(&sb, "Technical: %s\n", c.Technical)
		}
		for _, v := range c.Verdicts {
			status := "ineligible"
			if v.Eligible {
				status = "ELIGIBLE"
			}
			fmt.Fprintf(&sb, "- %s: %s, score %.0f, fair value %s, upside %s. %s\n",
				v.Strategy, status, v.Score,
				utils.FormatOptional(v.FairValue, price),
				utils.FormatOptional(v.Upside, utils.FormatPct),
				oneLine(v.Reasoning),
			)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, `Think step-by-step for each company, then answer:

**Step 1 — Models**: how many models found it eligible, and do their fair values agree?
**Step 2 — Context**: search the web for recent results, guidance or events that change the picture.
**Step 3 — Profile**: does it suit the investor's risk tolerance and horizon?
**Step 4 — Verdict**: score, fair value, upside, confidence and a short narrative.

Return exactly %d results, one per ticker above, as {"results": [...]}.
`, len(companies))
	sb.WriteString(MarketPromptSuffix())
	return sb.String()
}

// ── Helpers ──

func writeProfile(sb *strings.Builder, p Profile) {
	sb.WriteString("## Investor Profile\n")
	fmt.Fprintf(sb, "- Risk tolerance: %s\n", orDefault(p.RiskTolerance, "moderate"))
	fmt.Fprintf(sb, "- Horizon: %s\n", orDefault(p.Horizon, "long term"))
	if p.Focus != "" {
		fmt.Fprintf(sb, "- Focus: %s\n", p.Focus)
	}
	sb.WriteString("\n")
}

func writeCandidateRow(sb *strings.Builder, c Candidate) {
	fmt.Fprintf(sb, "%s | %s | %s | %s | %.2f | %.0f | %s | %s | %s | %s | %s | %s | %s\n",
		c.Ticker, c.Name, orUnknown(c.Sector), Listing(c.Ticker), c.Price, c.OverallScore,
		utils.FormatOptional(c.MarketCap, utils.FormatCompact),
		utils.FormatOptional(c.PL, multiple),
		utils.FormatOptional(c.PVP, multiple),
		utils.FormatOptional(c.ROE, utils.FormatRatio),
		utils.FormatOptional(c.DY, utils.FormatRatio),
		utils.FormatOptional(c.NetMargin, utils.FormatRatio),
		utils.FormatOptional(c.NetDebtToEbitda, multiple),
	)
}

func multiple(v float64) string { return fmt.Sprintf("%.1fx", v) }
func price(v float64) string    { return fmt.Sprintf("%.2f", v) }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orUnknown(s string) string { return orDefault(s, "unknown sector") }

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
