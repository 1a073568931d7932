package prompts

import (
	"strings"

	"github.com/seenimoa/openrank/pkg/utils"
)

// ── B3 Market Context ──

// MarketContext provides Brazilian market context for the pipeline prompts.
const MarketContext = `
## Market Context
- Exchange: B3 (Brasil, Bolsa, Balcão), São Paulo
- Currency: Brazilian Real (R$ / BRL)
- Share classes: ON (suffix 3), PN (suffix 4), PNA/PNB (5, 6), units (11); same root = same company
- BDRs: foreign companies cross-listed locally (suffixes 32-35, 39); priced in BRL, valued against foreign fundamentals
- Benchmark rate: Selic; equity discount rates are built on top of it
- Dividends: dividends and interest on capital (JCP); payout is usually a large share of earnings
- Key indices: Ibovespa, IDIV (dividends), SMLL (small caps), IFIX (real estate funds)
`

// NumberFormat describes how figures are written in the prompts.
const NumberFormat = `
## Number Conventions
- Ratios in the data are percentages: ROE 15.3% means 0.153 of equity
- Large amounts use short scale: 3.2B = 3,200,000,000 BRL
- Multiples use an x suffix: P/L 8.4x
- Answer numbers as plain JSON numbers without currency or % symbols
`

// MarketPromptSuffix returns the market context and number conventions.
// Append it to a task prompt.
func MarketPromptSuffix() string {
	return MarketContext + NumberFormat
}

// sectorNotes maps sector keywords to a one-line commentary.
var sectorNotes = []struct {
	keywords []string
	note     string
}{
	{[]string{"banco", "bank", "financ", "seguro", "insur"}, "financial sector, where return on equity and capital adequacy matter more than margins"},
	{[]string{"energia", "elétric", "eletric", "utilit", "saneamento", "water"}, "regulated utility with predictable cash flows and a tradition of dividends"},
	{[]string{"petróleo", "petroleo", "oil", "gas", "mineração", "mineracao", "mining", "siderurgia", "steel"}, "commodity exposure, so earnings follow global prices and the exchange rate"},
	{[]string{"varejo", "retail", "consumo", "consumer"}, "consumer-facing business sensitive to interest rates and household income"},
	{[]string{"tecnologia", "technology", "software", "tech"}, "technology company where growth carries much of the valuation"},
	{[]string{"saúde", "saude", "health", "pharma"}, "healthcare business with defensive demand"},
	{[]string{"telecom", "comunica"}, "telecom operator with heavy capital expenditure and steady subscriptions"},
	{[]string{"imobili", "construção", "construcao", "real estate"}, "real estate and construction, highly exposed to the credit cycle"},
	{[]string{"agro", "aliment", "food"}, "agribusiness and food, tied to harvests and export demand"},
}

// SectorNote returns a short commentary on the sector, or a generic line
// when the sector is unknown.
func SectorNote(sector string) string {
	s := strings.ToLower(sector)
	for _, n := range sectorNotes {
		for _, k := range n.keywords {
			if strings.Contains(s, k) {
				return n.note
			}
		}
	}
	if sector == "" {
		return "sector not classified"
	}
	return "operates in " + sector
}

// Listing describes where a ticker trades.
func Listing(ticker string) string {
	if utils.IsBDR(ticker) {
		return "BDR"
	}
	return "B3"
}
