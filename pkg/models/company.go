// Package models holds the data model shared by the ranking engine:
// company snapshots, strategy parameters, per-company verdicts and ranking rows.
package models

import "time"

// OHLCV represents a single daily candlestick bar.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Financials holds one period of fundamentals. Every field is optional;
// ratios are decimals (0.14 means 14%).
type Financials struct {
	DY                *float64 `json:"dy,omitempty"`
	ROE               *float64 `json:"roe,omitempty"`
	ROIC              *float64 `json:"roic,omitempty"`
	ROA               *float64 `json:"roa,omitempty"`
	PL                *float64 `json:"pl,omitempty"`  // price / earnings
	PVP               *float64 `json:"pvp,omitempty"` // price / book value
	EVEbitda          *float64 `json:"evEbitda,omitempty"`
	CurrentRatio      *float64 `json:"liquidezCorrente,omitempty"`
	NetDebtToEquity   *float64 `json:"dividaLiquidaPl,omitempty"`
	NetDebtToEbitda   *float64 `json:"dividaLiquidaEbitda,omitempty"`
	NetMargin         *float64 `json:"margemLiquida,omitempty"`
	EbitdaMargin      *float64 `json:"margemEbitda,omitempty"`
	EPS               *float64 `json:"lpa,omitempty"`
	BVPS              *float64 `json:"vpa,omitempty"`
	MarketCap         *float64 `json:"marketCap,omitempty"`
	Ebitda            *float64 `json:"ebitda,omitempty"`
	FreeCashFlow      *float64 `json:"fluxoCaixaLivre,omitempty"`
	SharesOutstanding *float64 `json:"sharesOutstanding,omitempty"`
	Revenue           *float64 `json:"receitaTotal,omitempty"`
	NetIncome         *float64 `json:"lucroLiquido,omitempty"`
	RevenueGrowth     *float64 `json:"crescimentoReceita,omitempty"`
	EarningsGrowth    *float64 `json:"crescimentoLucros,omitempty"`
	Payout            *float64 `json:"payout,omitempty"`
	DividendPerShare  *float64 `json:"dividendoPorAcao,omitempty"`
	EarningsYield     *float64 `json:"earningsYield,omitempty"`
}

// HistoricalSnapshot is one annual record of fundamentals.
type HistoricalSnapshot struct {
	Year       int        `json:"year"`
	Financials Financials `json:"financials"`
}

// CompanyData is one company's analyzable snapshot. It is owned by the
// caller and treated as read-only for the duration of a ranking run.
type CompanyData struct {
	Ticker               string               `json:"ticker"`
	Name                 string               `json:"name"`
	Sector               string               `json:"sector,omitempty"`
	CurrentPrice         float64              `json:"currentPrice"`
	Logo                 string               `json:"logo,omitempty"`
	Financials           Financials           `json:"financials"`
	HistoricalFinancials []HistoricalSnapshot `json:"historicalFinancials,omitempty"` // most recent first, up to 7
	OverallScore         *float64             `json:"overallScore,omitempty"`         // 0-100
	PriceHistory         []OHLCV              `json:"priceHistory,omitempty"`         // oldest first
}

// MaxHistoricalYears bounds the trailing window used for averages.
const MaxHistoricalYears = 7

// Closes returns the closing prices of the price history, oldest first.
func (c *CompanyData) Closes() []float64 {
	if len(c.PriceHistory) == 0 {
		return nil
	}
	out := make([]float64, len(c.PriceHistory))
	for i, bar := range c.PriceHistory {
		out[i] = bar.Close
	}
	return out
}

// MarketCap returns the company's market capitalization or 0 when unknown.
func (c *CompanyData) MarketCap() float64 {
	if c.Financials.MarketCap == nil {
		return 0
	}
	return *c.Financials.MarketCap
}

// Score returns the externally supplied overall score or 0 when absent.
func (c *CompanyData) Score() float64 {
	if c.OverallScore == nil {
		return 0
	}
	return *c.OverallScore
}

// Float returns a pointer to v. Handy for building fixtures and optional fields.
func Float(v float64) *float64 {
	return &v
}
