// Package fundamental reads fundamentals off a company snapshot and holds the
// valuation math (Graham number, projected cash flows, dividend discount).
package fundamental

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/openrank/pkg/models"
)

// Metric names a field of models.Financials using its JSON key.
type Metric string

const (
	MetricDY                Metric = "dy"
	MetricROE               Metric = "roe"
	MetricROIC              Metric = "roic"
	MetricROA               Metric = "roa"
	MetricPL                Metric = "pl"
	MetricPVP               Metric = "pvp"
	MetricEVEbitda          Metric = "evEbitda"
	MetricCurrentRatio      Metric = "liquidezCorrente"
	MetricNetDebtToEquity   Metric = "dividaLiquidaPl"
	MetricNetDebtToEbitda   Metric = "dividaLiquidaEbitda"
	MetricNetMargin         Metric = "margemLiquida"
	MetricEbitdaMargin      Metric = "margemEbitda"
	MetricEPS               Metric = "lpa"
	MetricBVPS              Metric = "vpa"
	MetricMarketCap         Metric = "marketCap"
	MetricEbitda            Metric = "ebitda"
	MetricFreeCashFlow      Metric = "fluxoCaixaLivre"
	MetricSharesOutstanding Metric = "sharesOutstanding"
	MetricRevenue           Metric = "receitaTotal"
	MetricNetIncome         Metric = "lucroLiquido"
	MetricRevenueGrowth     Metric = "crescimentoReceita"
	MetricEarningsGrowth    Metric = "crescimentoLucros"
	MetricPayout            Metric = "payout"
	MetricDividendPerShare  Metric = "dividendoPorAcao"
	MetricEarningsYield     Metric = "earningsYield"
)

// averageable lists the metrics that are meaningful as trailing averages.
// Price multiples and size figures always use the current period.
var averageable = map[Metric]bool{
	MetricDY:              true,
	MetricROE:             true,
	MetricROIC:            true,
	MetricROA:             true,
	MetricNetMargin:       true,
	MetricEbitdaMargin:    true,
	MetricCurrentRatio:    true,
	MetricNetDebtToEquity: true,
	MetricNetDebtToEbitda: true,
	MetricRevenueGrowth:   true,
	MetricEarningsGrowth:  true,
	MetricPayout:          true,
}

// Field returns the raw pointer stored for m in f.
func Field(f *models.Financials, m Metric) *float64 {
	switch m {
	case MetricDY:
		return f.DY
	case MetricROE:
		return f.ROE
	case MetricROIC:
		return f.ROIC
	case MetricROA:
		return f.ROA
	case MetricPL:
		return f.PL
	case MetricPVP:
		return f.PVP
	case MetricEVEbitda:
		return f.EVEbitda
	case MetricCurrentRatio:
		return f.CurrentRatio
	case MetricNetDebtToEquity:
		return f.NetDebtToEquity
	case MetricNetDebtToEbitda:
		return f.NetDebtToEbitda
	case MetricNetMargin:
		return f.NetMargin
	case MetricEbitdaMargin:
		return f.EbitdaMargin
	case MetricEPS:
		return f.EPS
	case MetricBVPS:
		return f.BVPS
	case MetricMarketCap:
		return f.MarketCap
	case MetricEbitda:
		return f.Ebitda
	case MetricFreeCashFlow:
		return f.FreeCashFlow
	case MetricSharesOutstanding:
		return f.SharesOutstanding
	case MetricRevenue:
		return f.Revenue
	case MetricNetIncome:
		return f.NetIncome
	case MetricRevenueGrowth:
		return f.RevenueGrowth
	case MetricEarningsGrowth:
		return f.EarningsGrowth
	case MetricPayout:
		return f.Payout
	case MetricDividendPerShare:
		return f.DividendPerShare
	case MetricEarningsYield:
		return f.EarningsYield
	}
	return nil
}

// Current returns a copy of the current-period value, or nil when the field
// is missing or not a finite number.
func Current(c *models.CompanyData, m Metric) *float64 {
	return finite(Field(&c.Financials, m))
}

// Average returns the mean of the current value and up to years-1 prior
// annual values. Missing years are skipped; nil when nothing is available.
func Average(c *models.CompanyData, m Metric, years int) *float64 {
	values := collect(c, m, years)
	if len(values) == 0 {
		return nil
	}
	mean := stat.Mean(values, nil)
	return &mean
}

// Value returns the trailing average when useAverages is set and the metric
// supports it, otherwise the current value. The current value is used when
// no history exists.
func Value(c *models.CompanyData, m Metric, useAverages bool) *float64 {
	if useAverages && averageable[m] {
		if v := Average(c, m, models.MaxHistoricalYears); v != nil {
			return v
		}
	}
	return Current(c, m)
}

// History returns current then historical values, most recent first.
// Entries are nil where the field is missing.
func History(c *models.CompanyData, m Metric) []*float64 {
	out := make([]*float64, 0, len(c.HistoricalFinancials)+1)
	out = append(out, Current(c, m))
	for i := range c.HistoricalFinancials {
		if i >= models.MaxHistoricalYears {
			break
		}
		out = append(out, finite(Field(&c.HistoricalFinancials[i].Financials, m)))
	}
	return out
}

func collect(c *models.CompanyData, m Metric, years int) []float64 {
	if years <= 0 {
		years = 1
	}
	var values []float64
	for i, v := range History(c, m) {
		if i >= years {
			break
		}
		if v != nil {
			values = append(values, *v)
		}
	}
	return values
}

func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}
