package fundamental

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/openrank/pkg/models"
)

// negligibleLeverage is the net debt / equity level treated as debt-free.
const negligibleLeverage = 0.1

// EPS returns earnings per share: reported LPA, else price / P/L, else net
// income / shares outstanding.
func EPS(c *models.CompanyData) *float64 {
	if v := Current(c, MetricEPS); v != nil {
		return v
	}
	if pl := Current(c, MetricPL); pl != nil && *pl > 0 && c.CurrentPrice > 0 {
		return ptr(c.CurrentPrice / *pl)
	}
	ni, shares := Current(c, MetricNetIncome), Current(c, MetricSharesOutstanding)
	if ni != nil && shares != nil && *shares > 0 {
		return ptr(*ni / *shares)
	}
	return nil
}

// BVPS returns book value per share: reported VPA, else price / P/VP.
func BVPS(c *models.CompanyData) *float64 {
	if v := Current(c, MetricBVPS); v != nil {
		return v
	}
	if pvp := Current(c, MetricPVP); pvp != nil && *pvp > 0 && c.CurrentPrice > 0 {
		return ptr(c.CurrentPrice / *pvp)
	}
	return nil
}

// EarningsYield returns the reported earnings yield, else 1 / P/L.
func EarningsYield(c *models.CompanyData) *float64 {
	if v := Current(c, MetricEarningsYield); v != nil {
		return v
	}
	if pl := Current(c, MetricPL); pl != nil && *pl > 0 {
		return ptr(1 / *pl)
	}
	return nil
}

// DividendPerShare returns the reported DPS, else dividend yield × price.
func DividendPerShare(c *models.CompanyData) *float64 {
	if v := Current(c, MetricDividendPerShare); v != nil && *v > 0 {
		return v
	}
	if dy := Current(c, MetricDY); dy != nil && *dy > 0 && c.CurrentPrice > 0 {
		return ptr(*dy * c.CurrentPrice)
	}
	return nil
}

// NetMargin returns the (optionally averaged) net margin, falling back to
// net income / revenue.
func NetMargin(c *models.CompanyData, useAverages bool) *float64 {
	if v := Value(c, MetricNetMargin, useAverages); v != nil {
		return v
	}
	ni, rev := Current(c, MetricNetIncome), Current(c, MetricRevenue)
	if ni != nil && rev != nil && *rev > 0 {
		return ptr(*ni / *rev)
	}
	return nil
}

// IsDebtFree reports whether net debt is negligible relative to equity.
func IsDebtFree(c *models.CompanyData) bool {
	v := Current(c, MetricNetDebtToEquity)
	return v != nil && *v <= negligibleLeverage
}

// CAGR computes the compound annual growth rate between two positive values.
func CAGR(start, end float64, years int) *float64 {
	if start <= 0 || end <= 0 || years <= 0 {
		return nil
	}
	return ptr(math.Pow(end/start, 1/float64(years)) - 1)
}

// EarningsCAGR computes the growth of net income (or EPS when net income is
// unavailable) from the snapshot `years` back to the current period.
func EarningsCAGR(c *models.CompanyData, years int) *float64 {
	for _, m := range []Metric{MetricNetIncome, MetricEPS} {
		h := History(c, m)
		if len(h) <= years || h[0] == nil || h[years] == nil {
			continue
		}
		if g := CAGR(*h[years], *h[0], years); g != nil {
			return g
		}
	}
	return nil
}

// ConsecutiveDividendYears counts the unbroken run of dividend-paying years
// starting at the current period.
func ConsecutiveDividendYears(c *models.CompanyData) int {
	dps := History(c, MetricDividendPerShare)
	dy := History(c, MetricDY)
	n := 0
	for i := range dps {
		paid := (dps[i] != nil && *dps[i] > 0) || (dy[i] != nil && *dy[i] > 0)
		if !paid {
			break
		}
		n++
	}
	return n
}

// HasDividendHistory reports whether any historical snapshot carries
// dividend information.
func HasDividendHistory(c *models.CompanyData) bool {
	for i := range c.HistoricalFinancials {
		f := &c.HistoricalFinancials[i].Financials
		if f.DividendPerShare != nil || f.DY != nil {
			return true
		}
	}
	return false
}

// AverageDividendPerShare averages DPS across current and historical
// periods, using dy × current price for the current period when DPS is
// not reported.
func AverageDividendPerShare(c *models.CompanyData, years int) *float64 {
	var values []float64
	if d := DividendPerShare(c); d != nil {
		values = append(values, *d)
	}
	for i, v := range History(c, MetricDividendPerShare) {
		if i == 0 {
			continue
		}
		if i >= years {
			break
		}
		if v != nil && *v > 0 {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return ptr(stat.Mean(values, nil))
}

func ptr(v float64) *float64 {
	return &v
}
