package fundamental

import (
	"math"
)

// Graham multiplier: P/E 15 × P/BV 1.5.
const grahamMultiplier = 22.5

// GrahamNumber computes the classic Benjamin Graham intrinsic value.
// Graham Number = sqrt(22.5 × EPS × Book Value per Share)
func GrahamNumber(eps, bookValue float64) float64 {
	if eps <= 0 || bookValue <= 0 {
		return 0
	}
	return math.Sqrt(grahamMultiplier * eps * bookValue)
}

// CashFlowProjection holds the inputs of a discounted cash flow valuation.
type CashFlowProjection struct {
	BaseCashFlow      float64 // year-0 free cash flow
	InitialGrowth     float64 // growth applied in year 1
	TerminalGrowth    float64 // perpetuity growth, reached in the final year
	DiscountRate      float64
	Years             int
	SharesOutstanding float64
}

// ProjectionResult breaks down a discounted cash flow valuation.
type ProjectionResult struct {
	CashFlows            []float64 `json:"cash_flows"`
	Growth               []float64 `json:"growth"`
	PresentValueFlows    float64   `json:"pv_flows"`
	TerminalValue        float64   `json:"terminal_value"`
	PresentValueTerminal float64   `json:"pv_terminal"`
	EnterpriseValue      float64   `json:"enterprise_value"`
	FairValue            float64   `json:"fair_value"` // per share
}

// YearGrowth returns the growth for year t (1-based) on a straight path that
// starts at the initial rate and converges to the terminal rate in the last year.
func (p CashFlowProjection) YearGrowth(t int) float64 {
	return p.InitialGrowth + (p.TerminalGrowth-p.InitialGrowth)*float64(t)/float64(p.Years)
}

// ProjectCashFlows discounts Years of growing cash flow plus a Gordon terminal
// value. Fair value per share is enterprise value / shares outstanding; no
// debt is subtracted because the cash flow base already sits after financing.
// ok is false when the base, share count or horizon is not positive, or when
// the discount rate does not exceed terminal growth.
func ProjectCashFlows(p CashFlowProjection) (ProjectionResult, bool) {
	if p.BaseCashFlow <= 0 || p.SharesOutstanding <= 0 || p.Years <= 0 {
		return ProjectionResult{}, false
	}
	if p.DiscountRate <= p.TerminalGrowth || p.DiscountRate <= -1 {
		return ProjectionResult{}, false
	}

	res := ProjectionResult{
		CashFlows: make([]float64, 0, p.Years),
		Growth:    make([]float64, 0, p.Years),
	}

	fcf := p.BaseCashFlow
	for t := 1; t <= p.Years; t++ {
		g := p.YearGrowth(t)
		fcf *= 1 + g
		res.Growth = append(res.Growth, g)
		res.CashFlows = append(res.CashFlows, fcf)
		res.PresentValueFlows += fcf / math.Pow(1+p.DiscountRate, float64(t))
	}

	res.TerminalValue = fcf * (1 + p.TerminalGrowth) / (p.DiscountRate - p.TerminalGrowth)
	res.PresentValueTerminal = res.TerminalValue / math.Pow(1+p.DiscountRate, float64(p.Years))
	res.EnterpriseValue = res.PresentValueFlows + res.PresentValueTerminal
	res.FairValue = res.EnterpriseValue / p.SharesOutstanding

	if res.FairValue <= 0 || math.IsNaN(res.FairValue) || math.IsInf(res.FairValue, 0) {
		return ProjectionResult{}, false
	}
	return res, true
}

// GordonValue prices a share from the current dividend with the Gordon growth
// model: D1 / (r - g) where D1 = D0 × (1 + g). ok is false unless r > g.
func GordonValue(d0, discountRate, growth float64) (float64, bool) {
	if d0 <= 0 || discountRate <= growth {
		return 0, false
	}
	d1 := d0 * (1 + growth)
	return d1 / (discountRate - growth), true
}

// Upside returns (fairValue / price - 1) × 100, or nil when either side is
// not positive.
func Upside(fairValue, price float64) *float64 {
	if fairValue <= 0 || price <= 0 {
		return nil
	}
	return ptr((fairValue/price - 1) * 100)
}
