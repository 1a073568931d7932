package fundamental

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/openrank/pkg/models"
)

func f(v float64) *float64 { return models.Float(v) }

func sampleCompany() *models.CompanyData {
	return &models.CompanyData{
		Ticker:       "TAEE11",
		Name:         "Taesa",
		Sector:       "Energia Elétrica",
		CurrentPrice: 35,
		Financials: models.Financials{
			DY:                f(0.09),
			ROE:               f(0.20),
			PL:                f(8),
			PVP:               f(1.6),
			NetDebtToEquity:   f(0.9),
			NetIncome:         f(1.5e9),
			Revenue:           f(3.0e9),
			SharesOutstanding: f(3.4e8),
		},
		HistoricalFinancials: []models.HistoricalSnapshot{
			{Year: 2023, Financials: models.Financials{ROE: f(0.18), DY: f(0.08), DividendPerShare: f(3.0), NetIncome: f(1.3e9)}},
			{Year: 2022, Financials: models.Financials{ROE: f(0.16), DY: f(0.10), DividendPerShare: f(3.2), NetIncome: f(1.2e9)}},
			{Year: 2021, Financials: models.Financials{ROE: nil, DY: f(0.07), DividendPerShare: f(2.5), NetIncome: f(1.1e9)}},
			{Year: 2020, Financials: models.Financials{DividendPerShare: f(2.2), NetIncome: f(1.0e9)}},
			{Year: 2019, Financials: models.Financials{NetIncome: f(0.9e9)}},
		},
	}
}

// ════════════════════════════════════════════════════════════════════
// metrics.go
// ════════════════════════════════════════════════════════════════════

func TestCurrent_ReturnsCopy(t *testing.T) {
	c := sampleCompany()
	v := Current(c, MetricROE)
	require.NotNil(t, v)
	*v = 99
	assert.Equal(t, 0.20, *c.Financials.ROE, "Current must not alias the snapshot")
}

func TestCurrent_NonFinite(t *testing.T) {
	c := &models.CompanyData{Financials: models.Financials{ROE: f(math.NaN()), PL: f(math.Inf(1))}}
	assert.Nil(t, Current(c, MetricROE))
	assert.Nil(t, Current(c, MetricPL))
	assert.Nil(t, Current(c, MetricDY))
}

func TestAverage_SkipsMissingYears(t *testing.T) {
	c := sampleCompany()
	avg := Average(c, MetricROE, 7)
	require.NotNil(t, avg)
	assert.InDelta(t, (0.20+0.18+0.16)/3, *avg, 1e-12)
}

func TestAverage_Window(t *testing.T) {
	c := sampleCompany()
	avg := Average(c, MetricROE, 2)
	require.NotNil(t, avg)
	assert.InDelta(t, (0.20+0.18)/2, *avg, 1e-12)
}

func TestValue_AveragesOnlyAverageableMetrics(t *testing.T) {
	c := sampleCompany()
	c.HistoricalFinancials[0].Financials.PL = f(20)

	roe := Value(c, MetricROE, true)
	require.NotNil(t, roe)
	assert.InDelta(t, 0.18, *roe, 1e-12)

	pl := Value(c, MetricPL, true)
	require.NotNil(t, pl)
	assert.Equal(t, 8.0, *pl, "price multiples use the current period")

	cur := Value(c, MetricROE, false)
	require.NotNil(t, cur)
	assert.Equal(t, 0.20, *cur)
}

func TestHistory_Order(t *testing.T) {
	c := sampleCompany()
	h := History(c, MetricDividendPerShare)
	require.Len(t, h, 6)
	assert.Nil(t, h[0])
	assert.Equal(t, 3.0, *h[1])
	assert.Equal(t, 2.2, *h[4])
	assert.Nil(t, h[5])
}

// ════════════════════════════════════════════════════════════════════
// ratios.go
// ════════════════════════════════════════════════════════════════════

func TestEPS_Fallbacks(t *testing.T) {
	c := sampleCompany()
	eps := EPS(c)
	require.NotNil(t, eps)
	assert.InDelta(t, 35.0/8, *eps, 1e-12)

	c.Financials.EPS = f(4.2)
	assert.Equal(t, 4.2, *EPS(c))

	c.Financials.EPS = nil
	c.Financials.PL = nil
	eps = EPS(c)
	require.NotNil(t, eps)
	assert.InDelta(t, 1.5e9/3.4e8, *eps, 1e-9)
}

func TestBVPS_FromPVP(t *testing.T) {
	c := sampleCompany()
	bv := BVPS(c)
	require.NotNil(t, bv)
	assert.InDelta(t, 35/1.6, *bv, 1e-12)
}

func TestEarningsYield_FromPL(t *testing.T) {
	c := sampleCompany()
	ey := EarningsYield(c)
	require.NotNil(t, ey)
	assert.InDelta(t, 0.125, *ey, 1e-12)
}

func TestDividendPerShare_FromYield(t *testing.T) {
	c := sampleCompany()
	dps := DividendPerShare(c)
	require.NotNil(t, dps)
	assert.InDelta(t, 0.09*35, *dps, 1e-12)
}

func TestNetMargin_Fallback(t *testing.T) {
	c := sampleCompany()
	m := NetMargin(c, false)
	require.NotNil(t, m)
	assert.InDelta(t, 0.5, *m, 1e-12)
}

func TestIsDebtFree(t *testing.T) {
	c := sampleCompany()
	assert.False(t, IsDebtFree(c))
	c.Financials.NetDebtToEquity = f(-0.2)
	assert.True(t, IsDebtFree(c))
	c.Financials.NetDebtToEquity = nil
	assert.False(t, IsDebtFree(c))
}

func TestCAGR(t *testing.T) {
	g := CAGR(100, 200, 5)
	require.NotNil(t, g)
	assert.InDelta(t, math.Pow(2, 0.2)-1, *g, 1e-12)

	assert.Nil(t, CAGR(0, 200, 5))
	assert.Nil(t, CAGR(100, -5, 5))
	assert.Nil(t, CAGR(100, 200, 0))
}

func TestEarningsCAGR_FiveYears(t *testing.T) {
	c := sampleCompany()
	g := EarningsCAGR(c, 5)
	require.NotNil(t, g)
	assert.InDelta(t, math.Pow(1.5/0.9, 0.2)-1, *g, 1e-12)

	assert.Nil(t, EarningsCAGR(c, 6))
}

func TestConsecutiveDividendYears(t *testing.T) {
	c := sampleCompany()
	assert.Equal(t, 5, ConsecutiveDividendYears(c))
	assert.True(t, HasDividendHistory(c))

	c.HistoricalFinancials[1].Financials = models.Financials{}
	assert.Equal(t, 2, ConsecutiveDividendYears(c))
}

func TestAverageDividendPerShare(t *testing.T) {
	c := sampleCompany()
	avg := AverageDividendPerShare(c, 5)
	require.NotNil(t, avg)
	assert.InDelta(t, (0.09*35+3.0+3.2+2.5+2.2)/5, *avg, 1e-12)
}

// ════════════════════════════════════════════════════════════════════
// valuation.go
// ════════════════════════════════════════════════════════════════════

func TestGrahamNumber(t *testing.T) {
	assert.InDelta(t, math.Sqrt(22.5*4*20), GrahamNumber(4, 20), 1e-12)
	assert.Equal(t, 0.0, GrahamNumber(-1, 20))
	assert.Equal(t, 0.0, GrahamNumber(4, 0))
}

func TestProjectCashFlows_ConvergingGrowth(t *testing.T) {
	p := CashFlowProjection{
		BaseCashFlow:      0.6e9,
		InitialGrowth:     0.05,
		TerminalGrowth:    0.025,
		DiscountRate:      0.10,
		Years:             5,
		SharesOutstanding: 2e8,
	}
	res, ok := ProjectCashFlows(p)
	require.True(t, ok)
	require.Len(t, res.Growth, 5)
	assert.InDelta(t, 0.045, res.Growth[0], 1e-12)
	assert.InDelta(t, 0.025, res.Growth[4], 1e-12)
	for i := 1; i < len(res.Growth); i++ {
		assert.Less(t, res.Growth[i], res.Growth[i-1])
	}
	assert.Greater(t, res.FairValue, 0.0)
	assert.InDelta(t, res.EnterpriseValue/2e8, res.FairValue, 1e-9)
}

func TestProjectCashFlows_Rejects(t *testing.T) {
	base := CashFlowProjection{BaseCashFlow: 1e9, InitialGrowth: 0.05, TerminalGrowth: 0.03, DiscountRate: 0.10, Years: 5, SharesOutstanding: 1e8}

	neg := base
	neg.BaseCashFlow = -1
	_, ok := ProjectCashFlows(neg)
	assert.False(t, ok)

	noShares := base
	noShares.SharesOutstanding = 0
	_, ok = ProjectCashFlows(noShares)
	assert.False(t, ok)

	rg := base
	rg.DiscountRate = 0.03
	_, ok = ProjectCashFlows(rg)
	assert.False(t, ok)
}

func TestGordonValue(t *testing.T) {
	v, ok := GordonValue(2, 0.12, 0.05)
	require.True(t, ok)
	assert.InDelta(t, 2*1.05/0.07, v, 1e-12)

	_, ok = GordonValue(2, 0.05, 0.05)
	assert.False(t, ok)
	_, ok = GordonValue(0, 0.12, 0.05)
	assert.False(t, ok)
}

func TestUpside(t *testing.T) {
	u := Upside(15, 10)
	require.NotNil(t, u)
	assert.InDelta(t, 50.0, *u, 1e-12)
	assert.Nil(t, Upside(15, 0))
	assert.Nil(t, Upside(0, 10))
}

// ════════════════════════════════════════════════════════════════════
// sector.go
// ════════════════════════════════════════════════════════════════════

func TestSectorClassification(t *testing.T) {
	assert.True(t, IsFinancialSector("Bancos"))
	assert.True(t, IsFinancialSector("Seguradoras"))
	assert.False(t, IsFinancialSector("Mineração"))

	assert.True(t, IsUtilitySector("Energia Elétrica"))
	assert.True(t, IsUtilitySector("Saneamento"))
	assert.False(t, IsUtilitySector("Petróleo, Gás e Biocombustíveis"))

	assert.True(t, IsTechSector("Tecnologia da Informação"))
	assert.True(t, IsTechSector("Software"))

	assert.True(t, IsPerennialSector("Telecomunicações"))
	assert.True(t, IsPerennialSector("Bancos"))
	assert.False(t, IsPerennialSector("Varejo"))
	assert.False(t, IsPerennialSector(""))
}
