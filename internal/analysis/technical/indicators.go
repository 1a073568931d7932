// Package technical derives short-horizon entry signals from closing prices.
// Indicators are computed with go-talib; every function returns nil when the
// series is too short for the requested period.
package technical

import (
	"github.com/markcheno/go-talib"
)

// Default indicator periods.
const (
	RSIPeriod       = 14
	BollingerPeriod = 20
	BollingerStdDev = 2.0
)

// Bands holds the latest Bollinger band values.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// RSI returns the latest Relative Strength Index (0-100) for the period.
func RSI(closes []float64, period int) *float64 {
	if period <= 0 {
		period = RSIPeriod
	}
	if len(closes) < period+1 {
		return nil
	}
	return last(talib.Rsi(closes, period))
}

// Bollinger returns the latest SMA-based Bollinger bands.
func Bollinger(closes []float64, period int, stdDev float64) *Bands {
	if period <= 0 {
		period = BollingerPeriod
	}
	if stdDev <= 0 {
		stdDev = BollingerStdDev
	}
	if len(closes) < period {
		return nil
	}

	upper, middle, lower := talib.BBands(closes, period, stdDev, stdDev, talib.SMA)
	u, m, l := last(upper), last(middle), last(lower)
	if u == nil || m == nil || l == nil {
		return nil
	}
	return &Bands{Upper: *u, Middle: *m, Lower: *l}
}

// BandPosition places price within the bands: 0 at the lower band, 1 at the
// upper band. Values outside [0,1] mean price broke out of the bands.
// Collapsed bands report 0.5.
func (b Bands) BandPosition(price float64) float64 {
	width := b.Upper - b.Lower
	if width <= 0 {
		return 0.5
	}
	return (price - b.Lower) / width
}

func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if v != v {
		return nil
	}
	return &v
}
