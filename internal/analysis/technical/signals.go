package technical

import "fmt"

// Condition is the short-horizon state of a price series.
type Condition int

const (
	Oversold Condition = iota
	Neutral
	Overbought
)

func (c Condition) String() string {
	switch c {
	case Oversold:
		return "oversold"
	case Overbought:
		return "overbought"
	default:
		return "neutral"
	}
}

// RSI thresholds.
const (
	OversoldRSI   = 30.0
	OverboughtRSI = 70.0
)

// Snapshot is the indicator state behind a Condition.
type Snapshot struct {
	Condition Condition `json:"condition"`
	RSI       *float64  `json:"rsi,omitempty"`
	Bands     *Bands    `json:"bands,omitempty"`
	Close     float64   `json:"close"`
}

func (s Snapshot) String() string {
	rsi := "n/a"
	if s.RSI != nil {
		rsi = fmt.Sprintf("%.1f", *s.RSI)
	}
	return fmt.Sprintf("%s (RSI %s)", s.Condition, rsi)
}

// Analyze classifies the latest close. A series too short for either
// indicator is Neutral.
func Analyze(closes []float64) Snapshot {
	if len(closes) == 0 {
		return Snapshot{Condition: Neutral}
	}
	s := Snapshot{
		Condition: Neutral,
		RSI:       RSI(closes, RSIPeriod),
		Bands:     Bollinger(closes, BollingerPeriod, BollingerStdDev),
		Close:     closes[len(closes)-1],
	}

	oversold, overbought := false, false
	if s.RSI != nil {
		oversold = *s.RSI <= OversoldRSI
		overbought = *s.RSI >= OverboughtRSI
	}
	if s.Bands != nil && s.Bands.Upper > s.Bands.Lower {
		pos := s.Bands.BandPosition(s.Close)
		oversold = oversold || pos <= 0
		overbought = overbought || pos >= 1
	}

	switch {
	case oversold && !overbought:
		s.Condition = Oversold
	case overbought && !oversold:
		s.Condition = Overbought
	}
	return s
}

// Classify is a shorthand for Analyze(closes).Condition.
func Classify(closes []float64) Condition {
	return Analyze(closes).Condition
}
