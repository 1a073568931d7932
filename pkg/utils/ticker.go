// Package utils provides ticker and number helpers shared across openrank.
package utils

import (
	"strconv"
	"strings"
)

// BDR suffixes: depositary receipts of foreign companies listed locally.
var bdrSuffixes = map[int]bool{32: true, 33: true, 34: true, 35: true, 39: true}

// Share classes with thin liquidity (PNA, PNB, ...).
var illiquidSuffixes = map[int]bool{5: true, 6: true, 7: true, 8: true}

// NormalizeTicker upper-cases and trims a ticker, dropping a leading '$'.
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	return strings.TrimPrefix(t, "$")
}

// IsFractional reports whether the ticker belongs to the odd-lot market
// (trailing "F" after the class number, e.g. PETR4F).
func IsFractional(ticker string) bool {
	t := NormalizeTicker(ticker)
	if len(t) < 3 || !strings.HasSuffix(t, "F") {
		return false
	}
	prev := t[len(t)-2]
	return prev >= '0' && prev <= '9'
}

// SplitTicker returns the alphabetic root and the numeric class suffix.
// The fractional "F" marker is ignored. suffix is -1 when there is none.
//
//	SplitTicker("PETR4")  → "PETR", 4
//	SplitTicker("AAPL34") → "AAPL", 34
func SplitTicker(ticker string) (root string, suffix int) {
	t := NormalizeTicker(ticker)
	if IsFractional(t) {
		t = t[:len(t)-1]
	}
	i := len(t)
	for i > 0 && t[i-1] >= '0' && t[i-1] <= '9' {
		i--
	}
	if i == len(t) || i == 0 {
		return t, -1
	}
	n, err := strconv.Atoi(t[i:])
	if err != nil {
		return t, -1
	}
	return t[:i], n
}

// TickerRoot identifies the underlying company: PETR3 and PETR4 share "PETR".
func TickerRoot(ticker string) string {
	root, _ := SplitTicker(ticker)
	return root
}

// IsBDR reports whether the ticker is a depositary receipt (AAPL34, MSFT34).
func IsBDR(ticker string) bool {
	_, suffix := SplitTicker(ticker)
	return bdrSuffixes[suffix]
}

// IsIlliquidClass reports whether the ticker is a thinly traded share class.
func IsIlliquidClass(ticker string) bool {
	_, suffix := SplitTicker(ticker)
	return illiquidSuffixes[suffix]
}
