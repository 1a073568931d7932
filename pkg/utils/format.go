package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCompact formats a large amount with a short-scale suffix.
// e.g., 3_200_000_000 → "3.2B", 450_000_000 → "450M"
func FormatCompact(amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	prefix := ""
	if negative {
		prefix = "-"
	}

	switch {
	case amount >= 1e12:
		return fmt.Sprintf("%s%sT", prefix, formatWithDecimals(amount/1e12))
	case amount >= 1e9:
		return fmt.Sprintf("%s%sB", prefix, formatWithDecimals(amount/1e9))
	case amount >= 1e6:
		return fmt.Sprintf("%s%sM", prefix, formatWithDecimals(amount/1e6))
	case amount >= 1e3:
		return fmt.Sprintf("%s%sK", prefix, formatWithDecimals(amount/1e3))
	default:
		return fmt.Sprintf("%s%s", prefix, formatWithDecimals(amount))
	}
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatRatio renders a decimal ratio as a percentage: 0.153 → "15.3%".
func FormatRatio(ratio float64) string {
	return formatWithDecimals(ratio*100) + "%"
}

// FormatOptional renders a nullable value, or "n/a" when missing.
func FormatOptional(v *float64, format func(float64) string) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "n/a"
	}
	return format(*v)
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
