package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{3_200_000_000, "3.2B"},
		{450_000_000, "450M"},
		{1_500_000_000_000, "1.5T"},
		{12_500, "12.5K"},
		{999, "999"},
		{-2_000_000_000, "-2B"},
		{0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatCompact(tt.amount))
		})
	}
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "+2.45%", FormatPct(2.45))
	assert.Equal(t, "-1.23%", FormatPct(-1.23))
	assert.Equal(t, "+0.00%", FormatPct(0))
}

func TestFormatRatio(t *testing.T) {
	assert.Equal(t, "15.3%", FormatRatio(0.153))
	assert.Equal(t, "6%", FormatRatio(0.06))
}

func TestFormatOptional(t *testing.T) {
	v := 0.12
	assert.Equal(t, "12%", FormatOptional(&v, FormatRatio))
	assert.Equal(t, "n/a", FormatOptional(nil, FormatRatio))
}
