package fundamental

import "strings"

var (
	financialKeywords = []string{"banco", "bank", "financ", "segur", "insur", "previd"}
	utilityKeywords   = []string{"energia", "elétric", "eletric", "utilit", "saneamento", "water", "electric"}
	techKeywords      = []string{"tecnolog", "technology", "software", "internet", "semicondutor", "semiconductor"}

	// Perennial sectors favoured for long-horizon dividend accumulation:
	// banks, energy, sanitation, insurance and telecom.
	perennialKeywords = []string{"banco", "bank", "energia", "elétric", "eletric", "electric",
		"saneamento", "water", "segur", "insur", "telecom", "telefon"}
)

// IsFinancialSector reports whether the sector is banking or insurance.
func IsFinancialSector(sector string) bool {
	return containsAny(sector, financialKeywords)
}

// IsUtilitySector reports whether the sector is a regulated utility.
func IsUtilitySector(sector string) bool {
	return containsAny(sector, utilityKeywords)
}

// IsTechSector reports whether the sector is technology.
func IsTechSector(sector string) bool {
	return containsAny(sector, techKeywords)
}

// IsPerennialSector reports whether the sector belongs to the perennial set.
func IsPerennialSector(sector string) bool {
	return containsAny(sector, perennialKeywords)
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	if s == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
