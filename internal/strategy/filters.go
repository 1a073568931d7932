package strategy

import (
	"strings"

	"github.com/seenimoa/openrank/pkg/models"
	"github.com/seenimoa/openrank/pkg/utils"
)

// Market-cap bounds for the company-size buckets.
const (
	smallCapCeiling = 2e9
	largeCapFloor   = 1e10
)

// ApplyUniverseFilters returns pointers to the companies that survive the
// universe-level filters: quality score threshold, company size, asset type,
// illiquid share classes, fractional tickers, explicit exclusions and the
// injected exclusion rule. Input order is preserved.
func ApplyUniverseFilters(companies []models.CompanyData, p models.StrategyParams) []*models.CompanyData {
	excludedTickers := make(map[string]bool, len(p.ExcludedTickers))
	for _, t := range p.ExcludedTickers {
		excludedTickers[utils.NormalizeTicker(t)] = true
	}

	out := make([]*models.CompanyData, 0, len(companies))
	for i := range companies {
		c := &companies[i]
		ticker := utils.NormalizeTicker(c.Ticker)
		switch {
		case ticker == "" || c.CurrentPrice <= 0:
		case p.MinOverallScore > 0 && c.Score() < p.MinOverallScore:
		case !MatchesSize(c, p.CompanySize):
		case !MatchesAssetType(ticker, p.AssetType):
		case utils.IsIlliquidClass(ticker), utils.IsFractional(ticker):
		case excludedTickers[ticker]:
		case sectorExcluded(c.Sector, p.ExcludedSectors):
		case p.Exclude != nil && p.Exclude(c):
		default:
			out = append(out, c)
		}
	}
	return out
}

// MatchesSize reports whether the company falls in the requested market-cap
// bucket. Companies without a market cap only match SizeAll.
func MatchesSize(c *models.CompanyData, size models.CompanySize) bool {
	if size == "" || size == models.SizeAll {
		return true
	}
	mc := c.MarketCap()
	if mc <= 0 {
		return false
	}
	switch size {
	case models.SizeSmall:
		return mc < smallCapCeiling
	case models.SizeMid:
		return mc >= smallCapCeiling && mc <= largeCapFloor
	case models.SizeLarge:
		return mc > largeCapFloor
	}
	return true
}

// MatchesAssetType filters local shares versus BDRs.
func MatchesAssetType(ticker string, asset models.AssetType) bool {
	switch asset {
	case models.AssetLocal:
		return !utils.IsBDR(ticker)
	case models.AssetBDR:
		return utils.IsBDR(ticker)
	}
	return true
}

func sectorExcluded(sector string, excluded []string) bool {
	if sector == "" {
		return false
	}
	s := strings.ToLower(sector)
	for _, e := range excluded {
		if e != "" && strings.Contains(s, strings.ToLower(e)) {
			return true
		}
	}
	return false
}
