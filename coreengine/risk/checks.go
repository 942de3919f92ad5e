package risk

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Check names.
const (
	CheckPositionSizeName   = "position_size"
	CheckSectorExposureName = "sector_exposure"
)

// CheckResult is the outcome of one pre-trade check.
// Reason is empty when the check passes.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

var usd = message.NewPrinter(language.English)

// FormatUSD renders an amount as $1,234.56.
func FormatUSD(amount float64) string {
	return usd.Sprintf("$%.2f", amount)
}

// FormatPercent renders a fraction as 12.34%.
func FormatPercent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

// CheckPositionSize rejects trades whose notional exceeds the position limit.
func CheckPositionSize(src Source, notional float64) CheckResult {
	limit := src.Limits().MaxPositionSizeUSD
	if notional > limit {
		return CheckResult{
			Name:   CheckPositionSizeName,
			Reason: fmt.Sprintf("Trade value %s exceeds max position limit of %s.", FormatUSD(notional), FormatUSD(limit)),
		}
	}
	return CheckResult{Name: CheckPositionSizeName, Pass: true}
}

// ProjectedSectorExposure returns the ticker's sector and that sector's share
// of the portfolio once notional is added to both the sector and the total.
func ProjectedSectorExposure(src Source, ticker string, notional float64) (string, float64) {
	sector := src.SectorOf(ticker)
	total := src.TotalValue()
	current := src.SectorExposure(sector) * total
	denominator := total + notional
	if denominator <= 0 {
		return sector, 0
	}
	return sector, (current + notional) / denominator
}

// CheckSectorExposure rejects trades that push the ticker's sector past the exposure limit.
func CheckSectorExposure(src Source, ticker string, notional float64) CheckResult {
	sector, exposure := ProjectedSectorExposure(src, ticker, notional)
	limit := src.Limits().MaxSectorExposure
	if exposure > limit {
		return CheckResult{
			Name: CheckSectorExposureName,
			Reason: fmt.Sprintf("Proposed trade increases %s exposure to %s which exceeds the limit of %s",
				sector, FormatPercent(exposure), FormatPercent(limit)),
		}
	}
	return CheckResult{Name: CheckSectorExposureName, Pass: true}
}

// Assess runs every pre-trade check in order.
func Assess(src Source, ticker string, notional float64) []CheckResult {
	return []CheckResult{
		CheckPositionSize(src, notional),
		CheckSectorExposure(src, ticker, notional),
	}
}

// Violations returns the reasons of the failed checks, in order.
func Violations(results []CheckResult) []string {
	var out []string
	for _, r := range results {
		if !r.Pass {
			out = append(out, r.Reason)
		}
	}
	return out
}

// JoinViolations formats violations the way the rejection event reports them.
func JoinViolations(violations []string) string {
	return strings.Join(violations, "; ")
}

// Quantity returns the whole number of shares notional buys at price.
func Quantity(notional, price float64) int {
	if price <= 0 {
		return 0
	}
	return int(notional / price)
}
