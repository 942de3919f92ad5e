// Package risk provides the read-only portfolio source and the pre-trade
// limit checks the risk gate runs against it.
package risk

import (
	"maps"
	"strings"
)

// DefaultSector is the sector assigned to tickers with no explicit mapping.
const DefaultSector = "OTHER"

// Limits are the pre-trade risk limits.
type Limits struct {
	// MaxPositionSizeUSD caps the notional value of a single trade.
	MaxPositionSizeUSD float64 `json:"max_position_size_usd"`
	// MaxSectorExposure caps a sector's share of the portfolio after the trade, as a fraction.
	MaxSectorExposure float64 `json:"max_sector_exposure"`
}

// Source is the portfolio and limits view the risk gate reads.
// Implementations must be safe for concurrent reads.
type Source interface {
	CurrentPrice(ticker string) float64
	SectorOf(ticker string) string
	Position(ticker string) int
	TotalValue() float64
	// SectorExposure returns the sector's current share of TotalValue as a fraction.
	SectorExposure(sector string) float64
	Limits() Limits
}

// PortfolioState is the static snapshot a StaticPortfolio serves.
type PortfolioState struct {
	TotalValueUSD  float64            `json:"total_value_usd"`
	CashUSD        float64            `json:"cash_usd"`
	DefaultPrice   float64            `json:"default_price"`
	Prices         map[string]float64 `json:"prices"`
	Sectors        map[string]string  `json:"sectors"`
	SectorExposure map[string]float64 `json:"sector_exposure"`
	Positions      map[string]int     `json:"positions"`
}

// DefaultPortfolioState returns the reference portfolio used by the simulated deployment.
func DefaultPortfolioState() PortfolioState {
	return PortfolioState{
		TotalValueUSD: 1_000_000,
		CashUSD:       500_000,
		DefaultPrice:  200,
		Prices: map[string]float64{
			"MSFT":  350,
			"GOOGL": 175,
			"NVDA":  900,
		},
		Sectors: map[string]string{
			"MSFT":  "TECHNOLOGY",
			"GOOGL": "TECHNOLOGY",
			"NVDA":  "TECHNOLOGY",
		},
		SectorExposure: map[string]float64{
			"TECHNOLOGY": 0.45,
			"FINANCIALS": 0.30,
			"OTHER":      0.25,
		},
		Positions: map[string]int{
			"GOOGL": 100,
			"JPM":   200,
		},
	}
}

// DefaultLimits returns the reference risk limits.
func DefaultLimits() Limits {
	return Limits{MaxPositionSizeUSD: 100_000, MaxSectorExposure: 0.60}
}

// StaticPortfolio is an immutable Source built from a PortfolioState.
type StaticPortfolio struct {
	state  PortfolioState
	limits Limits
}

// NewStaticPortfolio copies state so later changes by the caller are not observed.
// Ticker and sector keys are matched case-insensitively.
func NewStaticPortfolio(state PortfolioState, limits Limits) *StaticPortfolio {
	cp := state
	cp.Prices = upperKeys(state.Prices)
	cp.Sectors = upperKeys(state.Sectors)
	cp.SectorExposure = upperKeys(state.SectorExposure)
	cp.Positions = upperKeys(state.Positions)
	return &StaticPortfolio{state: cp, limits: limits}
}

func upperKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// CurrentPrice returns the configured price or the default price.
func (p *StaticPortfolio) CurrentPrice(ticker string) float64 {
	if price, ok := p.state.Prices[strings.ToUpper(ticker)]; ok {
		return price
	}
	return p.state.DefaultPrice
}

// SectorOf returns the ticker's sector, or DefaultSector.
func (p *StaticPortfolio) SectorOf(ticker string) string {
	if sector, ok := p.state.Sectors[strings.ToUpper(ticker)]; ok {
		return sector
	}
	return DefaultSector
}

func (p *StaticPortfolio) Position(ticker string) int {
	return p.state.Positions[strings.ToUpper(ticker)]
}

func (p *StaticPortfolio) TotalValue() float64 { return p.state.TotalValueUSD }

func (p *StaticPortfolio) SectorExposure(sector string) float64 {
	return p.state.SectorExposure[strings.ToUpper(sector)]
}

func (p *StaticPortfolio) Limits() Limits { return p.limits }

// State returns a copy of the served snapshot.
func (p *StaticPortfolio) State() PortfolioState {
	cp := p.state
	cp.Prices = maps.Clone(p.state.Prices)
	cp.Sectors = maps.Clone(p.state.Sectors)
	cp.SectorExposure = maps.Clone(p.state.SectorExposure)
	cp.Positions = maps.Clone(p.state.Positions)
	return cp
}

var _ Source = (*StaticPortfolio)(nil)
