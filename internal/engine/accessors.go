package engine

import (
	"algotrade/internal/market"
	"algotrade/internal/strategy"
	"algotrade/internal/types"
)

// Read-only views. Every value returned is a copy and safe to keep.

func (e *Engine) OrderIDs(ticker string) []string         { return e.panel.OrderIDs(ticker) }
func (e *Engine) OpenOrderIDs(ticker string) []string     { return e.panel.OpenOrderIDs(ticker) }
func (e *Engine) Orders(ticker string) []types.Order      { return e.panel.Orders(ticker) }
func (e *Engine) Order(id string) (types.Order, bool)     { return e.panel.Order(id) }
func (e *Engine) Account() (types.Account, bool)          { return e.panel.Account() }
func (e *Engine) Positions() []types.Position             { return e.panel.Positions() }
func (e *Engine) PositionTickers() []string               { return e.panel.PositionTickers() }

func (e *Engine) Position(ticker string, dir types.Direction) types.Position {
	return e.panel.Position(ticker, dir)
}

// TickDB returns the tick database of ticker, created empty on first access.
func (e *Engine) TickDB(ticker string) *market.TickDatabase {
	return e.hub.TickDB(ticker)
}

// LoadCandleChart returns the ticker's candle chart, creating it on first use.
func (e *Engine) LoadCandleChart(ticker string) (*market.Candlestick, error) {
	return e.hub.LoadCandleChart(ticker)
}

var _ strategy.Trader = (*Engine)(nil)
