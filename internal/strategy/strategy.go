// Package strategy defines what the engine expects from a trading strategy.
package strategy

import (
	"algotrade/internal/market"
	"algotrade/internal/types"
)

// Strategy receives engine notifications on the dispatcher goroutine. Every argument
// is a copy. Implementations are mounted by reference and compared with ==, so they
// should be pointer types.
type Strategy interface {
	OnTick(t types.Tick)
	OnOrder(o types.Order)
	OnTrade(t types.Trade)
	OnPosition(p types.Position)
	OnAccount(a types.Account)
}

// Named strategies are logged by name instead of by type.
type Named interface {
	Name() string
}

// Base implements every callback as a no-op. Embed it and override what you need.
type Base struct{}

func (Base) OnTick(types.Tick)         {}
func (Base) OnOrder(types.Order)       {}
func (Base) OnTrade(types.Trade)       {}
func (Base) OnPosition(types.Position) {}
func (Base) OnAccount(types.Account)   {}

// Trader is the command surface a strategy may use, typically from inside its callbacks.
type Trader interface {
	BuyOpen(ticker string, volume int, typ types.OrderType, price float64) (string, error)
	SellOpen(ticker string, volume int, typ types.OrderType, price float64) (string, error)
	BuyClose(ticker string, volume int, typ types.OrderType, price float64) (string, error)
	SellClose(ticker string, volume int, typ types.OrderType, price float64) (string, error)
	CancelOrder(orderID string) error
	CancelAll(ticker string) int
	Position(ticker string, dir types.Direction) types.Position
	LoadCandleChart(ticker string) (*market.Candlestick, error)
}
