package livehttp

import (
	"context"

	"algotrade/internal/bus"
	"algotrade/internal/market"
	"algotrade/internal/types"
)

// Engine 是 HTTP 层可见的引擎能力：只读查询加撤单。
type Engine interface {
	IsLoggedIn() bool
	IsPositionSynced() bool
	Stats() bus.Stats

	Order(id string) (types.Order, bool)
	Orders(ticker string) []types.Order
	Positions() []types.Position
	Account() (types.Account, bool)
	TickDB(ticker string) *market.TickDatabase
	LoadCandleChart(ticker string) (*market.Candlestick, error)

	CancelOrder(orderID string) error
	CancelAll(ticker string) int
}

// History 提供已落库的订单/成交查询，可为空。
type History interface {
	RecentOrders(ctx context.Context, ticker string, limit int) ([]types.Order, error)
	RecentTrades(ctx context.Context, ticker string, limit int) ([]types.Trade, error)
}

type positionView struct {
	types.Position
	Avg string `json:"avg_price"`
}

type candleView struct {
	Ticker  string          `json:"ticker"`
	Period  string          `json:"period"`
	Candles []market.Candle `json:"candles"`
	SMA     *float64        `json:"sma,omitempty"`
	RSI     *float64        `json:"rsi,omitempty"`
}
