package strategy

import (
	"algotrade/internal/logger"
	"algotrade/internal/market"
	"algotrade/internal/types"
)

// Crossover goes long when the fast SMA of closed bars crosses above the slow one and
// flattens on the opposite cross. It keeps at most one working order.
type Crossover struct {
	Base

	trader  Trader
	ticker  string
	fast    int
	slow    int
	volume  int
	chart   *market.Candlestick
	pending string
	prevUp  *bool
}

func NewCrossover(trader Trader, ticker string, fast, slow, volume int) *Crossover {
	if fast <= 1 {
		fast = 5
	}
	if slow <= fast {
		slow = fast * 4
	}
	if volume <= 0 {
		volume = 1
	}
	return &Crossover{trader: trader, ticker: ticker, fast: fast, slow: slow, volume: volume}
}

func (c *Crossover) Name() string { return "crossover:" + c.ticker }

func (c *Crossover) OnTick(t types.Tick) {
	if t.Ticker != c.ticker || c.pending != "" {
		return
	}
	if c.chart == nil {
		chart, err := c.trader.LoadCandleChart(c.ticker)
		if err != nil {
			logger.Warnf("%s: load chart failed: %v", c.Name(), err)
			return
		}
		c.chart = chart
	}
	fast, err := c.chart.SMA(c.fast)
	if err != nil {
		return
	}
	slow, err := c.chart.SMA(c.slow)
	if err != nil {
		return
	}
	f, _ := market.Latest(fast)
	s, _ := market.Latest(slow)
	up := f > s
	if c.prevUp == nil || *c.prevUp == up {
		c.prevUp = &up
		return
	}
	c.prevUp = &up

	held := c.trader.Position(c.ticker, types.DirectionBuy).Volume
	var id string
	switch {
	case up && held == 0:
		id, err = c.trader.BuyOpen(c.ticker, c.volume, types.OrderTypeMarket, 0)
	case !up && held > 0:
		id, err = c.trader.SellClose(c.ticker, held, types.OrderTypeMarket, 0)
	default:
		return
	}
	if err != nil {
		logger.Warnf("%s: order refused: %v", c.Name(), err)
		return
	}
	c.pending = id
}

func (c *Crossover) OnOrder(o types.Order) {
	if o.ID == c.pending && o.Status.IsTerminal() {
		c.pending = ""
	}
}
