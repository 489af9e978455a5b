package market

import (
	"fmt"

	"github.com/markcheno/go-talib"
)

// SMA of closes over period bars. Returns an error until enough bars exist.
func (c *Candlestick) SMA(period int) ([]float64, error) {
	closes, err := c.closesFor(period)
	if err != nil {
		return nil, err
	}
	return talib.Sma(closes, period), nil
}

func (c *Candlestick) EMA(period int) ([]float64, error) {
	closes, err := c.closesFor(period)
	if err != nil {
		return nil, err
	}
	return talib.Ema(closes, period), nil
}

func (c *Candlestick) RSI(period int) ([]float64, error) {
	closes, err := c.closesFor(period + 1)
	if err != nil {
		return nil, err
	}
	return talib.Rsi(closes, period), nil
}

func (c *Candlestick) closesFor(need int) ([]float64, error) {
	if need <= 1 {
		return nil, fmt.Errorf("indicator period must be > 1")
	}
	closes := c.Closes()
	if len(closes) < need {
		return nil, fmt.Errorf("%s: need %d bars, have %d", c.ticker, need, len(closes))
	}
	return closes, nil
}

// Latest returns the final value of an indicator series.
func Latest(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}
