package market

import (
	"errors"
	"sync"
	"time"

	"algotrade/internal/types"
)

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Candlestick aggregates ticks of one ticker into fixed-period bars and keeps the
// most recent max bars. The last bar is still forming until a tick from a later
// period arrives.
type Candlestick struct {
	ticker string
	period time.Duration
	max    int

	mu      sync.RWMutex
	candles []Candle
	lastVol int64
}

func NewCandlestick(ticker string, period time.Duration, max int) (*Candlestick, error) {
	if ticker == "" {
		return nil, errors.New("candlestick: ticker 不能为空")
	}
	if period <= 0 {
		return nil, errors.New("candlestick: period must be > 0")
	}
	if max <= 0 {
		max = 100
	}
	return &Candlestick{ticker: ticker, period: period, max: max}, nil
}

func (c *Candlestick) Ticker() string        { return c.ticker }
func (c *Candlestick) Period() time.Duration { return c.period }

// Update folds a tick into the current bar, opening a new bar on a period boundary.
// Ticks older than the forming bar are ignored. Tick volume is cumulative, so a bar's
// volume is the delta since the previous tick.
func (c *Candlestick) Update(t types.Tick) {
	if t.Ticker != c.ticker || t.LastPrice <= 0 {
		return
	}
	open := t.Time.Truncate(c.period)
	openMs := open.UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()
	delta := float64(0)
	if c.lastVol > 0 && t.Volume >= c.lastVol {
		delta = float64(t.Volume - c.lastVol)
	}
	if t.Volume > 0 {
		c.lastVol = t.Volume
	}

	n := len(c.candles)
	if n > 0 {
		last := &c.candles[n-1]
		if openMs < last.OpenTime {
			return
		}
		if openMs == last.OpenTime {
			last.High = max(last.High, t.LastPrice)
			last.Low = min(last.Low, t.LastPrice)
			last.Close = t.LastPrice
			last.Volume += delta
			last.Trades++
			return
		}
	}
	c.candles = append(c.candles, Candle{
		OpenTime:  openMs,
		CloseTime: open.Add(c.period).UnixMilli() - 1,
		Open:      t.LastPrice,
		High:      t.LastPrice,
		Low:       t.LastPrice,
		Close:     t.LastPrice,
		Volume:    delta,
		Trades:    1,
	})
	if len(c.candles) > c.max {
		c.candles = c.candles[len(c.candles)-c.max:]
	}
}

// Put merges externally loaded bars. A bar with the same open time as the last one
// replaces it.
func (c *Candlestick) Put(ks []Candle) {
	if len(ks) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.candles
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > c.max {
		cur = cur[len(cur)-c.max:]
	}
	c.candles = cur
}

func (c *Candlestick) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.candles)
}

// Last returns up to limit most recent bars, oldest first. limit <= 0 returns all.
func (c *Candlestick) Last(limit int) []Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.candles
	if limit > 0 && limit < len(cur) {
		cur = cur[len(cur)-limit:]
	}
	out := make([]Candle, len(cur))
	copy(out, cur)
	return out
}

func (c *Candlestick) Closes() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]float64, len(c.candles))
	for i, k := range c.candles {
		out[i] = k.Close
	}
	return out
}
