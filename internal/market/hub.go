package market

import (
	"slices"
	"sync"
	"time"

	"algotrade/internal/types"
)

// Hub owns the per-ticker tick databases and candle charts. Both are created lazily, on
// the first tick or the first access, whichever comes first.
type Hub struct {
	tickCapacity   int
	candlePeriod   time.Duration
	candleCapacity int

	mu     sync.RWMutex
	ticks  map[string]*TickDatabase
	charts map[string]*Candlestick
}

func NewHub(tickCapacity int, candlePeriod time.Duration, candleCapacity int) *Hub {
	if candlePeriod <= 0 {
		candlePeriod = time.Minute
	}
	return &Hub{
		tickCapacity:   tickCapacity,
		candlePeriod:   candlePeriod,
		candleCapacity: candleCapacity,
		ticks:          make(map[string]*TickDatabase),
		charts:         make(map[string]*Candlestick),
	}
}

// Record appends a tick to its database and to the ticker's chart when loaded.
func (h *Hub) Record(t types.Tick) {
	if t.Ticker == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tickDBLocked(t.Ticker).Append(t)
	if chart := h.charts[t.Ticker]; chart != nil {
		chart.Update(t)
	}
}

// TickDB returns the database for ticker, creating an empty one on first access. It
// returns nil only for an empty ticker.
func (h *Hub) TickDB(ticker string) *TickDatabase {
	if ticker == "" {
		return nil
	}
	h.mu.RLock()
	db, ok := h.ticks[ticker]
	h.mu.RUnlock()
	if ok {
		return db
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tickDBLocked(ticker)
}

func (h *Hub) tickDBLocked(ticker string) *TickDatabase {
	db, ok := h.ticks[ticker]
	if !ok {
		db = NewTickDatabase(ticker, h.tickCapacity)
		h.ticks[ticker] = db
	}
	return db
}

// LoadCandleChart returns the chart for ticker, creating it and seeding it from the
// buffered ticks on first use.
func (h *Hub) LoadCandleChart(ticker string) (*Candlestick, error) {
	h.mu.RLock()
	chart, ok := h.charts[ticker]
	h.mu.RUnlock()
	if ok {
		return chart, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if chart, ok = h.charts[ticker]; ok {
		return chart, nil
	}
	chart, err := NewCandlestick(ticker, h.candlePeriod, h.candleCapacity)
	if err != nil {
		return nil, err
	}
	if db := h.ticks[ticker]; db != nil {
		for _, t := range db.Last(0) {
			chart.Update(t)
		}
	}
	h.charts[ticker] = chart
	return chart, nil
}

func (h *Hub) Tickers() []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.ticks))
	for t := range h.ticks {
		out = append(out, t)
	}
	h.mu.RUnlock()
	slices.Sort(out)
	return out
}
