package paper

import (
	"context"
	"math/rand"
	"time"

	"algotrade/internal/logger"
	"algotrade/internal/types"
)

// Feed generates random-walk ticks for local runs and publishes them to a gateway.
type Feed struct {
	Gateway    *Gateway
	Tickers    []string
	StartPrice float64
	Step       float64
	Interval   time.Duration
	Seed       int64
}

// Run publishes ticks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if f.Gateway == nil || len(f.Tickers) == 0 {
		logger.Warnf("paper feed: nothing to publish")
		return nil
	}
	start := f.StartPrice
	if start <= 0 {
		start = 100
	}
	step := f.Step
	if step <= 0 {
		step = start * 0.001
	}
	interval := f.Interval
	if interval <= 0 {
		interval = time.Second
	}
	seed := f.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	prices := make(map[string]float64, len(f.Tickers))
	volumes := make(map[string]int64, len(f.Tickers))
	for _, t := range f.Tickers {
		prices[t] = start
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Infof("paper feed: publishing %v every %s", f.Tickers, interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, sym := range f.Tickers {
				p := prices[sym] + (rng.Float64()*2-1)*step
				if p <= step {
					p = step
				}
				prices[sym] = p
				volumes[sym] += int64(rng.Intn(10) + 1)
				f.Gateway.PublishTick(types.Tick{
					Ticker:    sym,
					Time:      now,
					LastPrice: p,
					Volume:    volumes[sym],
					BidPrice:  p - step/2,
					AskPrice:  p + step/2,
					BidVolume: int64(rng.Intn(50) + 1),
					AskVolume: int64(rng.Intn(50) + 1),
				})
			}
		}
	}
}
