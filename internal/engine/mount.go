package engine

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"algotrade/internal/logger"
	"algotrade/internal/strategy"
)

// MountStrategy subscribes s to events of ticker. The change takes effect on the
// dispatcher after every event already queued. Mounting the same pair twice is a no-op.
func (e *Engine) MountStrategy(ticker string, s strategy.Strategy) error {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return fmt.Errorf("%w: empty ticker", ErrInvalidStrategy)
	}
	if err := checkStrategy(s); err != nil {
		return err
	}
	if err := e.bus.Post(mountEvent{ticker: ticker, s: s}); err != nil {
		return ErrClosed
	}
	return nil
}

// UnmountStrategy removes s from every ticker. Events already queued before the call
// may still reach it.
func (e *Engine) UnmountStrategy(s strategy.Strategy) error {
	if err := checkStrategy(s); err != nil {
		return err
	}
	if err := e.bus.Post(unmountEvent{s: s}); err != nil {
		return ErrClosed
	}
	return nil
}

func checkStrategy(s strategy.Strategy) error {
	if s == nil {
		return fmt.Errorf("%w: nil", ErrInvalidStrategy)
	}
	if !reflect.TypeOf(s).Comparable() {
		return fmt.Errorf("%w: %T is not comparable, mount a pointer", ErrInvalidStrategy, s)
	}
	return nil
}

func (e *Engine) onMount(ticker string, s strategy.Strategy) {
	e.mountMu.Lock()
	defer e.mountMu.Unlock()
	list := e.mounts[ticker]
	if slices.Contains(list, s) {
		logger.Debugf("engine: %s already mounted on %s", strategyName(s), ticker)
		return
	}
	e.mounts[ticker] = append(list, s)
	logger.Infof("engine: mounted %s on %s", strategyName(s), ticker)
}

func (e *Engine) onUnmount(s strategy.Strategy) {
	e.mountMu.Lock()
	defer e.mountMu.Unlock()
	for ticker, list := range e.mounts {
		kept := slices.DeleteFunc(slices.Clone(list), func(x strategy.Strategy) bool { return x == s })
		if len(kept) == len(list) {
			continue
		}
		if len(kept) == 0 {
			delete(e.mounts, ticker)
		} else {
			e.mounts[ticker] = kept
		}
		logger.Infof("engine: unmounted %s from %s", strategyName(s), ticker)
	}
}

// mounted returns a snapshot of the strategies on ticker.
func (e *Engine) mounted(ticker string) []strategy.Strategy {
	e.mountMu.RLock()
	defer e.mountMu.RUnlock()
	return slices.Clone(e.mounts[ticker])
}

// distinctStrategies lists every mounted strategy once, ordered by ticker then mount order.
func (e *Engine) distinctStrategies() []strategy.Strategy {
	e.mountMu.RLock()
	defer e.mountMu.RUnlock()
	tickers := make([]string, 0, len(e.mounts))
	for t := range e.mounts {
		tickers = append(tickers, t)
	}
	slices.Sort(tickers)
	var out []strategy.Strategy
	for _, t := range tickers {
		for _, s := range e.mounts[t] {
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// MountedTickers lists tickers with at least one strategy.
func (e *Engine) MountedTickers() []string {
	e.mountMu.RLock()
	out := make([]string, 0, len(e.mounts))
	for t := range e.mounts {
		out = append(out, t)
	}
	e.mountMu.RUnlock()
	slices.Sort(out)
	return out
}
