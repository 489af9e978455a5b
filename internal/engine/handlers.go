package engine

import (
	"errors"
	"fmt"
	"runtime/debug"

	"algotrade/internal/bus"
	"algotrade/internal/logger"
	"algotrade/internal/panel"
	"algotrade/internal/strategy"
	"algotrade/internal/types"

	"github.com/shopspring/decimal"
)

// dispatch is subscribed for every engine event type and runs on the dispatcher.
func (e *Engine) dispatch(evt bus.Event) error {
	switch ev := evt.(type) {
	case tickEvent:
		e.onTick(ev.tick)
	case orderEvent:
		e.onOrder(ev.update)
	case tradeEvent:
		e.onTrade(ev.trade)
	case positionEvent:
		e.onPosition(ev.record)
	case syncDoneEvent:
		e.onPositionSyncDone()
	case accountEvent:
		e.onAccount(ev.account)
	case syncEvent:
		e.onSync()
	case mountEvent:
		e.onMount(ev.ticker, ev.s)
	case unmountEvent:
		e.onUnmount(ev.s)
	default:
		return fmt.Errorf("unexpected event %T", evt)
	}
	return nil
}

func (e *Engine) onTick(t types.Tick) {
	e.hub.Record(t)
	for _, s := range e.mounted(t.Ticker) {
		e.notify(s, "OnTick", func() { s.OnTick(t) })
	}
}

func (e *Engine) onOrder(u types.OrderUpdate) {
	o, err := e.panel.ApplyOrderUpdate(u)
	if err != nil {
		if errors.Is(err, panel.ErrUnknownOrder) {
			logger.Warnf("engine: order update for unknown order %s (%s)", u.OrderID, u.Status)
		} else {
			logger.Warnf("engine: stale order update ignored: %v", err)
		}
		return
	}
	for _, s := range e.mounted(o.Ticker) {
		e.notify(s, "OnOrder", func() { s.OnOrder(o) })
	}
	if o.Status.IsTerminal() && e.recorder != nil {
		e.recorder.RecordOrder(o)
	}
}

func (e *Engine) onTrade(tr types.Trade) {
	res, err := e.panel.ApplyTrade(tr)
	switch {
	case errors.Is(err, panel.ErrDuplicateTrade):
		logger.Debugf("engine: duplicate trade %s ignored", tr.TradeID)
		return
	case err != nil:
		logger.Warnf("engine: trade %s for order %s ignored: %v", tr.TradeID, tr.OrderID, err)
		return
	}
	o := res.Order
	tr.Ticker, tr.Direction, tr.Offset = o.Ticker, o.Direction, o.Offset
	pos := res.Position
	for _, s := range e.mounted(o.Ticker) {
		e.notify(s, "OnOrder", func() { s.OnOrder(o) })
		e.notify(s, "OnTrade", func() { s.OnTrade(tr) })
		e.notify(s, "OnPosition", func() { s.OnPosition(pos) })
	}
	if e.recorder != nil {
		e.recorder.RecordTrade(tr)
		// FILLED may have been recorded before its trades arrived
		if o.Status.IsTerminal() {
			e.recorder.RecordOrder(o)
		}
	}
}

func (e *Engine) onSync() {
	if len(e.posAcc) > 0 {
		logger.Warnf("engine: resync discarded %d unfinished position records", len(e.posAcc))
	}
	e.posAcc = make(map[types.PositionKey]types.Position)
}

// onPosition merges one raw lot into the pending snapshot. Nothing is published until
// the gateway signals the end of the query.
func (e *Engine) onPosition(r types.PositionRecord) {
	if r.Ticker == "" || !r.Direction.Valid() || r.Volume <= 0 {
		logger.Warnf("engine: malformed position record ignored: %+v", r)
		return
	}
	key := types.PositionKey{Ticker: r.Ticker, Direction: r.Direction}
	acc := e.posAcc[key]
	acc.Volume += r.Volume
	acc.Cost = acc.Cost.Add(decimal.NewFromFloat(r.Price).Mul(decimal.NewFromInt(int64(r.Volume))))
	e.posAcc[key] = acc
}

func (e *Engine) onPositionSyncDone() {
	affected := e.panel.ReplacePositions(e.posAcc)
	e.posAcc = make(map[types.PositionKey]types.Position)
	e.syncStarted.Store(0)
	first := !e.synced.Swap(true)
	logger.Infof("engine: position sync complete, %d positions (first=%v)", len(affected), first)
	for _, p := range affected {
		for _, s := range e.mounted(p.Ticker) {
			e.notify(s, "OnPosition", func() { s.OnPosition(p) })
		}
	}
}

func (e *Engine) onAccount(a types.Account) {
	e.panel.SetAccount(a)
	for _, s := range e.distinctStrategies() {
		e.notify(s, "OnAccount", func() { s.OnAccount(a) })
	}
}

// notify runs one strategy callback. A panic is logged and does not stop delivery to
// the remaining strategies.
func (e *Engine) notify(s strategy.Strategy, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("engine: strategy %s panicked in %s: %v\n%s", strategyName(s), callback, r, debug.Stack())
		}
	}()
	fn()
}

func strategyName(s strategy.Strategy) string {
	if n, ok := s.(strategy.Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
