// Package engine is the strategy engine: it owns the event bus and the gateway,
// gates orders through risk, keeps the trading panel current and fans events out to
// mounted strategies. All state changes caused by gateway reports happen on the bus
// dispatcher goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"algotrade/internal/bus"
	"algotrade/internal/gateway"
	"algotrade/internal/logger"
	"algotrade/internal/market"
	"algotrade/internal/panel"
	"algotrade/internal/pkg/circuit"
	"algotrade/internal/risk"
	"algotrade/internal/strategy"
	"algotrade/internal/types"
)

// Recorder receives finished orders and every booked trade. Implementations must not
// block; they are called on the dispatcher.
type Recorder interface {
	RecordOrder(o types.Order)
	RecordTrade(t types.Trade)
}

type Config struct {
	Gateway gateway.API
	Risk    risk.Manager
	Login   gateway.LoginParams
	// Breaker, when set, stops submitting orders after repeated gateway refusals.
	Breaker *circuit.Breaker

	SlowEventThreshold time.Duration
	QueueWarnDepth     int
	ClosePolicy        bus.ClosePolicy

	TickCapacity   int
	CandlePeriod   time.Duration
	CandleCapacity int
}

type Option func(*Engine)

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

type Engine struct {
	bus      *bus.Engine
	api      gateway.API
	panel    *panel.Panel
	risk     risk.Manager
	hub      *market.Hub
	recorder Recorder
	breaker  *circuit.Breaker

	login       gateway.LoginParams
	closePolicy bus.ClosePolicy

	ctx    context.Context
	cancel context.CancelFunc

	loggedIn atomic.Bool
	synced   atomic.Bool
	closed   atomic.Bool
	syncMu   sync.Mutex
	// syncStarted is the UnixNano start of the position query in flight, zero when idle.
	syncStarted atomic.Int64

	// mounts is written only on the dispatcher; the lock serves readers elsewhere.
	mountMu sync.RWMutex
	mounts  map[string][]strategy.Strategy

	// posAcc is dispatcher-owned.
	posAcc map[types.PositionKey]types.Position
}

// New wires the engine to its gateway and starts the dispatcher. The engine owns the
// gateway from here on and closes it in Close.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("engine: gateway is required")
	}
	if cfg.Risk == nil {
		cfg.Risk = risk.AllowAll
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		bus: bus.New(bus.Options{
			Name:          "EventEngine",
			SlowThreshold: cfg.SlowEventThreshold,
			WarnDepth:     cfg.QueueWarnDepth,
		}),
		api:         cfg.Gateway,
		panel:       panel.New(),
		risk:        cfg.Risk,
		breaker:     cfg.Breaker,
		hub:         market.NewHub(cfg.TickCapacity, cfg.CandlePeriod, cfg.CandleCapacity),
		login:       cfg.Login,
		closePolicy: cfg.ClosePolicy,
		ctx:         ctx,
		cancel:      cancel,
		mounts:      make(map[string][]strategy.Strategy),
		posAcc:      make(map[types.PositionKey]types.Position),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, t := range allEventTypes {
		if err := e.bus.Subscribe(t, e.dispatch); err != nil {
			cancel()
			return nil, err
		}
	}
	e.bus.Start()
	e.api.Register(gatewayCallbacks{e: e})
	return e, nil
}

// Login authenticates with the gateway and runs the first position/account sync.
// Orders are refused until that sync completes.
func (e *Engine) Login(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := e.api.Login(ctx, e.login); err != nil {
		return fmt.Errorf("gateway %s login: %w", e.api.Name(), err)
	}
	e.loggedIn.Store(true)
	logger.Infof("engine: logged in to %s as %s", e.api.Name(), e.login.Account)
	return e.Sync(ctx)
}

// syncStaleAfter bounds how long a position query may stay unanswered before a new
// Sync is allowed to replace it.
const syncStaleAfter = time.Minute

// Sync asks the gateway for a fresh position and account snapshot. The results are
// applied asynchronously when the gateway reports them. While an earlier position
// query has not reported its end, Sync returns ErrSyncInProgress.
func (e *Engine) Sync(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.loggedIn.Load() {
		return ErrNotLoggedIn
	}
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if started := e.syncStarted.Load(); started != 0 {
		age := time.Since(time.Unix(0, started))
		if age < syncStaleAfter {
			return ErrSyncInProgress
		}
		logger.Warnf("engine: position sync unanswered for %s, starting over", age.Round(time.Second))
	}
	e.syncStarted.Store(time.Now().UnixNano())
	if err := e.bus.Post(syncEvent{}); err != nil {
		e.syncStarted.Store(0)
		return err
	}
	if err := e.api.QueryPositions(ctx); err != nil {
		e.syncStarted.Store(0)
		return fmt.Errorf("query positions: %w", err)
	}
	if err := e.api.QueryAccount(ctx); err != nil {
		return fmt.Errorf("query account: %w", err)
	}
	return nil
}

// RunResync repeats Sync every interval until ctx ends. A non-positive interval
// disables it.
func (e *Engine) RunResync(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := e.Sync(ctx); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				if errors.Is(err, ErrSyncInProgress) {
					logger.Debugf("engine: periodic resync skipped, previous sync still running")
					continue
				}
				logger.Warnf("engine: periodic resync failed: %v", err)
			}
		}
	}
}

func (e *Engine) IsLoggedIn() bool       { return e.loggedIn.Load() }
func (e *Engine) IsPositionSynced() bool { return e.synced.Load() }

func (e *Engine) Stats() bus.Stats { return e.bus.Stats() }

// Flush waits until every event posted so far has been handled.
func (e *Engine) Flush(ctx context.Context) error {
	return e.bus.Flush(ctx)
}

// Close releases the gateway, then the bus, applying the configured close policy to
// queued events. Must not be called from a strategy callback.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	var errs []error
	if err := e.api.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close gateway: %w", err))
	}
	if err := e.bus.Close(e.closePolicy); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	e.loggedIn.Store(false)
	logger.Infof("engine: closed")
	return errors.Join(errs...)
}
