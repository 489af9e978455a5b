// Package bus is the single-dispatcher event engine. Producers on any goroutine post
// events into one unbounded FIFO queue and a single goroutine hands each event to the
// handler subscribed for its type.
package bus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"algotrade/internal/logger"
)

var (
	ErrClosed        = errors.New("event engine closed")
	ErrHandlerExists = errors.New("handler already registered for event type")
	ErrNilHandler    = errors.New("nil handler")
)

type EventType string

// Event is anything the engine can route. Type decides which handler receives it.
type Event interface {
	Type() EventType
}

type Handler func(Event) error

type ClosePolicy int

const (
	// DrainPending dispatches everything already queued before the dispatcher exits.
	DrainPending ClosePolicy = iota
	// DiscardPending drops queued events; an in-flight handler still completes.
	DiscardPending
)

// ParseClosePolicy maps the config spelling onto a policy.
func ParseClosePolicy(s string) (ClosePolicy, error) {
	switch s {
	case "", "drain":
		return DrainPending, nil
	case "discard":
		return DiscardPending, nil
	}
	return DrainPending, fmt.Errorf("unknown close policy %q", s)
}

type Options struct {
	Name string
	// SlowThreshold logs handlers that run longer than this. Zero disables the warning.
	SlowThreshold time.Duration
	// WarnDepth logs once each time the backlog grows past this many events.
	WarnDepth int
}

type Stats struct {
	Posted     uint64 `json:"posted"`
	Dispatched uint64 `json:"dispatched"`
	Failed     uint64 `json:"failed"`
	Unhandled  uint64 `json:"unhandled"`
	Discarded  uint64 `json:"discarded"`
	Pending    int64  `json:"pending"`
}

type Engine struct {
	opts Options

	handlersMu sync.RWMutex
	handlers   map[EventType]Handler

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []Event
	closed     bool
	started    bool
	warned     bool
	discarding atomic.Bool

	closeOnce sync.Once
	wg        sync.WaitGroup

	posted     atomic.Uint64
	dispatched atomic.Uint64
	failed     atomic.Uint64
	unhandled  atomic.Uint64
	discarded  atomic.Uint64
	pending    atomic.Int64
}

func New(opts Options) *Engine {
	if opts.Name == "" {
		opts.Name = "EventEngine"
	}
	e := &Engine{
		opts:     opts,
		handlers: make(map[EventType]Handler),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Subscribe binds the single handler for an event type.
func (e *Engine) Subscribe(t EventType, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	if _, ok := e.handlers[t]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, t)
	}
	e.handlers[t] = h
	logger.Debugf("%s: handler registered for %s", e.opts.Name, t)
	return nil
}

// Start launches the dispatcher. Calling it more than once is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLocked()
}

func (e *Engine) startLocked() {
	if e.started {
		return
	}
	e.started = true
	e.wg.Add(1)
	go e.runLoop()
}

// Post enqueues evt and returns without waiting for any handler.
func (e *Engine) Post(evt Event) error {
	if evt == nil {
		return fmt.Errorf("post: nil event")
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.queue = append(e.queue, evt)
	if _, ok := evt.(*barrier); !ok {
		e.posted.Add(1)
		e.pending.Add(1)
	}
	depth := len(e.queue)
	warn := false
	if e.opts.WarnDepth > 0 && depth >= e.opts.WarnDepth && !e.warned {
		e.warned = true
		warn = true
	}
	e.mu.Unlock()
	e.cond.Signal()

	if warn {
		logger.Warnf("%s: backlog reached %d events", e.opts.Name, depth)
	}
	return nil
}

type barrier struct {
	done chan struct{}
}

func (*barrier) Type() EventType { return "" }

// Flush blocks until every event posted before the call has been dispatched.
// It must not be called from a handler.
func (e *Engine) Flush(ctx context.Context) error {
	b := &barrier{done: make(chan struct{})}
	if err := e.Post(b); err != nil {
		return err
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, applies policy to the backlog and waits for the
// dispatcher to exit. Later calls return nil immediately. Close must not be called
// from a handler.
func (e *Engine) Close(policy ClosePolicy) error {
	e.closeOnce.Do(func() {
		if policy == DiscardPending {
			e.discarding.Store(true)
		}
		e.mu.Lock()
		e.closed = true
		if policy == DrainPending {
			e.startLocked()
		}
		started := e.started
		if !started {
			e.dropLocked()
		}
		e.mu.Unlock()
		e.cond.Broadcast()
		e.wg.Wait()
		st := e.Stats()
		logger.Infof("%s: closed (dispatched=%d failed=%d discarded=%d)", e.opts.Name, st.Dispatched, st.Failed, st.Discarded)
	})
	return nil
}

func (e *Engine) Stats() Stats {
	return Stats{
		Posted:     e.posted.Load(),
		Dispatched: e.dispatched.Load(),
		Failed:     e.failed.Load(),
		Unhandled:  e.unhandled.Load(),
		Discarded:  e.discarded.Load(),
		Pending:    e.pending.Load(),
	}
}

func (e *Engine) runLoop() {
	defer e.wg.Done()
	logger.Infof("%s: dispatcher started", e.opts.Name)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.closed && (len(e.queue) == 0 || e.discarding.Load()) {
			e.dropLocked()
			e.mu.Unlock()
			logger.Infof("%s: dispatcher stopping", e.opts.Name)
			return
		}
		batch := e.queue
		e.queue = nil
		e.warned = false
		e.mu.Unlock()

		for i, evt := range batch {
			if e.discarding.Load() {
				e.drop(batch[i:])
				break
			}
			e.handleEvent(evt)
		}
	}
}

func (e *Engine) dropLocked() {
	e.drop(e.queue)
	e.queue = nil
}

func (e *Engine) drop(evts []Event) {
	for _, evt := range evts {
		if b, ok := evt.(*barrier); ok {
			close(b.done)
			continue
		}
		e.discarded.Add(1)
		e.pending.Add(-1)
	}
}

// handleEvent runs one handler with panic isolation and slow-handler reporting.
func (e *Engine) handleEvent(evt Event) {
	if b, ok := evt.(*barrier); ok {
		close(b.done)
		return
	}
	typ := evt.Type()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			logger.Errorf("%s: panic handling event %s: %v\n%s", e.opts.Name, typ, r, debug.Stack())
		}
		e.dispatched.Add(1)
		e.pending.Add(-1)
		if dur := time.Since(start); e.opts.SlowThreshold > 0 && dur > e.opts.SlowThreshold {
			logger.Warnf("%s: slow event %s took %v", e.opts.Name, typ, dur)
		}
	}()

	e.handlersMu.RLock()
	h, ok := e.handlers[typ]
	e.handlersMu.RUnlock()
	if !ok {
		e.unhandled.Add(1)
		logger.Warnf("%s: no handler registered for event type: %s", e.opts.Name, typ)
		return
	}
	if err := h(evt); err != nil {
		e.failed.Add(1)
		logger.Errorf("%s: failed to handle %s: %v", e.opts.Name, typ, err)
	}
}
