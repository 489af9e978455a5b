package paper

import (
	"context"
	"sync"

	"algotrade/internal/logger"
)

// outbox runs queued report callbacks on one goroutine in push order.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func newOutbox() *outbox {
	o := &outbox{done: make(chan struct{})}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *outbox) push(fn func()) {
	o.mu.Lock()
	if !o.closed {
		o.queue = append(o.queue, fn)
	}
	o.mu.Unlock()
	o.cond.Signal()
}

func (o *outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		for len(o.queue) == 0 && !o.closed {
			o.cond.Wait()
		}
		if len(o.queue) == 0 && o.closed {
			o.mu.Unlock()
			return
		}
		batch := o.queue
		o.queue = nil
		o.mu.Unlock()
		for _, fn := range batch {
			o.invoke(fn)
		}
	}
}

func (o *outbox) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("paper: callback panic: %v", r)
		}
	}()
	fn()
}

func (o *outbox) flush(ctx context.Context) error {
	ch := make(chan struct{})
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.queue = append(o.queue, func() { close(ch) })
	o.mu.Unlock()
	o.cond.Signal()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cond.Broadcast()
	<-o.done
}
