package store

import (
	"context"
	"sync"
	"time"

	"algotrade/internal/logger"
	"algotrade/internal/types"

	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// Recorder buffers finished orders and trades in memory and writes them in batches
// from its own goroutine, so callers on the event dispatcher never wait on disk.
type Recorder struct {
	store    *Store
	batch    int
	interval time.Duration

	mu     sync.Mutex
	orders []types.Order
	trades []types.Trade
	closed bool

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewRecorder(s *Store, batch int, interval time.Duration) *Recorder {
	if batch <= 0 {
		batch = 64
	}
	if interval <= 0 {
		interval = time.Second
	}
	r := &Recorder{
		store:    s,
		batch:    batch,
		interval: interval,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) RecordOrder(o types.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.orders = append(r.orders, o)
	r.maybeKickLocked()
}

func (r *Recorder) RecordTrade(t types.Trade) {
	if t.TradeID == "" {
		t.TradeID = "local-" + uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.trades = append(r.trades, t)
	r.maybeKickLocked()
}

func (r *Recorder) maybeKickLocked() {
	if len(r.orders)+len(r.trades) < r.batch {
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			r.flush()
			return
		case <-t.C:
			r.flush()
		case <-r.kick:
			r.flush()
		}
	}
}

func (r *Recorder) flush() {
	r.mu.Lock()
	orders, trades := r.orders, r.trades
	r.orders, r.trades = nil, nil
	r.mu.Unlock()
	if len(orders) == 0 && len(trades) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.SaveTrades(ctx, trades); err != nil {
		logger.Errorf("store: 写入成交失败 (%d 条): %v", len(trades), err)
	}
	if err := r.store.SaveOrders(ctx, dedupOrders(orders)); err != nil {
		logger.Errorf("store: 写入订单失败 (%d 条): %v", len(orders), err)
	}
}

// Close writes whatever is buffered and stops the writer. Records arriving later are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	close(r.stop)
	<-r.done
	return nil
}

// dedupOrders keeps the last state per order id, in first-seen order. A single
// upsert statement may not touch the same row twice.
func dedupOrders(orders []types.Order) []types.Order {
	if len(orders) < 2 {
		return orders
	}
	idx := make(map[string]int, len(orders))
	out := orders[:0:0]
	for _, o := range orders {
		if i, ok := idx[o.ID]; ok {
			out[i] = o
			continue
		}
		idx[o.ID] = len(out)
		out = append(out, o)
	}
	return out
}
