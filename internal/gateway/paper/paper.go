// Package paper is an in-process simulated exchange. It accepts orders, fills them
// against the ticks it is fed and reports everything through gateway.Callbacks from
// a single worker goroutine, so reports arrive in the order they were produced.
package paper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"algotrade/internal/gateway"
	"algotrade/internal/logger"
	"algotrade/internal/types"

	"golang.org/x/time/rate"
)

type Config struct {
	Account        string
	InitialBalance float64
	// FillLatency delays every fill report.
	FillLatency time.Duration
	// OrdersPerSecond throttles SendOrder synchronously. Zero disables it.
	OrdersPerSecond float64
	// Lots seeds holdings reported by QueryPositions.
	Lots []types.PositionRecord
}

type Gateway struct {
	cfg     Config
	limiter *rate.Limiter

	mu        sync.Mutex
	cb        gateway.Callbacks
	loggedIn  bool
	connected bool
	closed    bool
	tickers   map[string]bool
	resting   map[string]types.OrderRequest
	lastPrice map[string]float64
	lots      []types.PositionRecord
	balance   float64
	tradeSeq  int64
	now       func() time.Time

	out *outbox
}

func New(cfg Config) *Gateway {
	g := &Gateway{
		cfg:       cfg,
		cb:        gateway.NopCallbacks{},
		connected: true,
		tickers:   make(map[string]bool),
		resting:   make(map[string]types.OrderRequest),
		lastPrice: make(map[string]float64),
		lots:      append([]types.PositionRecord(nil), cfg.Lots...),
		balance:   cfg.InitialBalance,
		now:       time.Now,
		out:       newOutbox(),
	}
	if cfg.OrdersPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.OrdersPerSecond), 1)
	}
	go g.out.run()
	return g
}

func (g *Gateway) Name() string { return "paper" }

func (g *Gateway) Register(cb gateway.Callbacks) {
	if cb == nil {
		cb = gateway.NopCallbacks{}
	}
	g.mu.Lock()
	g.cb = cb
	g.mu.Unlock()
}

func (g *Gateway) Login(ctx context.Context, params gateway.LoginParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(false); err != nil {
		return err
	}
	for _, t := range params.Tickers {
		g.tickers[t] = true
	}
	g.loggedIn = true
	logger.Infof("paper: logged in account=%s tickers=%v", g.cfg.Account, params.Tickers)
	return nil
}

func (g *Gateway) usableLocked(needLogin bool) error {
	switch {
	case g.closed || !g.connected:
		return gateway.ErrDisconnected
	case needLogin && !g.loggedIn:
		return gateway.ErrNotLoggedIn
	}
	return nil
}

// SendOrder accepts an order and reports ACCEPTED. Market orders fill at the last
// price at once; limit orders fill when a tick crosses them. FAK and FOK orders that
// cannot fill immediately are cancelled.
func (g *Gateway) SendOrder(ctx context.Context, req types.OrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(true); err != nil {
		return err
	}
	if req.OrderID == "" || req.Volume <= 0 {
		return fmt.Errorf("%w: malformed order %+v", gateway.ErrRejected, req)
	}
	if _, dup := g.resting[req.OrderID]; dup {
		return fmt.Errorf("%w: duplicate order id %s", gateway.ErrRejected, req.OrderID)
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return gateway.ErrThrottled
	}

	g.reportOrderLocked(req.OrderID, types.OrderStatusAccepted, "")
	last, hasPrice := g.lastPrice[req.Ticker]
	switch req.Type {
	case types.OrderTypeMarket:
		if !hasPrice {
			g.reportOrderLocked(req.OrderID, types.OrderStatusCancelled, "no market price")
			return nil
		}
		g.fillLocked(req, last)
	case types.OrderTypeFAK, types.OrderTypeFOK:
		if hasPrice && crosses(req, last) {
			g.fillLocked(req, req.Price)
		} else {
			g.reportOrderLocked(req.OrderID, types.OrderStatusCancelled, "not marketable")
		}
	default:
		if hasPrice && crosses(req, last) {
			g.fillLocked(req, req.Price)
			return nil
		}
		g.resting[req.OrderID] = req
	}
	return nil
}

func crosses(req types.OrderRequest, price float64) bool {
	if req.Direction == types.DirectionBuy {
		return price <= req.Price
	}
	return price >= req.Price
}

func (g *Gateway) CancelOrder(ctx context.Context, req gateway.CancelRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(true); err != nil {
		return err
	}
	if _, ok := g.resting[req.OrderID]; !ok {
		return fmt.Errorf("%w: order %s not resting", gateway.ErrRejected, req.OrderID)
	}
	delete(g.resting, req.OrderID)
	g.reportOrderLocked(req.OrderID, types.OrderStatusCancelling, "")
	g.reportOrderLocked(req.OrderID, types.OrderStatusCancelled, "cancelled by request")
	return nil
}

func (g *Gateway) QueryPositions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(true); err != nil {
		return err
	}
	cb := g.cb
	for _, lot := range g.lots {
		lot := lot
		g.out.push(func() { cb.OnPosition(lot) })
	}
	g.out.push(cb.OnPositionSyncDone)
	return nil
}

func (g *Gateway) QueryAccount(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.usableLocked(true); err != nil {
		return err
	}
	acct := g.accountLocked()
	cb := g.cb
	g.out.push(func() { cb.OnAccount(acct) })
	return nil
}

func (g *Gateway) accountLocked() types.Account {
	margin := 0.0
	for _, lot := range g.lots {
		margin += lot.Price * float64(lot.Volume)
	}
	frozen := 0.0
	for _, req := range g.resting {
		if req.Offset == types.OffsetOpen {
			frozen += req.Price * float64(req.Volume)
		}
	}
	return types.Account{
		AccountID:    g.cfg.Account,
		Balance:      g.balance,
		Available:    g.balance - margin - frozen,
		Margin:       margin,
		FrozenMargin: frozen,
		UpdateTime:   g.now(),
	}
}

// PublishTick feeds a market tick: it is reported to the engine and resting orders
// on the ticker are matched against it.
func (g *Gateway) PublishTick(t types.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || !g.connected {
		return
	}
	g.lastPrice[t.Ticker] = t.LastPrice
	cb := g.cb
	g.out.push(func() { cb.OnTick(t) })

	for id, req := range g.resting {
		if req.Ticker != t.Ticker {
			continue
		}
		ref := t.LastPrice
		if req.Direction == types.DirectionBuy && t.AskPrice > 0 {
			ref = t.AskPrice
		} else if req.Direction == types.DirectionSell && t.BidPrice > 0 {
			ref = t.BidPrice
		}
		if crosses(req, ref) {
			delete(g.resting, id)
			g.fillLocked(req, req.Price)
		}
	}
}

// fillLocked fills req completely. The order report precedes the trade report, as
// real exchanges commonly do.
func (g *Gateway) fillLocked(req types.OrderRequest, price float64) {
	g.tradeSeq++
	tr := types.Trade{
		TradeID:   "T" + strconv.FormatInt(g.tradeSeq, 10),
		OrderID:   req.OrderID,
		Ticker:    req.Ticker,
		Direction: req.Direction,
		Offset:    req.Offset,
		Price:     price,
		Volume:    req.Volume,
		Time:      g.now(),
	}
	g.bookLocked(tr)
	g.reportOrderLocked(req.OrderID, types.OrderStatusFilled, "")
	cb := g.cb
	delay := g.cfg.FillLatency
	g.out.push(func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		cb.OnTrade(tr)
	})
}

// bookLocked updates lots and balance. Closes consume the oldest lots of the opposite
// side first and realize their profit.
func (g *Gateway) bookLocked(tr types.Trade) {
	if !tr.Offset.IsClose() {
		g.lots = append(g.lots, types.PositionRecord{
			Ticker:    tr.Ticker,
			Direction: tr.Direction,
			Volume:    tr.Volume,
			Price:     tr.Price,
			OpenDate:  tr.Time,
		})
		return
	}
	held := tr.Direction.Opposite()
	remaining := tr.Volume
	kept := g.lots[:0]
	for _, lot := range g.lots {
		if remaining > 0 && lot.Ticker == tr.Ticker && lot.Direction == held {
			n := min(remaining, lot.Volume)
			pnl := (tr.Price - lot.Price) * float64(n)
			if held == types.DirectionSell {
				pnl = -pnl
			}
			g.balance += pnl
			lot.Volume -= n
			remaining -= n
		}
		if lot.Volume > 0 {
			kept = append(kept, lot)
		}
	}
	g.lots = kept
}

func (g *Gateway) reportOrderLocked(id string, status types.OrderStatus, msg string) {
	u := types.OrderUpdate{OrderID: id, Status: status, Message: msg, Time: g.now()}
	cb := g.cb
	g.out.push(func() { cb.OnOrder(u) })
}

// Disconnect makes every command fail with ErrDisconnected until Reconnect.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
}

func (g *Gateway) Reconnect() {
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()
}

// Flush waits until every report produced so far has been delivered.
func (g *Gateway) Flush(ctx context.Context) error {
	return g.out.flush(ctx)
}

// Close delivers pending reports and stops the worker.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()
	g.out.close()
	logger.Infof("paper: gateway closed")
	return nil
}

var _ gateway.API = (*Gateway)(nil)
