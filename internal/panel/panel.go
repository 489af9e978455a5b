// Package panel is the authoritative in-memory book of orders, positions and the
// account. Writers are the engine dispatcher and the order send path; readers may be
// on any goroutine and always receive copies.
package panel

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"algotrade/internal/types"

	"github.com/shopspring/decimal"
)

var (
	ErrStaleUpdate    = errors.New("stale update")
	ErrDuplicateTrade = errors.New("duplicate trade")
	ErrUnknownOrder   = errors.New("unknown order")
	ErrDuplicateOrder = errors.New("duplicate order id")
	ErrInvalidTrade   = errors.New("invalid trade")
)

type Panel struct {
	mu        sync.RWMutex
	orders    map[string]*types.Order
	orderSeq  []string
	tradeIDs  map[string]struct{}
	positions map[types.PositionKey]*types.Position
	account   types.Account
	hasAcct   bool
	now       func() time.Time
}

func New() *Panel {
	return &Panel{
		orders:    make(map[string]*types.Order),
		tradeIDs:  make(map[string]struct{}),
		positions: make(map[types.PositionKey]*types.Position),
		now:       time.Now,
	}
}

// InsertOrder records a freshly submitted order. Ids must be unique for the panel's lifetime.
func (p *Panel) InsertOrder(o types.Order) error {
	if o.ID == "" {
		return fmt.Errorf("insert order: empty id")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	if o.Status == "" {
		o.Status = types.OrderStatusSubmitting
	}
	if o.InsertTime.IsZero() {
		o.InsertTime = p.now()
	}
	o.UpdateTime = o.InsertTime
	cp := o
	p.orders[o.ID] = &cp
	p.orderSeq = append(p.orderSeq, o.ID)
	return nil
}

// MarkRejected moves a non-terminal order straight to REJECTED. Used when the gateway
// refuses an order synchronously.
func (p *Panel) MarkRejected(id, reason string) (types.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[id]
	if !ok {
		return types.Order{}, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	if o.Status.IsTerminal() {
		return *o, fmt.Errorf("%w: order %s already %s", ErrStaleUpdate, id, o.Status)
	}
	o.Status = types.OrderStatusRejected
	o.Message = reason
	o.UpdateTime = p.now()
	return *o, nil
}

// ApplyOrderUpdate applies a gateway status report. Updates that would move the order
// backwards, touch a terminal order or repeat the current status return ErrStaleUpdate.
func (p *Panel) ApplyOrderUpdate(u types.OrderUpdate) (types.Order, error) {
	if !u.Status.Valid() {
		return types.Order{}, fmt.Errorf("%w: unknown status %q", ErrStaleUpdate, u.Status)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[u.OrderID]
	if !ok {
		return types.Order{}, fmt.Errorf("%w: %s", ErrUnknownOrder, u.OrderID)
	}
	next := u.Status
	if next == types.OrderStatusCancelled && o.TradedVolume > 0 {
		next = types.OrderStatusPartiallyCancelled
	}
	if err := checkTransition(o.Status, next); err != nil {
		return *o, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = next
	if u.Message != "" {
		o.Message = u.Message
	}
	o.UpdateTime = updateTime(u.Time, p.now)
	return *o, nil
}

func checkTransition(cur, next types.OrderStatus) error {
	switch {
	case cur.IsTerminal():
		return fmt.Errorf("%w: %s is terminal", ErrStaleUpdate, cur)
	case cur == next:
		return fmt.Errorf("%w: duplicate %s", ErrStaleUpdate, next)
	case next.Rank() < cur.Rank():
		return fmt.Errorf("%w: %s -> %s regresses", ErrStaleUpdate, cur, next)
	case next == types.OrderStatusRejected && cur.Rank() > 1:
		return fmt.Errorf("%w: cannot reject a %s order", ErrStaleUpdate, cur)
	}
	return nil
}

// TradeResult carries the post-trade copies the engine forwards to strategies.
type TradeResult struct {
	Order         types.Order
	Position      types.Position
	StatusChanged bool
}

// ApplyTrade books a fill against its order and the matching position. Trades are
// applied at most once per trade id and never beyond the order's requested volume.
func (p *Panel) ApplyTrade(tr types.Trade) (TradeResult, error) {
	if tr.Volume <= 0 {
		return TradeResult{}, fmt.Errorf("%w: volume %d", ErrInvalidTrade, tr.Volume)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tr.TradeID != "" {
		if _, dup := p.tradeIDs[tr.TradeID]; dup {
			return TradeResult{}, fmt.Errorf("%w: %s", ErrDuplicateTrade, tr.TradeID)
		}
	}
	o, ok := p.orders[tr.OrderID]
	if !ok {
		return TradeResult{}, fmt.Errorf("%w: %s", ErrUnknownOrder, tr.OrderID)
	}
	if o.Status.IsTerminal() && !acceptsLateFill(o.Status) {
		return TradeResult{Order: *o}, fmt.Errorf("%w: trade %s for %s order %s",
			ErrStaleUpdate, tr.TradeID, o.Status, o.ID)
	}
	if o.TradedVolume+tr.Volume > o.Volume {
		return TradeResult{Order: *o}, fmt.Errorf("%w: trade %s overfills order %s (%d+%d>%d)",
			ErrStaleUpdate, tr.TradeID, o.ID, o.TradedVolume, tr.Volume, o.Volume)
	}
	if tr.TradeID != "" {
		p.tradeIDs[tr.TradeID] = struct{}{}
	}

	before := o.Status
	o.TradedVolume += tr.Volume
	switch {
	case o.TradedVolume == o.Volume:
		o.Status = types.OrderStatusFilled
	case o.Status == types.OrderStatusCancelled:
		o.Status = types.OrderStatusPartiallyCancelled
	case !o.Status.IsTerminal() && o.Status.Rank() < 2:
		o.Status = types.OrderStatusPartiallyFilled
	}
	o.UpdateTime = updateTime(tr.Time, p.now)

	if tr.Ticker == "" {
		tr.Ticker = o.Ticker
	}
	if tr.Direction == "" {
		tr.Direction = o.Direction
	}
	if tr.Offset == "" {
		tr.Offset = o.Offset
	}
	pos := p.applyPositionLocked(tr)
	return TradeResult{Order: *o, Position: pos, StatusChanged: before != o.Status}, nil
}

// acceptsLateFill reports whether a terminal order may still book a trade. Exchanges
// may report FILLED before the trade, or a cancel may race a fill. A rejected order
// never traded.
func acceptsLateFill(s types.OrderStatus) bool {
	switch s {
	case types.OrderStatusFilled, types.OrderStatusCancelled, types.OrderStatusPartiallyCancelled:
		return true
	}
	return false
}

// applyPositionLocked folds a trade into the aggregate positions. Opens add to the
// trade's side; closes reduce the opposite side at average cost, never below zero.
func (p *Panel) applyPositionLocked(tr types.Trade) types.Position {
	price := decimal.NewFromFloat(tr.Price)
	if !tr.Offset.IsClose() {
		key := types.PositionKey{Ticker: tr.Ticker, Direction: tr.Direction}
		pos := p.positionLocked(key)
		pos.Volume += tr.Volume
		pos.Cost = pos.Cost.Add(price.Mul(decimal.NewFromInt(int64(tr.Volume))))
		return *pos
	}
	key := types.PositionKey{Ticker: tr.Ticker, Direction: tr.Direction.Opposite()}
	pos := p.positionLocked(key)
	if pos.Volume <= 0 {
		return *pos
	}
	closed := min(tr.Volume, pos.Volume)
	avg := pos.AvgPrice()
	pos.Volume -= closed
	if pos.Volume == 0 {
		pos.Cost = decimal.Zero
	} else {
		pos.Cost = pos.Cost.Sub(avg.Mul(decimal.NewFromInt(int64(closed))))
	}
	return *pos
}

func (p *Panel) positionLocked(key types.PositionKey) *types.Position {
	pos, ok := p.positions[key]
	if !ok {
		pos = &types.Position{Ticker: key.Ticker, Direction: key.Direction, Cost: decimal.Zero}
		p.positions[key] = pos
	}
	return pos
}

// ReplacePositions swaps the whole position book for a synced snapshot. Keys held
// before but missing from the snapshot become flat. The returned slice lists every
// affected position, sorted by ticker then direction.
func (p *Panel) ReplacePositions(snapshot map[types.PositionKey]types.Position) []types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[types.PositionKey]*types.Position, len(snapshot))
	affected := make([]types.Position, 0, len(snapshot))
	for key, pos := range snapshot {
		pos.Ticker, pos.Direction = key.Ticker, key.Direction
		if pos.Volume < 0 {
			pos.Volume = 0
		}
		cp := pos
		next[key] = &cp
		affected = append(affected, cp)
	}
	for key, old := range p.positions {
		if _, ok := next[key]; ok || old.Volume == 0 {
			continue
		}
		flat := types.Position{Ticker: key.Ticker, Direction: key.Direction, Cost: decimal.Zero}
		next[key] = &flat
		affected = append(affected, flat)
	}
	p.positions = next
	sortPositions(affected)
	return affected
}

func (p *Panel) SetAccount(a types.Account) {
	p.mu.Lock()
	p.account = a
	p.hasAcct = true
	p.mu.Unlock()
}

func (p *Panel) Account() (types.Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.account, p.hasAcct
}

func (p *Panel) Order(id string) (types.Order, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.orders[id]
	if !ok {
		return types.Order{}, false
	}
	return *o, true
}

// Orders returns copies in submission order. An empty ticker matches every order.
func (p *Panel) Orders(ticker string) []types.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.Order, 0, len(p.orderSeq))
	for _, id := range p.orderSeq {
		o := p.orders[id]
		if ticker == "" || o.Ticker == ticker {
			out = append(out, *o)
		}
	}
	return out
}

func (p *Panel) OrderIDs(ticker string) []string {
	return p.collectIDs(ticker, false)
}

// OpenOrderIDs lists non-terminal orders at the instant of the call.
func (p *Panel) OpenOrderIDs(ticker string) []string {
	return p.collectIDs(ticker, true)
}

func (p *Panel) collectIDs(ticker string, openOnly bool) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0)
	for _, id := range p.orderSeq {
		o := p.orders[id]
		if ticker != "" && o.Ticker != ticker {
			continue
		}
		if openOnly && o.Status.IsTerminal() {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (p *Panel) OpenOrderCount(ticker string) int {
	return len(p.OpenOrderIDs(ticker))
}

// Position returns the aggregate for (ticker, direction), flat if never held.
func (p *Panel) Position(ticker string, dir types.Direction) types.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pos, ok := p.positions[types.PositionKey{Ticker: ticker, Direction: dir}]; ok {
		return *pos
	}
	return types.Position{Ticker: ticker, Direction: dir, Cost: decimal.Zero}
}

// Positions lists non-flat positions sorted by ticker then direction.
func (p *Panel) Positions() []types.Position {
	p.mu.RLock()
	out := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if pos.Volume > 0 {
			out = append(out, *pos)
		}
	}
	p.mu.RUnlock()
	sortPositions(out)
	return out
}

// PositionTickers lists tickers with at least one non-flat side.
func (p *Panel) PositionTickers() []string {
	p.mu.RLock()
	seen := make(map[string]struct{})
	for key, pos := range p.positions {
		if pos.Volume > 0 {
			seen[key.Ticker] = struct{}{}
		}
	}
	p.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func sortPositions(ps []types.Position) {
	slices.SortFunc(ps, func(a, b types.Position) int {
		if c := cmp.Compare(a.Ticker, b.Ticker); c != 0 {
			return c
		}
		return cmp.Compare(a.Direction, b.Direction)
	})
}

func updateTime(ts time.Time, now func() time.Time) time.Time {
	if ts.IsZero() {
		return now()
	}
	return ts
}
