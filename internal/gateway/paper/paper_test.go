package paper

import (
	"context"
	"sync"
	"testing"
	"time"

	"algotrade/internal/gateway"
	"algotrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects callbacks in arrival order.
type recorder struct {
	mu       sync.Mutex
	ticks    []types.Tick
	orders   []types.OrderUpdate
	trades   []types.Trade
	lots     []types.PositionRecord
	syncDone int
	accounts []types.Account
	seq      []string
}

func (r *recorder) add(kind string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
	r.seq = append(r.seq, kind)
}

func (r *recorder) OnTick(t types.Tick) { r.add("tick", func() { r.ticks = append(r.ticks, t) }) }
func (r *recorder) OnOrder(u types.OrderUpdate) {
	r.add("order:"+string(u.Status), func() { r.orders = append(r.orders, u) })
}
func (r *recorder) OnTrade(t types.Trade) { r.add("trade", func() { r.trades = append(r.trades, t) }) }
func (r *recorder) OnPosition(p types.PositionRecord) {
	r.add("position", func() { r.lots = append(r.lots, p) })
}
func (r *recorder) OnPositionSyncDone() { r.add("sync_done", func() { r.syncDone++ }) }
func (r *recorder) OnAccount(a types.Account) {
	r.add("account", func() { r.accounts = append(r.accounts, a) })
}

func newLoggedIn(t *testing.T, cfg Config) (*Gateway, *recorder) {
	t.Helper()
	g := New(cfg)
	rec := &recorder{}
	g.Register(rec)
	require.NoError(t, g.Login(context.Background(), gateway.LoginParams{Account: "a", Tickers: []string{"X"}}))
	t.Cleanup(func() { _ = g.Close() })
	return g, rec
}

func flush(t *testing.T, g *Gateway) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Flush(ctx))
}

func limitReq(id string, dir types.Direction, off types.Offset, price float64, vol int) types.OrderRequest {
	return types.OrderRequest{OrderID: id, Ticker: "X", Direction: dir, Offset: off, Type: types.OrderTypeLimit, Price: price, Volume: vol}
}

func TestCommandsRequireLogin(t *testing.T) {
	g := New(Config{})
	defer g.Close()
	ctx := context.Background()
	assert.ErrorIs(t, g.SendOrder(ctx, limitReq("o1", types.DirectionBuy, types.OffsetOpen, 1, 1)), gateway.ErrNotLoggedIn)
	assert.ErrorIs(t, g.QueryPositions(ctx), gateway.ErrNotLoggedIn)

	g.Disconnect()
	assert.ErrorIs(t, g.Login(ctx, gateway.LoginParams{}), gateway.ErrDisconnected)
	g.Reconnect()
	assert.NoError(t, g.Login(ctx, gateway.LoginParams{}))
}

func TestLimitOrderRestsThenFillsOnTick(t *testing.T) {
	g, rec := newLoggedIn(t, Config{Account: "a", InitialBalance: 1000})
	ctx := context.Background()

	g.PublishTick(types.Tick{Ticker: "X", LastPrice: 101})
	require.NoError(t, g.SendOrder(ctx, limitReq("o1", types.DirectionBuy, types.OffsetOpen, 100, 10)))
	flush(t, g)
	assert.Empty(t, rec.trades)

	g.PublishTick(types.Tick{Ticker: "X", LastPrice: 99.5, AskPrice: 99.8, BidPrice: 99.2})
	flush(t, g)

	require.Len(t, rec.trades, 1)
	assert.Equal(t, 10, rec.trades[0].Volume)
	assert.Equal(t, 100.0, rec.trades[0].Price)
	assert.Equal(t, []string{"tick", "order:ACCEPTED", "tick", "order:FILLED", "trade"}, rec.seq)
}

func TestMarketOrderFillsAtLastPrice(t *testing.T) {
	g, rec := newLoggedIn(t, Config{})
	ctx := context.Background()

	req := types.OrderRequest{OrderID: "m0", Ticker: "X", Direction: types.DirectionBuy, Offset: types.OffsetOpen, Type: types.OrderTypeMarket, Volume: 2}
	require.NoError(t, g.SendOrder(ctx, req))
	g.PublishTick(types.Tick{Ticker: "X", LastPrice: 50})
	req.OrderID = "m1"
	require.NoError(t, g.SendOrder(ctx, req))
	flush(t, g)

	require.Len(t, rec.trades, 1)
	assert.Equal(t, "m1", rec.trades[0].OrderID)
	assert.Equal(t, 50.0, rec.trades[0].Price)
	assert.Equal(t, types.OrderStatusCancelled, rec.orders[1].Status)
}

func TestFAKCancelledWhenNotMarketable(t *testing.T) {
	g, rec := newLoggedIn(t, Config{})
	g.PublishTick(types.Tick{Ticker: "X", LastPrice: 100})
	req := limitReq("f1", types.DirectionBuy, types.OffsetOpen, 90, 1)
	req.Type = types.OrderTypeFAK
	require.NoError(t, g.SendOrder(context.Background(), req))
	flush(t, g)
	require.Len(t, rec.orders, 2)
	assert.Equal(t, types.OrderStatusCancelled, rec.orders[1].Status)
}

func TestCancelOrder(t *testing.T) {
	g, rec := newLoggedIn(t, Config{})
	ctx := context.Background()
	require.NoError(t, g.SendOrder(ctx, limitReq("o1", types.DirectionBuy, types.OffsetOpen, 10, 1)))
	require.NoError(t, g.CancelOrder(ctx, gateway.CancelRequest{OrderID: "o1", Ticker: "X"}))
	assert.ErrorIs(t, g.CancelOrder(ctx, gateway.CancelRequest{OrderID: "o1"}), gateway.ErrRejected)
	flush(t, g)
	assert.Equal(t, []string{"order:ACCEPTED", "order:CANCELLING", "order:CANCELLED"}, rec.seq)
}

func TestQueryPositionsReportsLotsThenDone(t *testing.T) {
	g, rec := newLoggedIn(t, Config{Lots: []types.PositionRecord{
		{Ticker: "X", Direction: types.DirectionBuy, Volume: 5, Price: 10},
		{Ticker: "X", Direction: types.DirectionBuy, Volume: 3, Price: 11},
	}})
	require.NoError(t, g.QueryPositions(context.Background()))
	require.NoError(t, g.QueryAccount(context.Background()))
	flush(t, g)
	assert.Equal(t, []string{"position", "position", "sync_done", "account"}, rec.seq)
	assert.Equal(t, 83.0, rec.accounts[0].Margin)
}

func TestCloseRealizesProfit(t *testing.T) {
	g, rec := newLoggedIn(t, Config{InitialBalance: 1000, Lots: []types.PositionRecord{
		{Ticker: "X", Direction: types.DirectionBuy, Volume: 5, Price: 10},
	}})
	ctx := context.Background()
	g.PublishTick(types.Tick{Ticker: "X", LastPrice: 12})
	req := types.OrderRequest{OrderID: "c1", Ticker: "X", Direction: types.DirectionSell, Offset: types.OffsetCloseToday, Type: types.OrderTypeMarket, Volume: 2}
	require.NoError(t, g.SendOrder(ctx, req))
	require.NoError(t, g.QueryPositions(ctx))
	require.NoError(t, g.QueryAccount(ctx))
	flush(t, g)

	require.Len(t, rec.lots, 1)
	assert.Equal(t, 3, rec.lots[0].Volume)
	assert.Equal(t, 1004.0, rec.accounts[0].Balance)
}

func TestThrottle(t *testing.T) {
	g, _ := newLoggedIn(t, Config{OrdersPerSecond: 0.001})
	ctx := context.Background()
	require.NoError(t, g.SendOrder(ctx, limitReq("o1", types.DirectionBuy, types.OffsetOpen, 1, 1)))
	assert.ErrorIs(t, g.SendOrder(ctx, limitReq("o2", types.DirectionBuy, types.OffsetOpen, 1, 1)), gateway.ErrThrottled)
}

func TestFeedPublishes(t *testing.T) {
	g, rec := newLoggedIn(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{Gateway: g, Tickers: []string{"X", "Y"}, Interval: 5 * time.Millisecond, Seed: 7}
	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.ticks) >= 4
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
