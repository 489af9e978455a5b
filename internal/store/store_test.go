package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"algotrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func order(id, ticker string, status types.OrderStatus, update time.Time) types.Order {
	return types.Order{
		ID:         id,
		Ticker:     ticker,
		Direction:  types.DirectionBuy,
		Offset:     types.OffsetOpen,
		Type:       types.OrderTypeLimit,
		Price:      10,
		Volume:     3,
		Status:     status,
		InsertTime: update.Add(-time.Second),
		UpdateTime: update,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestSaveOrdersUpserts(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.SaveOrders(ctx, []types.Order{
		order("a", "X", types.OrderStatusAccepted, base),
		order("b", "Y", types.OrderStatusRejected, base.Add(time.Second)),
	}))
	filled := order("a", "X", types.OrderStatusFilled, base.Add(2*time.Second))
	filled.TradedVolume = 3
	require.NoError(t, s.SaveOrders(ctx, []types.Order{filled}))

	all, err := s.RecentOrders(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, types.OrderStatusFilled, all[0].Status)
	assert.Equal(t, 3, all[0].TradedVolume)
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), all[0].UpdateTime.UnixMilli())

	onlyY, err := s.RecentOrders(ctx, "Y", 10)
	require.NoError(t, err)
	require.Len(t, onlyY, 1)
	assert.Equal(t, types.OrderStatusRejected, onlyY[0].Status)
}

func TestSaveTradesIgnoresDuplicates(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	tr := types.Trade{TradeID: "t1", OrderID: "a", Ticker: "X", Direction: types.DirectionSell, Offset: types.OffsetClose, Price: 5, Volume: 1, Time: time.UnixMilli(1000)}
	require.NoError(t, s.SaveTrades(ctx, []types.Trade{tr}))
	require.NoError(t, s.SaveTrades(ctx, []types.Trade{tr}))

	got, err := s.RecentTrades(ctx, "X", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tr.Offset, got[0].Offset)
	assert.Equal(t, int64(1000), got[0].Time.UnixMilli())
}

func TestRecorderBatchesAndFlushesOnClose(t *testing.T) {
	s := openTemp(t)
	r := NewRecorder(s, 1000, time.Hour)
	base := time.UnixMilli(1_700_000_000_000)

	r.RecordOrder(order("a", "X", types.OrderStatusPartiallyCancelled, base))
	r.RecordOrder(order("a", "X", types.OrderStatusPartiallyCancelled, base.Add(time.Second)))
	r.RecordTrade(types.Trade{OrderID: "a", Ticker: "X", Price: 10, Volume: 1, Time: base})
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	r.RecordOrder(order("late", "X", types.OrderStatusFilled, base))

	ctx := context.Background()
	orders, err := s.RecentOrders(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, base.Add(time.Second).UnixMilli(), orders[0].UpdateTime.UnixMilli())

	trades, err := s.RecentTrades(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.NotEmpty(t, trades[0].TradeID)
}

func TestRecorderFlushesOnBatchSize(t *testing.T) {
	s := openTemp(t)
	r := NewRecorder(s, 2, time.Hour)
	t.Cleanup(func() { _ = r.Close() })
	base := time.UnixMilli(1_700_000_000_000)
	r.RecordOrder(order("a", "X", types.OrderStatusFilled, base))
	r.RecordOrder(order("b", "X", types.OrderStatusFilled, base))

	require.Eventually(t, func() bool {
		orders, err := s.RecentOrders(context.Background(), "X", 0)
		return err == nil && len(orders) == 2
	}, 3*time.Second, 10*time.Millisecond)
}
