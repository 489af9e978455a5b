package panel

import (
	"fmt"
	"testing"

	"algotrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(id, ticker string, dir types.Direction, off types.Offset, vol int) types.Order {
	return types.Order{
		ID:        id,
		Ticker:    ticker,
		Direction: dir,
		Offset:    off,
		Type:      types.OrderTypeLimit,
		Price:     100,
		Volume:    vol,
	}
}

func trade(id, orderID string, price float64, vol int) types.Trade {
	return types.Trade{TradeID: id, OrderID: orderID, Price: price, Volume: vol}
}

func TestInsertOrder(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 10)))
	err := p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 10))
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	o, ok := p.Order("o1")
	require.True(t, ok)
	assert.Equal(t, types.OrderStatusSubmitting, o.Status)
	assert.False(t, o.InsertTime.IsZero())
	assert.Equal(t, []string{"o1"}, p.OpenOrderIDs("X"))
}

func TestOrderStatusNeverRegresses(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 10)))

	steps := []struct {
		status types.OrderStatus
		stale  bool
	}{
		{types.OrderStatusAccepted, false},
		{types.OrderStatusSubmitting, true},
		{types.OrderStatusAccepted, true},
		{types.OrderStatusCancelling, false},
		{types.OrderStatusPartiallyFilled, false},
		{types.OrderStatusAccepted, true},
		{types.OrderStatusRejected, true},
		{types.OrderStatusCancelled, false},
		{types.OrderStatusFilled, true},
		{types.OrderStatusAccepted, true},
	}
	prevRank := 0
	for i, step := range steps {
		o, err := p.ApplyOrderUpdate(types.OrderUpdate{OrderID: "o1", Status: step.status})
		if step.stale {
			assert.ErrorIs(t, err, ErrStaleUpdate, "step %d", i)
		} else {
			assert.NoError(t, err, "step %d", i)
		}
		assert.GreaterOrEqual(t, o.Status.Rank(), prevRank, "step %d", i)
		prevRank = o.Status.Rank()
	}
	o, _ := p.Order("o1")
	assert.Equal(t, types.OrderStatusCancelled, o.Status)
	assert.Empty(t, p.OpenOrderIDs(""))
}

func TestOrderUpdateUnknown(t *testing.T) {
	p := New()
	_, err := p.ApplyOrderUpdate(types.OrderUpdate{OrderID: "nope", Status: types.OrderStatusAccepted})
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestCancelAfterPartialFillBecomesPartiallyCancelled(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 10)))
	_, err := p.ApplyTrade(trade("t1", "o1", 100, 4))
	require.NoError(t, err)
	o, err := p.ApplyOrderUpdate(types.OrderUpdate{OrderID: "o1", Status: types.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusPartiallyCancelled, o.Status)
}

func TestApplyTradeLifecycle(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 10)))
	_, err := p.ApplyOrderUpdate(types.OrderUpdate{OrderID: "o1", Status: types.OrderStatusAccepted})
	require.NoError(t, err)

	res, err := p.ApplyTrade(trade("t1", "o1", 100, 4))
	require.NoError(t, err)
	assert.True(t, res.StatusChanged)
	assert.Equal(t, types.OrderStatusPartiallyFilled, res.Order.Status)
	assert.Equal(t, 4, res.Order.TradedVolume)
	assert.Equal(t, 4, res.Position.Volume)

	_, err = p.ApplyTrade(trade("t1", "o1", 100, 4))
	assert.ErrorIs(t, err, ErrDuplicateTrade)

	res, err = p.ApplyTrade(trade("t2", "o1", 102, 6))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, res.Order.Status)
	assert.Equal(t, 10, res.Order.TradedVolume)

	pos := p.Position("X", types.DirectionBuy)
	assert.Equal(t, 10, pos.Volume)
	assert.True(t, pos.Cost.Equal(decimal.NewFromInt(1012)), pos.Cost.String())

	_, err = p.ApplyTrade(trade("t3", "o1", 100, 1))
	assert.ErrorIs(t, err, ErrStaleUpdate)
}

func TestTradeAfterFilledReport(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 5)))
	_, err := p.ApplyOrderUpdate(types.OrderUpdate{OrderID: "o1", Status: types.OrderStatusFilled})
	require.NoError(t, err)

	res, err := p.ApplyTrade(trade("t1", "o1", 100, 5))
	require.NoError(t, err)
	assert.False(t, res.StatusChanged)
	assert.Equal(t, types.OrderStatusFilled, res.Order.Status)
	assert.Equal(t, 5, res.Order.TradedVolume)
	assert.Equal(t, 5, p.Position("X", types.DirectionBuy).Volume)
}

func TestTradeForRejectedOrderIsStale(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 10)))
	_, err := p.MarkRejected("o1", "disconnected")
	require.NoError(t, err)

	_, err = p.ApplyTrade(trade("t1", "o1", 100, 10))
	assert.ErrorIs(t, err, ErrStaleUpdate)

	o, _ := p.Order("o1")
	assert.Equal(t, types.OrderStatusRejected, o.Status)
	assert.Equal(t, 0, o.TradedVolume)
	assert.Equal(t, 0, p.Position("X", types.DirectionBuy).Volume)
	assert.Empty(t, p.PositionTickers())

	// the trade id was not consumed
	_, err = p.ApplyTrade(trade("t1", "o1", 100, 10))
	assert.ErrorIs(t, err, ErrStaleUpdate)
}

func TestTradeRacingCancel(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 10)))
	_, err := p.ApplyOrderUpdate(types.OrderUpdate{OrderID: "o1", Status: types.OrderStatusCancelled})
	require.NoError(t, err)

	res, err := p.ApplyTrade(trade("t1", "o1", 100, 4))
	require.NoError(t, err)
	assert.True(t, res.StatusChanged)
	assert.Equal(t, types.OrderStatusPartiallyCancelled, res.Order.Status)
	assert.Equal(t, 4, res.Position.Volume)

	res, err = p.ApplyTrade(trade("t2", "o1", 100, 6))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, res.Order.Status)

	_, err = p.ApplyTrade(trade("t3", "o1", 100, 1))
	assert.ErrorIs(t, err, ErrStaleUpdate)
}

func TestCloseTradeReducesOppositeSide(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("open", "X", types.DirectionBuy, types.OffsetOpen, 10)))
	_, err := p.ApplyTrade(trade("t1", "open", 100, 10))
	require.NoError(t, err)

	require.NoError(t, p.InsertOrder(newOrder("close", "X", types.DirectionSell, types.OffsetCloseToday, 4)))
	res, err := p.ApplyTrade(trade("t2", "close", 110, 4))
	require.NoError(t, err)
	assert.Equal(t, types.DirectionBuy, res.Position.Direction)
	assert.Equal(t, 6, res.Position.Volume)
	assert.True(t, res.Position.Cost.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, 0, p.Position("X", types.DirectionSell).Volume)

	require.NoError(t, p.InsertOrder(newOrder("close2", "X", types.DirectionSell, types.OffsetClose, 10)))
	res, err = p.ApplyTrade(trade("t3", "close2", 110, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Position.Volume)
	assert.True(t, res.Position.Cost.IsZero())
	assert.Empty(t, p.PositionTickers())
}

func TestReplacePositions(t *testing.T) {
	p := New()
	for i, tk := range []string{"A", "B"} {
		id := fmt.Sprintf("o%d", i)
		require.NoError(t, p.InsertOrder(newOrder(id, tk, types.DirectionBuy, types.OffsetOpen, 3)))
		_, err := p.ApplyTrade(trade("t"+id, id, 10, 3))
		require.NoError(t, err)
	}

	affected := p.ReplacePositions(map[types.PositionKey]types.Position{
		{Ticker: "B", Direction: types.DirectionBuy}:  {Volume: 8, Cost: decimal.NewFromInt(80)},
		{Ticker: "C", Direction: types.DirectionSell}: {Volume: 2, Cost: decimal.NewFromInt(20)},
	})

	require.Len(t, affected, 3)
	assert.Equal(t, "A", affected[0].Ticker)
	assert.Equal(t, 0, affected[0].Volume)
	assert.Equal(t, 8, affected[1].Volume)
	assert.Equal(t, "C", affected[2].Ticker)

	assert.Equal(t, []string{"B", "C"}, p.PositionTickers())
	assert.Len(t, p.Positions(), 2)
}

func TestMarkRejected(t *testing.T) {
	p := New()
	require.NoError(t, p.InsertOrder(newOrder("o1", "X", types.DirectionBuy, types.OffsetOpen, 1)))
	o, err := p.MarkRejected("o1", "gateway down")
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusRejected, o.Status)
	assert.Equal(t, "gateway down", o.Message)

	_, err = p.MarkRejected("o1", "again")
	assert.ErrorIs(t, err, ErrStaleUpdate)
	assert.Equal(t, []string{"o1"}, p.OrderIDs("X"))
	assert.Empty(t, p.OpenOrderIDs("X"))
}

func TestAccount(t *testing.T) {
	p := New()
	_, ok := p.Account()
	assert.False(t, ok)
	p.SetAccount(types.Account{AccountID: "a", Balance: 10})
	p.SetAccount(types.Account{AccountID: "a", Balance: 20})
	a, ok := p.Account()
	assert.True(t, ok)
	assert.Equal(t, 20.0, a.Balance)
}
