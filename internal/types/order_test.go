package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatusRank(t *testing.T) {
	cases := []struct {
		status   OrderStatus
		rank     int
		terminal bool
	}{
		{OrderStatusSubmitting, 0, false},
		{OrderStatusAccepted, 1, false},
		{OrderStatusPartiallyFilled, 2, false},
		{OrderStatusCancelling, 2, false},
		{OrderStatusFilled, 3, true},
		{OrderStatusCancelled, 3, true},
		{OrderStatusPartiallyCancelled, 3, true},
		{OrderStatusRejected, 3, true},
		{OrderStatus("BOGUS"), -1, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.rank, tc.status.Rank())
			assert.Equal(t, tc.terminal, tc.status.IsTerminal())
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	s, ok := ParseOrderStatus(" filled ")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusFilled, s)

	_, ok = ParseOrderStatus("nope")
	assert.False(t, ok)
}

func TestOffsetAndDirection(t *testing.T) {
	assert.True(t, OffsetCloseToday.IsClose())
	assert.True(t, OffsetCloseYesterday.IsClose())
	assert.False(t, OffsetOpen.IsClose())
	assert.Equal(t, DirectionSell, DirectionBuy.Opposite())
	assert.Equal(t, DirectionBuy, DirectionSell.Opposite())
	assert.False(t, Direction("HOLD").Valid())
	assert.False(t, OrderTypeMarket.NeedsPrice())
	assert.True(t, OrderTypeFAK.NeedsPrice())
}

func TestOrderRemaining(t *testing.T) {
	o := Order{Volume: 10, TradedVolume: 4}
	assert.Equal(t, 6, o.Remaining())
	o.TradedVolume = 12
	assert.Equal(t, 0, o.Remaining())
}

func TestPositionAvgPrice(t *testing.T) {
	p := Position{Ticker: "X", Direction: DirectionBuy, Volume: 4, Cost: decimal.NewFromInt(410)}
	assert.True(t, p.AvgPrice().Equal(decimal.RequireFromString("102.5")))
	assert.Equal(t, "X.BUY", p.Key().String())

	flat := Position{Ticker: "X", Direction: DirectionBuy}
	assert.True(t, flat.AvgPrice().IsZero())
	assert.True(t, flat.IsFlat())
}
