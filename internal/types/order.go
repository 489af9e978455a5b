package types

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the side a closing order of this direction reduces.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

type Offset string

const (
	OffsetOpen           Offset = "OPEN"
	OffsetClose          Offset = "CLOSE"
	OffsetCloseToday     Offset = "CLOSE_TODAY"
	OffsetCloseYesterday Offset = "CLOSE_YESTERDAY"
)

func (o Offset) IsClose() bool {
	return o == OffsetClose || o == OffsetCloseToday || o == OffsetCloseYesterday
}

func (o Offset) Valid() bool {
	return o == OffsetOpen || o.IsClose()
}

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeFAK    OrderType = "FAK"
	OrderTypeFOK    OrderType = "FOK"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimit, OrderTypeMarket, OrderTypeFAK, OrderTypeFOK:
		return true
	}
	return false
}

// NeedsPrice reports whether orders of this type carry a limit price.
func (t OrderType) NeedsPrice() bool {
	return t != OrderTypeMarket
}

type OrderStatus string

const (
	OrderStatusSubmitting         OrderStatus = "SUBMITTING"
	OrderStatusAccepted           OrderStatus = "ACCEPTED"
	OrderStatusPartiallyFilled    OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCancelling         OrderStatus = "CANCELLING"
	OrderStatusFilled             OrderStatus = "FILLED"
	OrderStatusCancelled          OrderStatus = "CANCELLED"
	OrderStatusPartiallyCancelled OrderStatus = "PARTIALLY_CANCELLED"
	OrderStatusRejected           OrderStatus = "REJECTED"
)

// Rank orders statuses along the lifecycle. A status never moves to a lower rank.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderStatusSubmitting:
		return 0
	case OrderStatusAccepted:
		return 1
	case OrderStatusPartiallyFilled, OrderStatusCancelling:
		return 2
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusPartiallyCancelled, OrderStatusRejected:
		return 3
	}
	return -1
}

func (s OrderStatus) IsTerminal() bool {
	return s.Rank() == 3
}

func (s OrderStatus) Valid() bool {
	return s.Rank() >= 0
}

// ParseOrderStatus accepts the canonical names case-insensitively.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

type Order struct {
	ID           string      `json:"id"`
	Ticker       string      `json:"ticker"`
	Direction    Direction   `json:"direction"`
	Offset       Offset      `json:"offset"`
	Type         OrderType   `json:"type"`
	Price        float64     `json:"price"`
	Volume       int         `json:"volume"`
	TradedVolume int         `json:"traded_volume"`
	Status       OrderStatus `json:"status"`
	Message      string      `json:"message,omitempty"`
	InsertTime   time.Time   `json:"insert_time"`
	UpdateTime   time.Time   `json:"update_time"`
}

func (o Order) Remaining() int {
	if o.TradedVolume >= o.Volume {
		return 0
	}
	return o.Volume - o.TradedVolume
}

func (o Order) IsOpen() bool {
	return !o.Status.IsTerminal()
}

// OrderRequest is what the engine hands to a gateway after risk approval.
type OrderRequest struct {
	OrderID   string
	Ticker    string
	Direction Direction
	Offset    Offset
	Type      OrderType
	Price     float64
	Volume    int
}

// OrderUpdate is a gateway status report for an order.
type OrderUpdate struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message,omitempty"`
	Time    time.Time   `json:"time"`
}

type Trade struct {
	TradeID   string    `json:"trade_id"`
	OrderID   string    `json:"order_id"`
	Ticker    string    `json:"ticker"`
	Direction Direction `json:"direction"`
	Offset    Offset    `json:"offset"`
	Price     float64   `json:"price"`
	Volume    int       `json:"volume"`
	Time      time.Time `json:"time"`
}
