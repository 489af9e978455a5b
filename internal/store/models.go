package store

import (
	"time"

	"algotrade/internal/types"

	"gorm.io/datatypes"
)

// OrderModel maps to 'order_history'. One row per order id, overwritten as the order
// reaches later states.
type OrderModel struct {
	ID           int64          `gorm:"column:id;primaryKey"`
	OrderID      string         `gorm:"column:order_id;uniqueIndex"`
	Ticker       string         `gorm:"column:ticker;index"`
	Direction    string         `gorm:"column:direction"`
	Offset       string         `gorm:"column:offset_flag"`
	OrderType    string         `gorm:"column:order_type"`
	Price        float64        `gorm:"column:price"`
	Volume       int            `gorm:"column:volume"`
	TradedVolume int            `gorm:"column:traded_volume"`
	Status       string         `gorm:"column:status"`
	Message      string         `gorm:"column:message"`
	InsertTime   int64          `gorm:"column:insert_time"`
	UpdateTime   int64          `gorm:"column:update_time;index"`
	Raw          datatypes.JSON `gorm:"column:raw;type:TEXT"`
}

func (OrderModel) TableName() string { return "order_history" }

// TradeModel maps to 'trade_history'.
type TradeModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	TradeID   string  `gorm:"column:trade_id;uniqueIndex"`
	OrderID   string  `gorm:"column:order_id;index"`
	Ticker    string  `gorm:"column:ticker;index"`
	Direction string  `gorm:"column:direction"`
	Offset    string  `gorm:"column:offset_flag"`
	Price     float64 `gorm:"column:price"`
	Volume    int     `gorm:"column:volume"`
	TradeTime int64   `gorm:"column:trade_time;index"`
}

func (TradeModel) TableName() string { return "trade_history" }

func newOrderModel(o types.Order) OrderModel {
	return OrderModel{
		OrderID:      o.ID,
		Ticker:       o.Ticker,
		Direction:    string(o.Direction),
		Offset:       string(o.Offset),
		OrderType:    string(o.Type),
		Price:        o.Price,
		Volume:       o.Volume,
		TradedVolume: o.TradedVolume,
		Status:       string(o.Status),
		Message:      o.Message,
		InsertTime:   unixMilli(o.InsertTime),
		UpdateTime:   unixMilli(o.UpdateTime),
		Raw:          datatypes.JSON(mustJSONBytes(o)),
	}
}

func (m OrderModel) toOrder() types.Order {
	return types.Order{
		ID:           m.OrderID,
		Ticker:       m.Ticker,
		Direction:    types.Direction(m.Direction),
		Offset:       types.Offset(m.Offset),
		Type:         types.OrderType(m.OrderType),
		Price:        m.Price,
		Volume:       m.Volume,
		TradedVolume: m.TradedVolume,
		Status:       types.OrderStatus(m.Status),
		Message:      m.Message,
		InsertTime:   fromUnixMilli(m.InsertTime),
		UpdateTime:   fromUnixMilli(m.UpdateTime),
	}
}

func newTradeModel(t types.Trade) TradeModel {
	return TradeModel{
		TradeID:   t.TradeID,
		OrderID:   t.OrderID,
		Ticker:    t.Ticker,
		Direction: string(t.Direction),
		Offset:    string(t.Offset),
		Price:     t.Price,
		Volume:    t.Volume,
		TradeTime: unixMilli(t.Time),
	}
}

func (m TradeModel) toTrade() types.Trade {
	return types.Trade{
		TradeID:   m.TradeID,
		OrderID:   m.OrderID,
		Ticker:    m.Ticker,
		Direction: types.Direction(m.Direction),
		Offset:    types.Offset(m.Offset),
		Price:     m.Price,
		Volume:    m.Volume,
		Time:      fromUnixMilli(m.TradeTime),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
