package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionKey identifies an aggregated position.
type PositionKey struct {
	Ticker    string
	Direction Direction
}

func (k PositionKey) String() string {
	return k.Ticker + "." + string(k.Direction)
}

// Position is the aggregate holding for one (ticker, direction).
type Position struct {
	Ticker    string          `json:"ticker"`
	Direction Direction       `json:"direction"`
	Volume    int             `json:"volume"`
	Cost      decimal.Decimal `json:"cost"`
}

func (p Position) Key() PositionKey {
	return PositionKey{Ticker: p.Ticker, Direction: p.Direction}
}

// AvgPrice is cost divided by volume, zero when flat.
func (p Position) AvgPrice() decimal.Decimal {
	if p.Volume <= 0 {
		return decimal.Zero
	}
	return p.Cost.Div(decimal.NewFromInt(int64(p.Volume)))
}

func (p Position) IsFlat() bool {
	return p.Volume <= 0
}

// PositionRecord is one raw lot as reported by a gateway during position sync.
type PositionRecord struct {
	Ticker    string    `json:"ticker"`
	Direction Direction `json:"direction"`
	Volume    int       `json:"volume"`
	Price     float64   `json:"price"`
	OpenDate  time.Time `json:"open_date"`
}

type Account struct {
	AccountID    string    `json:"account_id"`
	Balance      float64   `json:"balance"`
	Available    float64   `json:"available"`
	Margin       float64   `json:"margin"`
	FrozenMargin float64   `json:"frozen_margin"`
	Commission   float64   `json:"commission"`
	UpdateTime   time.Time `json:"update_time"`
}

type Tick struct {
	Ticker    string    `json:"ticker"`
	Time      time.Time `json:"time"`
	LastPrice float64   `json:"last_price"`
	Volume    int64     `json:"volume"`
	BidPrice  float64   `json:"bid_price"`
	AskPrice  float64   `json:"ask_price"`
	BidVolume int64     `json:"bid_volume"`
	AskVolume int64     `json:"ask_volume"`
}
