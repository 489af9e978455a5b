// Package gateway defines the boundary between the engine and an exchange connection.
// Commands flow through API; everything the exchange reports flows back through
// Callbacks, possibly on goroutines owned by the adapter.
package gateway

import (
	"context"
	"errors"

	"algotrade/internal/types"
)

var (
	ErrDisconnected = errors.New("gateway disconnected")
	ErrNotLoggedIn  = errors.New("gateway not logged in")
	ErrThrottled    = errors.New("gateway flow control")
	ErrRejected     = errors.New("gateway rejected request")
)

type LoginParams struct {
	Broker  string
	Account string
	Tickers []string
}

type CancelRequest struct {
	OrderID string
	Ticker  string
}

// API is the command side of an exchange adapter. A nil error means the request was
// accepted for processing; results arrive later through Callbacks.
type API interface {
	Name() string
	// Register installs the callback sink. It must be called before Login.
	Register(cb Callbacks)
	Login(ctx context.Context, params LoginParams) error
	SendOrder(ctx context.Context, req types.OrderRequest) error
	CancelOrder(ctx context.Context, req CancelRequest) error
	// QueryPositions reports every lot through OnPosition, then calls OnPositionSyncDone once.
	QueryPositions(ctx context.Context) error
	QueryAccount(ctx context.Context) error
	Close() error
}

// Callbacks receive exchange reports. Implementations must not block for long.
type Callbacks interface {
	OnTick(t types.Tick)
	OnOrder(u types.OrderUpdate)
	OnTrade(t types.Trade)
	OnPosition(r types.PositionRecord)
	OnPositionSyncDone()
	OnAccount(a types.Account)
}

// NopCallbacks discards every report.
type NopCallbacks struct{}

func (NopCallbacks) OnTick(types.Tick)               {}
func (NopCallbacks) OnOrder(types.OrderUpdate)       {}
func (NopCallbacks) OnTrade(types.Trade)             {}
func (NopCallbacks) OnPosition(types.PositionRecord) {}
func (NopCallbacks) OnPositionSyncDone()             {}
func (NopCallbacks) OnAccount(types.Account)         {}
