package engine

import (
	"algotrade/internal/gateway"
	"algotrade/internal/logger"
	"algotrade/internal/types"
)

// gatewayCallbacks turns gateway reports into bus events. It runs on gateway
// goroutines and never touches engine state directly.
type gatewayCallbacks struct {
	e *Engine
}

func (c gatewayCallbacks) post(evt event) {
	if err := c.e.bus.Post(evt); err != nil {
		logger.Debugf("engine: dropped %s after close", evt.Type())
	}
}

func (c gatewayCallbacks) OnTick(t types.Tick)               { c.post(tickEvent{tick: t}) }
func (c gatewayCallbacks) OnOrder(u types.OrderUpdate)       { c.post(orderEvent{update: u}) }
func (c gatewayCallbacks) OnTrade(t types.Trade)             { c.post(tradeEvent{trade: t}) }
func (c gatewayCallbacks) OnPosition(r types.PositionRecord) { c.post(positionEvent{record: r}) }
func (c gatewayCallbacks) OnPositionSyncDone()               { c.post(syncDoneEvent{}) }
func (c gatewayCallbacks) OnAccount(a types.Account)         { c.post(accountEvent{account: a}) }

var _ gateway.Callbacks = gatewayCallbacks{}
