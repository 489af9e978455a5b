package engine

import (
	"algotrade/internal/bus"
	"algotrade/internal/strategy"
	"algotrade/internal/types"
)

const (
	EvTick             bus.EventType = "TICK"
	EvOrder            bus.EventType = "ORDER"
	EvTrade            bus.EventType = "TRADE"
	EvPosition         bus.EventType = "POSITION"
	EvPositionSyncDone bus.EventType = "POSITION_SYNC_DONE"
	EvAccount          bus.EventType = "ACCOUNT"
	EvSync             bus.EventType = "SYNC"
	EvMountStrategy    bus.EventType = "MOUNT_STRATEGY"
	EvUnmountStrategy  bus.EventType = "UNMOUNT_STRATEGY"
)

var allEventTypes = []bus.EventType{
	EvTick, EvOrder, EvTrade, EvPosition, EvPositionSyncDone,
	EvAccount, EvSync, EvMountStrategy, EvUnmountStrategy,
}

// event is the closed set of payloads the engine posts to its bus.
type event interface {
	bus.Event
	engineEvent()
}

type tickEvent struct{ tick types.Tick }
type orderEvent struct{ update types.OrderUpdate }
type tradeEvent struct{ trade types.Trade }
type positionEvent struct{ record types.PositionRecord }
type syncDoneEvent struct{}
type accountEvent struct{ account types.Account }
type syncEvent struct{}

type mountEvent struct {
	ticker string
	s      strategy.Strategy
}

type unmountEvent struct{ s strategy.Strategy }

func (tickEvent) Type() bus.EventType     { return EvTick }
func (orderEvent) Type() bus.EventType    { return EvOrder }
func (tradeEvent) Type() bus.EventType    { return EvTrade }
func (positionEvent) Type() bus.EventType { return EvPosition }
func (syncDoneEvent) Type() bus.EventType { return EvPositionSyncDone }
func (accountEvent) Type() bus.EventType  { return EvAccount }
func (syncEvent) Type() bus.EventType     { return EvSync }
func (mountEvent) Type() bus.EventType    { return EvMountStrategy }
func (unmountEvent) Type() bus.EventType  { return EvUnmountStrategy }

func (tickEvent) engineEvent()     {}
func (orderEvent) engineEvent()    {}
func (tradeEvent) engineEvent()    {}
func (positionEvent) engineEvent() {}
func (syncDoneEvent) engineEvent() {}
func (accountEvent) engineEvent()  {}
func (syncEvent) engineEvent()     {}
func (mountEvent) engineEvent()    {}
func (unmountEvent) engineEvent()  {}
