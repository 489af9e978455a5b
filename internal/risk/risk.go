// Package risk gates every order before it reaches a gateway.
package risk

import (
	"fmt"

	"algotrade/internal/types"
)

type Action int

const (
	ActionApprove Action = iota
	ActionReject
	ActionAdjust
)

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionAdjust:
		return "adjust"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

type Reason string

const (
	ReasonNone           Reason = ""
	ReasonKillSwitch     Reason = "kill_switch"
	ReasonRateLimit      Reason = "rate_limit"
	ReasonMaxVolume      Reason = "max_order_volume"
	ReasonMaxNotional    Reason = "max_order_notional"
	ReasonPositionLimit  Reason = "max_position_volume"
	ReasonOpenOrders     Reason = "max_open_orders"
	ReasonNothingToClose Reason = "nothing_to_close"
)

// Proposal is an order as a strategy asked for it, before any id is assigned.
type Proposal struct {
	Ticker    string
	Direction types.Direction
	Offset    types.Offset
	Type      types.OrderType
	Price     float64
	Volume    int
}

// Decision is the manager's verdict. Volume and Price are only meaningful for Adjust.
type Decision struct {
	Action  Action
	Reason  Reason
	Message string
	Volume  int
	Price   float64
}

func Approve() Decision {
	return Decision{Action: ActionApprove}
}

func Reject(reason Reason, format string, args ...any) Decision {
	return Decision{Action: ActionReject, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func Adjust(reason Reason, volume int, price float64) Decision {
	return Decision{Action: ActionAdjust, Reason: reason, Volume: volume, Price: price}
}

func (d Decision) String() string {
	if d.Action == ActionAdjust {
		return fmt.Sprintf("%s(%s vol=%d price=%g)", d.Action, d.Reason, d.Volume, d.Price)
	}
	if d.Reason == ReasonNone {
		return d.Action.String()
	}
	return fmt.Sprintf("%s(%s: %s)", d.Action, d.Reason, d.Message)
}

// View is the read-only slice of trading state a manager may consult.
type View interface {
	Position(ticker string, dir types.Direction) types.Position
	OpenOrderCount(ticker string) int
	Account() (types.Account, bool)
}

type Manager interface {
	Check(p Proposal, view View) Decision
}

// ManagerFunc adapts a plain function to Manager.
type ManagerFunc func(Proposal, View) Decision

func (f ManagerFunc) Check(p Proposal, view View) Decision {
	return f(p, view)
}

// AllowAll approves everything.
var AllowAll Manager = ManagerFunc(func(Proposal, View) Decision { return Approve() })
