package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"algotrade/internal/gateway"
	"algotrade/internal/logger"
	"algotrade/internal/risk"
	"algotrade/internal/types"

	"github.com/google/uuid"
)

func (e *Engine) BuyOpen(ticker string, volume int, typ types.OrderType, price float64) (string, error) {
	return e.SendOrder(ticker, volume, types.DirectionBuy, types.OffsetOpen, typ, price)
}

func (e *Engine) SellOpen(ticker string, volume int, typ types.OrderType, price float64) (string, error) {
	return e.SendOrder(ticker, volume, types.DirectionSell, types.OffsetOpen, typ, price)
}

// BuyClose buys back a short position opened today.
func (e *Engine) BuyClose(ticker string, volume int, typ types.OrderType, price float64) (string, error) {
	return e.SendOrder(ticker, volume, types.DirectionBuy, types.OffsetCloseToday, typ, price)
}

// SellClose sells out a long position opened today.
func (e *Engine) SellClose(ticker string, volume int, typ types.OrderType, price float64) (string, error) {
	return e.SendOrder(ticker, volume, types.DirectionSell, types.OffsetCloseToday, typ, price)
}

// SendOrder validates, risk-checks and submits an order. On success it returns the
// new order id; the order is already in the panel as SUBMITTING and later status
// changes arrive through strategy callbacks. On failure the id is empty and the
// error wraps one of the package sentinels.
func (e *Engine) SendOrder(ticker string, volume int, dir types.Direction, offset types.Offset, typ types.OrderType, price float64) (string, error) {
	switch {
	case e.closed.Load():
		return "", ErrClosed
	case !e.loggedIn.Load():
		return "", ErrNotLoggedIn
	case !e.synced.Load():
		return "", ErrNotSynced
	}
	ticker = strings.TrimSpace(ticker)
	if err := validateOrder(ticker, volume, dir, offset, typ, price); err != nil {
		return "", err
	}
	if !typ.NeedsPrice() {
		price = 0
	}

	decision := e.risk.Check(risk.Proposal{
		Ticker:    ticker,
		Direction: dir,
		Offset:    offset,
		Type:      typ,
		Price:     price,
		Volume:    volume,
	}, e.panel)
	switch decision.Action {
	case risk.ActionReject:
		logger.Infof("engine: risk rejected %s %s %s x%d: %s", ticker, dir, offset, volume, decision)
		return "", fmt.Errorf("%w: %s", ErrRiskRejected, decision)
	case risk.ActionAdjust:
		if decision.Volume <= 0 {
			return "", fmt.Errorf("%w: adjusted to nothing (%s)", ErrRiskRejected, decision)
		}
		logger.Infof("engine: risk adjusted %s %s x%d -> x%d (%s)", ticker, dir, volume, decision.Volume, decision.Reason)
		volume = decision.Volume
		if typ.NeedsPrice() && decision.Price > 0 {
			price = decision.Price
		}
	}

	if err := e.breaker.Allow(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAdapterRejected, err)
	}
	order := types.Order{
		ID:         uuid.NewString(),
		Ticker:     ticker,
		Direction:  dir,
		Offset:     offset,
		Type:       typ,
		Price:      price,
		Volume:     volume,
		Status:     types.OrderStatusSubmitting,
		InsertTime: time.Now(),
	}
	if err := e.panel.InsertOrder(order); err != nil {
		return "", err
	}
	err := e.api.SendOrder(e.ctx, types.OrderRequest{
		OrderID:   order.ID,
		Ticker:    order.Ticker,
		Direction: order.Direction,
		Offset:    order.Offset,
		Type:      order.Type,
		Price:     order.Price,
		Volume:    order.Volume,
	})
	if err != nil {
		e.breaker.RecordFailure()
		rejected, markErr := e.panel.MarkRejected(order.ID, err.Error())
		if markErr == nil && e.recorder != nil {
			e.recorder.RecordOrder(rejected)
		}
		logger.Warnf("engine: gateway refused order %s: %v", order.ID, err)
		return "", fmt.Errorf("%w: %w", ErrAdapterRejected, err)
	}
	e.breaker.RecordSuccess()
	logger.Debugf("engine: submitted %s %s %s %s x%d @ %g", order.ID, ticker, dir, offset, volume, price)
	return order.ID, nil
}

func validateOrder(ticker string, volume int, dir types.Direction, offset types.Offset, typ types.OrderType, price float64) error {
	switch {
	case ticker == "":
		return fmt.Errorf("%w: empty ticker", ErrInvalidOrder)
	case volume <= 0:
		return fmt.Errorf("%w: volume %d", ErrInvalidOrder, volume)
	case !dir.Valid():
		return fmt.Errorf("%w: direction %q", ErrInvalidOrder, dir)
	case !offset.Valid():
		return fmt.Errorf("%w: offset %q", ErrInvalidOrder, offset)
	case !typ.Valid():
		return fmt.Errorf("%w: order type %q", ErrInvalidOrder, typ)
	case typ.NeedsPrice() && price <= 0:
		return fmt.Errorf("%w: %s order needs a positive price", ErrInvalidOrder, typ)
	}
	return nil
}

// CancelOrder asks the gateway to cancel an open order. The resulting status change
// arrives asynchronously.
func (e *Engine) CancelOrder(orderID string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	o, ok := e.panel.Order(orderID)
	if !ok || o.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if err := e.api.CancelOrder(e.ctx, gateway.CancelRequest{OrderID: o.ID, Ticker: o.Ticker}); err != nil {
		return fmt.Errorf("%w: %w", ErrAdapterRejected, err)
	}
	return nil
}

// CancelAll cancels every order open at the moment of the call, optionally for one
// ticker only, and returns how many cancels the gateway accepted. Orders submitted
// afterwards are not affected.
func (e *Engine) CancelAll(ticker string) int {
	ids := e.panel.OpenOrderIDs(ticker)
	n := 0
	for _, id := range ids {
		err := e.CancelOrder(id)
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrUnknownOrder):
			logger.Debugf("engine: cancel_all skipped %s: finished meanwhile", id)
		default:
			logger.Warnf("engine: cancel_all %s: %v", id, err)
		}
	}
	return n
}
