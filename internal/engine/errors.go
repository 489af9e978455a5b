package engine

import "errors"

var (
	ErrRiskRejected    = errors.New("order rejected by risk manager")
	ErrAdapterRejected = errors.New("request refused by gateway")
	ErrUnknownOrder    = errors.New("unknown or finished order")
	ErrNotSynced       = errors.New("position sync not complete")
	ErrSyncInProgress  = errors.New("position sync already in progress")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrInvalidOrder    = errors.New("invalid order")
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrClosed          = errors.New("engine closed")
)
