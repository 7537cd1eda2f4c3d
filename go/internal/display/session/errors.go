package session

import "errors"

var (
	// ErrNoToken means no display session token was supplied; no
	// connection is ever attempted without one.
	ErrNoToken = errors.New("no display session token")

	// ErrInvalidToken means the authority rejected the token; the
	// session is torn down and not retried.
	ErrInvalidToken = errors.New("display session token rejected")

	// ErrReconnectFailed means the bounded reconnect budget is spent.
	// The transport keeps a slow retry cadence, but the failure is
	// surfaced to the operator.
	ErrReconnectFailed = errors.New("reconnection attempts exhausted")
)
