package model

import "errors"

// Sentinel errors forming the §7 error taxonomy. Transport/protocol/capacity
// errors are handled locally by the owning component and never reach this
// list; these are the ones that cross a component boundary and, in the case
// of Contract errors, reach the HTTP layer verbatim.
var (
	// ErrUnsupportedExchange is a Contract error: subscribe() named an
	// exchange with no registered worker factory.
	ErrUnsupportedExchange = errors.New("unsupported exchange")

	// ErrUnsupportedIndicator is a Contract error: subscribe() named an
	// indicator family with no registered engine factory.
	ErrUnsupportedIndicator = errors.New("unsupported indicator")

	// ErrUnsupportedInterval is a Contract error: an interval outside the
	// closed set in §3.
	ErrUnsupportedInterval = errors.New("unsupported interval")

	// ErrUnsupportedDataType is a Contract error: an unrecognized data_type
	// in a /subscribe/market body.
	ErrUnsupportedDataType = errors.New("unsupported data type")

	// ErrInsufficientData is raised by an indicator kernel (C1) when the
	// input buffer is too short for the requested period.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotConnected names the error for a connector send attempt made
	// while not in the OPEN state. The connectors in this module expose no
	// send method, so nothing returns it at present.
	ErrNotConnected = errors.New("not connected")

	// ErrDead marks an (exchange, market) pair the manager has given up on
	// after repeated escalated resets (§7 Escalation); further subscribes
	// are refused until operator intervention.
	ErrDead = errors.New("exchange market marked dead, refusing subscribe")
)
