package tsdb

import "errors"

// Domain-specific errors for telemetry history operations.
var (
	// ErrDisabled is returned by Connect when telemetry history is turned off.
	ErrDisabled = errors.New("tsdb: disabled in configuration")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrNotConnected is returned when attempting operations on a closed client.
	ErrNotConnected = errors.New("tsdb: client not connected")
)
