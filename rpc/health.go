// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

// Health describes whether a connection is usable.
type Health int

const (
	// HealthUnknown is never expected; it indicates a combination of
	// connection flags that should be impossible.
	HealthUnknown Health = iota
	// HealthDisconnected means the connection was never started or was
	// closed by the caller.
	HealthDisconnected
	// HealthConnected means the connection is usable.
	HealthConnected
	// HealthError means the connection went away without the caller
	// asking for it.
	HealthError
)

// String implements fmt.Stringer.
func (h Health) String() string {
	switch h {
	case HealthDisconnected:
		return "disconnected"
	case HealthConnected:
		return "connected"
	case HealthError:
		return "error"
	}
	return "unknown"
}

// healthFlags are the observations health is derived from.
type healthFlags struct {
	started        bool
	loopRunning    bool
	socketOpen     bool
	closeRequested bool
}

// derive computes the health from the flags. The order of the checks
// matters: a connection that hasn't started must not be reported as
// failed.
func (f healthFlags) derive() Health {
	switch {
	case !f.started:
		return HealthDisconnected
	case !f.loopRunning && !f.closeRequested:
		return HealthError
	case !f.socketOpen && !f.closeRequested:
		return HealthError
	case f.closeRequested && !f.socketOpen:
		return HealthDisconnected
	case f.socketOpen:
		return HealthConnected
	}
	return HealthUnknown
}
