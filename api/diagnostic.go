// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"context"
	"net"
	"runtime/debug"
	"sync/atomic"

	"github.com/juju/loggo/v2"
)

var (
	diagnosticLogger = loggo.GetLogger("juju.api.diagnostic")

	connCount int64
	openConns int64
)

// trackedConn wraps a [net.Conn] so that we can track its creation and closure.
// See [WrapDialContext] below for usage.
type trackedConn struct {
	net.Conn

	createdStack []byte
	closed       int32
	id           int64
}

func newTrackedConn(c net.Conn, addr string) *trackedConn {
	tc := &trackedConn{
		Conn:         c,
		createdStack: debug.Stack(),
		id:           atomic.AddInt64(&connCount, 1),
	}
	open := atomic.AddInt64(&openConns, 1)
	diagnosticLogger.Debugf("opened conn id=%d to %s (%d open); created by:\n%s", tc.id, addr, open, tc.createdStack)
	return tc
}

func (t *trackedConn) Close() error {
	if atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		open := atomic.AddInt64(&openConns, -1)
		diagnosticLogger.Debugf("closing conn id=%d (%d still open)", t.id, open)
	} else {
		diagnosticLogger.Debugf("close called again id=%d; created by:\n%s", t.id, t.createdStack)
	}
	return t.Conn.Close()
}

// TrackedConnections returns the number of connections dialled with
// TrackConnections set that have not yet been closed.
func TrackedConnections() int64 {
	return atomic.LoadInt64(&openConns)
}

// WrapDialContext is a [net.Dialer.DialContext] wrapper.
// It works by wrapping the dialled [net.Conn] with our [trackedConn].
// This is intended for use in debugging builds to observe the call
// stacks that create low-level connections, but do not close them.
func WrapDialContext(
	dial func(ctx context.Context, network, addr string) (net.Conn, error),
) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		c, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return newTrackedConn(c, addr), nil
	}
}
