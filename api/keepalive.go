// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/python-libjuju-sub000/internal/interrupt"
	"github.com/juju/python-libjuju-sub000/rpc"
)

// keepalive pings the controller every ping period so that it doesn't
// drop the connection as idle. It runs until the connection is closed
// or the transport dies; failed pings are only logged.
func (s *state) keepalive() error {
	ctx := s.tomb.Context(context.Background())
	dying := s.tomb.Dying()
	for {
		_, err := interrupt.Race(ctx, dying, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.Ping(ctx)
		})
		switch {
		case err == nil:
		case interrupt.IsInterrupted(err), errors.Is(err, context.Canceled), rpc.IsShutdownErr(err):
			return nil
		case rpc.IsConnectivityError(err):
			logger.Debugf("stopping keepalive for %s: %v", s.addr, err)
			return nil
		default:
			logger.Warningf("health ping to %s failed: %v", s.addr, err)
		}

		if err := interrupt.Sleep(ctx, s.clock, s.pingPeriod, dying); err != nil {
			return nil
		}
	}
}
