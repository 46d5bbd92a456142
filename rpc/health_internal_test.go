// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	gc "gopkg.in/check.v1"
)

type healthSuite struct{}

var _ = gc.Suite(&healthSuite{})

func (s *healthSuite) TestDerive(c *gc.C) {
	tests := []struct {
		about  string
		flags  healthFlags
		expect Health
	}{{
		about:  "never started",
		flags:  healthFlags{socketOpen: true},
		expect: HealthDisconnected,
	}, {
		about:  "never started, close requested",
		flags:  healthFlags{closeRequested: true},
		expect: HealthDisconnected,
	}, {
		about:  "running",
		flags:  healthFlags{started: true, loopRunning: true, socketOpen: true},
		expect: HealthConnected,
	}, {
		about:  "loop died",
		flags:  healthFlags{started: true, socketOpen: true},
		expect: HealthError,
	}, {
		about:  "socket dropped",
		flags:  healthFlags{started: true, loopRunning: true},
		expect: HealthError,
	}, {
		about:  "closed",
		flags:  healthFlags{started: true, closeRequested: true},
		expect: HealthDisconnected,
	}, {
		about:  "closing, loop still running",
		flags:  healthFlags{started: true, loopRunning: true, closeRequested: true},
		expect: HealthDisconnected,
	}, {
		about:  "closing, socket still open",
		flags:  healthFlags{started: true, loopRunning: true, socketOpen: true, closeRequested: true},
		expect: HealthConnected,
	}}
	for i, test := range tests {
		c.Logf("test %d: %s", i, test.about)
		c.Check(test.flags.derive(), gc.Equals, test.expect)
	}
}

func (s *healthSuite) TestString(c *gc.C) {
	c.Check(HealthConnected.String(), gc.Equals, "connected")
	c.Check(HealthDisconnected.String(), gc.Equals, "disconnected")
	c.Check(HealthError.String(), gc.Equals, "error")
	c.Check(HealthUnknown.String(), gc.Equals, "unknown")
}
