// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api_test

import (
	"context"
	"time"

	"github.com/juju/clock"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/python-libjuju-sub000/api"
	apitesting "github.com/juju/python-libjuju-sub000/api/testing"
	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/rpc/rpctest"
)

type allWatcherSuite struct {
	baseSuite

	batches chan []any
	done    chan struct{}
}

var _ = gc.Suite(&allWatcherSuite{})

func (s *allWatcherSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	batches := make(chan []any, 10)
	done := make(chan struct{})
	s.batches, s.done = batches, done
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", rpctest.Mux{
		"Client.WatchAll": func(rpctest.Request) rpctest.Reply {
			return rpctest.Result(map[string]any{"watcher-id": "7"})
		},
		"AllWatcher.Next": func(rpctest.Request) rpctest.Reply {
			select {
			case batch := <-batches:
				return rpctest.Result(map[string]any{"deltas": batch})
			case <-done:
				return rpctest.Reply{Drop: true}
			}
		},
		"AllWatcher.Stop": func(rpctest.Request) rpctest.Reply {
			return rpctest.Result(nil)
		},
	}).Handle)
}

func (s *allWatcherSuite) TearDownTest(c *gc.C) {
	close(s.done)
}

func (s *allWatcherSuite) TestNext(c *gc.C) {
	conn := s.open(c, clock.WallClock)
	defer conn.Close()

	w, err := conn.WatchAll(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(w.ID(), gc.Equals, "7")

	s.batches <- []any{
		[]any{"application", "add", map[string]any{"name": "mysql"}},
		[]any{"unit", "change", map[string]any{"name": "mysql/0", "application": "mysql"}},
	}
	deltas, err := w.Next(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(deltas, gc.HasLen, 2)
	c.Check(deltas[0].EntityId(), gc.Equals, multiwatcher.EntityId{Kind: "application", Id: "mysql"})
	c.Check(deltas[1].Action, gc.Equals, multiwatcher.Change)
	c.Check(deltas[1].Data["application"], gc.Equals, "mysql")

	nexts := waitRequests(c, s.controller.LastConn(), "AllWatcher.Next", 1)
	c.Check(nexts[0].Id, gc.Equals, "7")
	c.Check(nexts[0].Version, gc.Equals, 4)

	c.Assert(w.Stop(context.Background()), jc.ErrorIsNil)
	c.Assert(w.Stop(context.Background()), jc.ErrorIsNil)
	c.Check(waitRequests(c, s.controller.LastConn(), "AllWatcher.Stop", 1), gc.HasLen, 1)

	_, err = w.Next(context.Background())
	c.Check(err, jc.ErrorIs, api.ErrWatcherStopped)
}

func (s *allWatcherSuite) TestStopInterruptsNext(c *gc.C) {
	conn := s.open(c, clock.WallClock)
	defer conn.Close()

	w, err := conn.WatchAll(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	errs := make(chan error, 1)
	go func() {
		_, err := w.Next(context.Background())
		errs <- err
	}()
	waitRequests(c, s.controller.LastConn(), "AllWatcher.Next", 1)

	c.Assert(w.Stop(context.Background()), jc.ErrorIsNil)
	select {
	case err := <-errs:
		c.Check(err, jc.ErrorIs, api.ErrWatcherStopped)
	case <-time.After(longWait):
		c.Fatalf("Next was not interrupted")
	}
}

func (s *allWatcherSuite) TestNextTimeout(c *gc.C) {
	conn := s.open(c, clock.WallClock)
	defer conn.Close()

	w, err := conn.WatchAll(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w.Next(ctx)
	c.Check(err, jc.ErrorIs, context.DeadlineExceeded)

	// The watcher is still usable. The abandoned request may take
	// one batch, whose reply is dropped.
	for i := 0; i < 2; i++ {
		s.batches <- []any{[]any{"machine", "add", map[string]any{"id": "0"}}}
	}
	deltas, err := w.Next(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(deltas, gc.HasLen, 1)
}

func (s *allWatcherSuite) TestNextOnClosedConnection(c *gc.C) {
	conn := s.open(c, clock.WallClock)
	w, err := conn.WatchAll(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	errs := make(chan error, 1)
	go func() {
		_, err := w.Next(context.Background())
		errs <- err
	}()
	waitRequests(c, s.controller.LastConn(), "AllWatcher.Next", 1)

	c.Assert(conn.Close(), jc.ErrorIsNil)
	select {
	case err := <-errs:
		c.Check(rpc.IsShutdownErr(err), jc.IsTrue)
	case <-time.After(longWait):
		c.Fatalf("Next did not fail")
	}
}
