// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc_test

import (
	"context"
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/python-libjuju-sub000/rpc"
)

type multiplexerSuite struct{}

var _ = gc.Suite(&multiplexerSuite{})

func (s *multiplexerSuite) TestFulfillResolvesMatchingSlot(c *gc.C) {
	mux := rpc.NewMultiplexer()
	one, err := mux.Register(1)
	c.Assert(err, jc.ErrorIsNil)
	two, err := mux.Register(2)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(mux.Len(), gc.Equals, 2)

	c.Check(mux.Fulfill(2, &rpc.Message{Header: rpc.Header{RequestId: 2}}), jc.IsTrue)
	msg, err := two.Wait(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(msg.Header.RequestId, gc.Equals, uint64(2))
	c.Check(mux.Len(), gc.Equals, 1)

	c.Check(mux.Fulfill(1, &rpc.Message{Header: rpc.Header{RequestId: 1}}), jc.IsTrue)
	msg, err = one.Wait(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(msg.Header.RequestId, gc.Equals, uint64(1))
	c.Check(mux.Len(), gc.Equals, 0)
}

func (s *multiplexerSuite) TestFulfillUnknownIdIsDropped(c *gc.C) {
	mux := rpc.NewMultiplexer()
	c.Check(mux.Fulfill(99, &rpc.Message{}), jc.IsFalse)

	_, err := mux.Register(1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(mux.Fulfill(1, &rpc.Message{}), jc.IsTrue)
	// Resolved slots are forgotten.
	c.Check(mux.Fulfill(1, &rpc.Message{}), jc.IsFalse)
}

func (s *multiplexerSuite) TestRegisterDuplicate(c *gc.C) {
	mux := rpc.NewMultiplexer()
	_, err := mux.Register(7)
	c.Assert(err, jc.ErrorIsNil)
	_, err = mux.Register(7)
	c.Check(err, jc.ErrorIs, rpc.ErrDuplicateRequest)
	c.Check(err, gc.ErrorMatches, "request 7: duplicate request id")
}

func (s *multiplexerSuite) TestFailAllResolvesEverySlot(c *gc.C) {
	mux := rpc.NewMultiplexer()
	var slots []*rpc.Slot
	for id := uint64(1); id <= 3; id++ {
		slot, err := mux.Register(id)
		c.Assert(err, jc.ErrorIsNil)
		slots = append(slots, slot)
	}

	boom := errors.New("boom")
	mux.FailAll(boom)
	mux.FailAll(errors.New("ignored"))

	for _, slot := range slots {
		_, err := slot.Wait(context.Background())
		c.Check(err, gc.Equals, boom)
	}
	c.Check(mux.Len(), gc.Equals, 0)

	// A late registration fails at once rather than hanging.
	_, err := mux.Register(4)
	c.Check(err, gc.Equals, boom)
}

func (s *multiplexerSuite) TestWaitContextAbandonsOnlyThatSlot(c *gc.C) {
	mux := rpc.NewMultiplexer()
	slow, err := mux.Register(1)
	c.Assert(err, jc.ErrorIsNil)
	fast, err := mux.Register(2)
	c.Assert(err, jc.ErrorIsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Wait(ctx)
	c.Check(err, jc.ErrorIs, context.DeadlineExceeded)
	c.Check(mux.Len(), gc.Equals, 1)

	c.Check(mux.Fulfill(1, &rpc.Message{}), jc.IsFalse)
	c.Check(mux.Fulfill(2, &rpc.Message{}), jc.IsTrue)
	_, err = fast.Wait(context.Background())
	c.Check(err, jc.ErrorIsNil)
}

func (s *multiplexerSuite) TestAbandon(c *gc.C) {
	mux := rpc.NewMultiplexer()
	slot, err := mux.Register(3)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(slot.ID(), gc.Equals, uint64(3))
	slot.Abandon()
	slot.Abandon()
	c.Check(mux.Len(), gc.Equals, 0)

	// The id may be reused once abandoned.
	_, err = mux.Register(3)
	c.Check(err, jc.ErrorIsNil)
}
