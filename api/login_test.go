// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api_test

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/python-libjuju-sub000/api"
	apitesting "github.com/juju/python-libjuju-sub000/api/testing"
	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/rpc/params"
	"github.com/juju/python-libjuju-sub000/rpc/rpctest"
)

type loginSuite struct {
	baseSuite
}

var _ = gc.Suite(&loginSuite{})

func (s *loginSuite) dischargeRequired(c *gc.C) rpctest.Handler {
	m, err := apitesting.NewMacaroon("login")
	c.Assert(err, jc.ErrorIsNil)
	return apitesting.Mux("3.4.0", rpctest.Mux{
		"Admin.Login": func(rpctest.Request) rpctest.Reply {
			return rpctest.Result(params.LoginResult{
				DischargeRequired:       m,
				DischargeRequiredReason: "authentication required",
			})
		},
	}).Handle
}

func (s *loginSuite) redirect(reply rpctest.Reply) rpctest.Handler {
	return apitesting.Mux("3.4.0", rpctest.Mux{
		"Admin.Login": func(rpctest.Request) rpctest.Reply {
			return reply
		},
	}).Handle
}

func (s *loginSuite) TestRedirectFromErrorInfo(c *gc.C) {
	s.controller.Serve(addrA, s.redirect(apitesting.RedirectTo("", []string{addrB})))
	s.controller.Serve(addrB, apitesting.Mux("3.4.0", nil).Handle)

	conn, err := api.Open(context.Background(), s.info(addrA), s.dialOpts(clock.WallClock))
	c.Assert(err, jc.ErrorIsNil)
	defer conn.Close()

	c.Check(conn.Addr(), gc.Equals, addrB)
	dials := s.controller.Dials()
	c.Assert(dials, gc.HasLen, 2)
	c.Check(dials[0].Conn.IsClosed(), jc.IsTrue)
	c.Check(dials[1].Conn.IsClosed(), jc.IsFalse)
}

func (s *loginSuite) TestRedirectInfoFallback(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", rpctest.Mux{
		"Admin.Login": func(rpctest.Request) rpctest.Reply {
			return apitesting.RedirectTo("")
		},
		"Admin.RedirectInfo": func(rpctest.Request) rpctest.Reply {
			return rpctest.Result(params.RedirectInfoResult{
				Servers: [][]params.HostPort{{{Value: "10.0.0.2", Port: 17070}}},
			})
		},
	}).Handle)
	s.controller.Serve(addrB, apitesting.Mux("3.4.0", nil).Handle)

	conn, err := api.Open(context.Background(), s.info(addrA), s.dialOpts(clock.WallClock))
	c.Assert(err, jc.ErrorIsNil)
	defer conn.Close()
	c.Check(conn.Addr(), gc.Equals, addrB)

	waitRequests(c, s.controller.Dials()[0].Conn, "Admin.RedirectInfo", 1)
}

func (s *loginSuite) TestDischargeRequiredMovesToNextController(c *gc.C) {
	s.controller.Serve(addrA, s.redirect(apitesting.RedirectTo("", []string{addrB}, []string{addrC})))
	s.controller.Serve(addrB, s.dischargeRequired(c))
	s.controller.Serve(addrC, apitesting.Mux("3.4.0", nil).Handle)

	conn, err := api.Open(context.Background(), s.info(addrA), s.dialOpts(clock.WallClock))
	c.Assert(err, jc.ErrorIsNil)
	defer conn.Close()

	c.Check(conn.Addr(), gc.Equals, addrC)
	dials := s.controller.Dials()
	c.Assert(dials, gc.HasLen, 3)
	c.Check(dials[1].Conn.IsClosed(), jc.IsTrue)
}

func (s *loginSuite) TestDischargeRequiredExhaustsWorklist(c *gc.C) {
	s.controller.Serve(addrA, s.dischargeRequired(c))

	_, err := api.Open(context.Background(), s.info(addrA), s.dialOpts(clock.WallClock))
	c.Assert(err, gc.ErrorMatches, `connection to 10.0.0.1:17070 failed: discharge required by 10.0.0.1:17070: authentication required`)
	c.Check(rpc.IsConnectivityError(err), jc.IsTrue)
	c.Check(s.controller.LastConn().IsClosed(), jc.IsTrue)
}

func (s *loginSuite) TestRedirectCandidatesUnreachable(c *gc.C) {
	s.controller.Serve(addrA, s.redirect(apitesting.RedirectTo("", []string{addrB})))

	_, err := api.Open(context.Background(), s.info(addrA), s.dialOpts(clock.WallClock))
	c.Assert(err, gc.ErrorMatches, `connection to 10.0.0.1:17070 failed: .*connection refused`)
	c.Check(rpc.IsConnectivityError(err), jc.IsTrue)
}

func (s *loginSuite) TestUnreachable(c *gc.C) {
	_, err := api.Open(context.Background(), s.info(addrA), s.dialOpts(clock.WallClock))
	c.Assert(err, gc.ErrorMatches, `connection to 10.0.0.1:17070 failed: dial tcp 10.0.0.1:17070: connect: connection refused`)
	c.Check(rpc.IsConnectivityError(err), jc.IsTrue)
}

func (s *loginSuite) TestTriesEveryAddressOfController(c *gc.C) {
	s.controller.Serve(addrB, apitesting.Mux("3.4.0", nil).Handle)

	conn, err := api.Open(context.Background(), s.info(addrA, addrB), s.dialOpts(clock.WallClock))
	c.Assert(err, jc.ErrorIsNil)
	defer conn.Close()
	c.Check(conn.Addr(), gc.Equals, addrB)
}

func (s *loginSuite) TestLoginRejected(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", rpctest.Mux{
		"Admin.Login": func(rpctest.Request) rpctest.Reply {
			return rpctest.Fail(params.CodeUnauthorized, "invalid entity name or password", nil)
		},
	}).Handle)
	s.controller.Serve(addrB, apitesting.Mux("3.4.0", nil).Handle)

	_, err := api.Open(context.Background(), s.info(addrA, addrB), s.dialOpts(clock.WallClock))
	c.Assert(err, gc.ErrorMatches, `invalid entity name or password \(unauthorized access\)`)
	c.Check(params.IsCodeUnauthorized(err), jc.IsTrue)
	c.Check(rpc.IsConnectivityError(err), jc.IsFalse)

	dials := s.controller.Dials()
	c.Assert(dials, gc.HasLen, 1)
	c.Check(dials[0].Conn.IsClosed(), jc.IsTrue)
}

func (s *loginSuite) TestBadServerVersion(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("not-a-version", nil).Handle)

	_, err := api.Open(context.Background(), s.info(addrA), s.dialOpts(clock.WallClock))
	c.Assert(err, gc.ErrorMatches, `controller version "not-a-version": .*`)
	c.Check(s.controller.LastConn().IsClosed(), jc.IsTrue)
}

func (s *loginSuite) TestCancelledContext(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", nil).Handle)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := api.Open(ctx, s.info(addrA), s.dialOpts(clock.WallClock))
	c.Check(err, jc.ErrorIs, context.Canceled)
	c.Check(s.controller.Dials(), gc.HasLen, 0)
}

func (s *loginSuite) TestInvalidInfo(c *gc.C) {
	_, err := api.Open(context.Background(), &api.Info{}, s.dialOpts(clock.WallClock))
	c.Check(err, gc.ErrorMatches, "validating info for opening an API connection: missing addresses not valid")
	c.Check(errors.Is(err, errors.NotValid), jc.IsTrue)
}

func (s *loginSuite) TestMacaroonLogin(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", nil).Handle)

	info := s.info(addrA)
	info.Tag = nil
	info.Password = ""
	opts := s.dialOpts(clock.WallClock)
	opts.LoginProvider = api.NewMacaroonLoginProvider(nil)
	conn, err := api.Open(context.Background(), info, opts)
	c.Assert(err, jc.ErrorIsNil)
	defer conn.Close()

	logins := waitRequests(c, s.controller.LastConn(), "Admin.Login", 1)
	var request params.LoginRequest
	c.Assert(logins[0].DecodeParams(&request), jc.ErrorIsNil)
	c.Check(request.AuthTag, gc.Equals, "")
	c.Check(request.Credentials, gc.Equals, "")
}
