// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api_test

import (
	"context"
	"encoding/pem"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/names/v5"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/version/v2"
	gc "gopkg.in/check.v1"

	"github.com/juju/python-libjuju-sub000/api"
	apitesting "github.com/juju/python-libjuju-sub000/api/testing"
	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/rpc/params"
	"github.com/juju/python-libjuju-sub000/rpc/rpctest"
)

type apiclientSuite struct {
	baseSuite
}

var _ = gc.Suite(&apiclientSuite{})

func (s *apiclientSuite) TestOpen(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", nil).Handle)

	conn := s.open(c, clock.WallClock)
	defer conn.Close()

	c.Check(conn.Addr(), gc.Equals, addrA)
	c.Check(conn.Health(), gc.Equals, rpc.HealthConnected)
	c.Check(conn.ControllerTag(), gc.Equals, names.NewControllerTag(apitesting.ControllerUUID))
	c.Check(conn.AuthTag(), gc.Equals, names.NewUserTag("admin"))
	modelTag, ok := conn.ModelTag()
	c.Check(ok, jc.IsTrue)
	c.Check(modelTag, gc.Equals, names.NewModelTag(apitesting.ModelUUID))
	serverVersion, ok := conn.ServerVersion()
	c.Check(ok, jc.IsTrue)
	c.Check(serverVersion, gc.Equals, version.MustParse("3.4.0"))
	c.Check(conn.APIHostPorts(), jc.DeepEquals, []string{addrA})

	dials := s.controller.Dials()
	c.Assert(dials, gc.HasLen, 1)
	c.Check(dials[0].URL, gc.Equals, "wss://10.0.0.1:17070/model/"+apitesting.ModelUUID+"/api")

	logins := waitRequests(c, dials[0].Conn, "Admin.Login", 1)
	c.Check(logins[0].Version, gc.Equals, 3)
	var request params.LoginRequest
	c.Assert(logins[0].DecodeParams(&request), jc.ErrorIsNil)
	c.Check(request.AuthTag, gc.Equals, "user-admin")
	c.Check(request.Credentials, gc.Equals, "hunter2")
	c.Check(request.ClientVersion, gc.Equals, api.ClientVersion)
}

func (s *apiclientSuite) TestBestFacadeVersionFollowsServerSeries(c *gc.C) {
	for _, test := range []struct {
		serverVersion string
		client        int
		allWatcher    int
		pinger        int
	}{
		{serverVersion: "3.4.0", client: 7, allWatcher: 4, pinger: 1},
		{serverVersion: "2.9.42", client: 3, allWatcher: 2, pinger: 1},
	} {
		c.Logf("server version %s", test.serverVersion)
		s.controller.Serve(addrA, apitesting.Mux(test.serverVersion, nil).Handle)
		conn := s.open(c, clock.WallClock)
		c.Check(conn.BestFacadeVersion("Client"), gc.Equals, test.client)
		c.Check(conn.BestFacadeVersion("AllWatcher"), gc.Equals, test.allWatcher)
		c.Check(conn.BestFacadeVersion("Pinger"), gc.Equals, test.pinger)
		c.Check(conn.BestFacadeVersion("Unknown"), gc.Equals, 0)
		c.Check(conn.Close(), jc.ErrorIsNil)
	}
}

func (s *apiclientSuite) TestAPICallUsesGivenVersion(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", rpctest.Mux{
		"Application.Get": func(req rpctest.Request) rpctest.Reply {
			return rpctest.Result(map[string]any{"application": req.Id, "version": req.Version})
		},
	}).Handle)
	conn := s.open(c, clock.WallClock)
	defer conn.Close()

	var result struct {
		Application string `json:"application"`
		Version     int    `json:"version"`
	}
	err := conn.APICall(context.Background(), "Application", 19, "mysql", "Get", nil, &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Application, gc.Equals, "mysql")
	c.Check(result.Version, gc.Equals, 19)
}

func (s *apiclientSuite) TestAPICallErrorKeepsCode(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", rpctest.Mux{
		"Application.Get": func(req rpctest.Request) rpctest.Reply {
			return rpctest.Fail(params.CodeNotFound, `application "foo" not found`, nil)
		},
	}).Handle)
	conn := s.open(c, clock.WallClock)
	defer conn.Close()

	err := conn.APICall(context.Background(), "Application", 19, "foo", "Get", nil, nil)
	c.Check(params.ErrCode(err), gc.Equals, params.CodeNotFound)
	c.Check(params.TranslateWellKnownError(err), jc.ErrorIs, errors.NotFound)
}

func (s *apiclientSuite) TestCloseIsIdempotent(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", nil).Handle)
	conn := s.open(c, clock.WallClock)

	c.Assert(conn.Close(), jc.ErrorIsNil)
	c.Check(conn.Health(), gc.Equals, rpc.HealthDisconnected)
	c.Check(s.controller.LastConn().IsClosed(), jc.IsTrue)

	done := make(chan error, 1)
	go func() { done <- conn.Close() }()
	select {
	case err := <-done:
		c.Check(err, jc.ErrorIsNil)
	case <-time.After(longWait):
		c.Fatalf("second close blocked")
	}

	err := conn.APICall(context.Background(), "Pinger", 1, "", "Ping", nil, nil)
	c.Check(rpc.IsShutdownErr(err), jc.IsTrue)
}

func (s *apiclientSuite) TestBroken(c *gc.C) {
	s.controller.Serve(addrA, apitesting.Mux("3.4.0", nil).Handle)
	conn := s.open(c, clock.WallClock)
	defer conn.Close()

	select {
	case <-conn.Broken():
		c.Fatalf("connection broken too soon")
	default:
	}

	s.controller.LastConn().Break(errors.New("connection reset by peer"))
	select {
	case <-conn.Broken():
	case <-time.After(longWait):
		c.Fatalf("connection never reported broken")
	}
	c.Check(conn.Health(), gc.Equals, rpc.HealthError)

	err := conn.Ping(context.Background())
	c.Check(rpc.IsConnectivityError(err), jc.IsTrue)
}

func (s *apiclientSuite) TestOpenWithTLS(c *gc.C) {
	srv := httptest.NewTLSServer(rpctest.ServeWebsocket(apitesting.Mux("3.4.0", nil).Handle))
	defer srv.Close()

	caCert := string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: srv.Certificate().Raw,
	}))
	addr := strings.TrimPrefix(srv.URL, "https://")
	before := api.TrackedConnections()

	info := s.info(addr)
	info.CACert = caCert
	conn, err := api.Open(context.Background(), info, api.DialOpts{
		DialAttempts:     1,
		TrackConnections: true,
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(api.TrackedConnections(), gc.Equals, before+1)

	c.Check(conn.Ping(context.Background()), jc.ErrorIsNil)
	c.Assert(conn.Close(), jc.ErrorIsNil)
	c.Check(api.TrackedConnections(), gc.Equals, before)
}

func (s *apiclientSuite) TestOpenWithTLSUnknownAuthority(c *gc.C) {
	srv := httptest.NewTLSServer(rpctest.ServeWebsocket(apitesting.Mux("3.4.0", nil).Handle))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "https://")
	_, err := api.Open(context.Background(), s.info(addr), api.DialOpts{DialAttempts: 1})
	c.Assert(err, gc.ErrorMatches, `connection to `+addr+` failed: .*certificate.*`)
	c.Check(rpc.IsConnectivityError(err), jc.IsTrue)
}

type infoSuite struct{}

var _ = gc.Suite(&infoSuite{})

func (s *infoSuite) TestValidate(c *gc.C) {
	for i, test := range []struct {
		info   api.Info
		expect string
	}{{
		info:   api.Info{},
		expect: "missing addresses not valid",
	}, {
		info:   api.Info{Addrs: []string{"10.0.0.1"}},
		expect: `address "10.0.0.1" not valid`,
	}, {
		info:   api.Info{Addrs: []string{addrA}, Tag: names.NewUserTag("bob")},
		expect: `missing credentials for "user-bob" not valid`,
	}, {
		info: api.Info{Addrs: []string{addrA}, Tag: names.NewUserTag("bob"), Password: "secret"},
	}, {
		info: api.Info{Addrs: []string{addrA, "[fe80::1]:17070"}},
	}} {
		c.Logf("test %d", i)
		err := test.info.Validate()
		if test.expect == "" {
			c.Check(err, jc.ErrorIsNil)
			continue
		}
		c.Check(err, gc.ErrorMatches, test.expect)
		c.Check(err, jc.ErrorIs, errors.NotValid)
	}
}

func (s *infoSuite) TestAPIURL(c *gc.C) {
	c.Check(api.APIURLForModel(addrA, ""), gc.Equals, "wss://10.0.0.1:17070/api")
	c.Check(api.APIURLForModel("[fe80::1]:17070", apitesting.ModelUUID), gc.Equals,
		"wss://[fe80::1]:17070/model/"+apitesting.ModelUUID+"/api")
}
