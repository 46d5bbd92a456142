// Copyright 2015 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testing provides an in-memory controller for exercising API
// connections.
package testing

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"gopkg.in/macaroon.v2"

	"github.com/juju/python-libjuju-sub000/rpc/jsoncodec"
	"github.com/juju/python-libjuju-sub000/rpc/params"
	"github.com/juju/python-libjuju-sub000/rpc/rpctest"
)

const (
	// ControllerUUID is the UUID every fake controller reports.
	ControllerUUID = "deadbeef-1bad-500d-9000-4b1d0d06f00d"

	// ModelUUID is the UUID of the model every fake controller hosts.
	ModelUUID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
)

// Dial records one connection made to a Controller.
type Dial struct {
	URL  string
	Conn *rpctest.Conn
}

// Controller is a set of in-memory controllers, keyed by address.
// Its Dial method can be used as api.DialOpts.DialWebsocket.
type Controller struct {
	mu       sync.Mutex
	handlers map[string]rpctest.Handler
	dials    []Dial
}

// NewController returns a Controller with no addresses.
func NewController() *Controller {
	return &Controller{
		handlers: make(map[string]rpctest.Handler),
	}
}

// Serve makes addr answer connections with handler.
func (c *Controller) Serve(addr string, handler rpctest.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[addr] = handler
}

// Dial connects to the handler serving the host of urlStr. Addresses
// with no handler refuse the connection.
func (c *Controller) Dial(ctx context.Context, urlStr string, _ *tls.Config) (jsoncodec.JSONConn, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	handler, ok := c.handlers[u.Host]
	if !ok {
		return nil, errors.Errorf("dial tcp %s: connect: connection refused", u.Host)
	}
	conn := rpctest.NewConn(handler)
	c.dials = append(c.dials, Dial{URL: urlStr, Conn: conn})
	return conn, nil
}

// Dials returns every connection made so far, in order.
func (c *Controller) Dials() []Dial {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Dial(nil), c.dials...)
}

// LastConn returns the most recent connection, or nil.
func (c *Controller) LastConn() *rpctest.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.dials) == 0 {
		return nil
	}
	return c.dials[len(c.dials)-1].Conn
}

// LoginResult returns a successful login result from a controller
// running serverVersion.
func LoginResult(serverVersion string) params.LoginResult {
	return params.LoginResult{
		ServerVersion: serverVersion,
		ControllerTag: names.NewControllerTag(ControllerUUID).String(),
		ModelTag:      names.NewModelTag(ModelUUID).String(),
		UserInfo: &params.AuthUserInfo{
			DisplayName: "admin",
			Identity:    names.NewUserTag("admin").String(),
		},
		Servers: [][]params.HostPort{
			{{Value: "10.0.0.1", Type: "ipv4", Scope: "local-cloud", Port: 17070}},
		},
		Facades: []params.FacadeVersions{
			{Name: "AllWatcher", Versions: []int{1, 2, 3, 4}},
			{Name: "Client", Versions: []int{1, 2, 3, 6, 7}},
			{Name: "Pinger", Versions: []int{1}},
		},
	}
}

// Mux returns the handlers of a controller that accepts every login.
// The given handlers are added to, or replace, the defaults.
func Mux(serverVersion string, extra rpctest.Mux) rpctest.Mux {
	mux := rpctest.Mux{
		"Admin.Login": func(rpctest.Request) rpctest.Reply {
			return rpctest.Result(LoginResult(serverVersion))
		},
		"Pinger.Ping": func(rpctest.Request) rpctest.Reply {
			return rpctest.Result(nil)
		},
	}
	for name, h := range extra {
		mux[name] = h
	}
	return mux
}

// RedirectTo returns a login reply redirecting the client to the given
// controllers. With no addresses the reply carries no error info.
func RedirectTo(caCert string, addrs ...[]string) rpctest.Reply {
	if len(addrs) == 0 {
		return rpctest.Fail(params.CodeRedirect, "redirection to alternative server required", nil)
	}
	var servers []any
	for _, server := range addrs {
		var hps []any
		for _, addr := range server {
			host, portStr, err := net.SplitHostPort(addr)
			if err != nil {
				panic(err)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				panic(err)
			}
			hps = append(hps, map[string]any{
				"value": host,
				"type":  "ipv4",
				"scope": "public",
				"port":  port,
			})
		}
		servers = append(servers, hps)
	}
	return rpctest.Fail(params.CodeRedirect, "redirection to alternative server required", map[string]any{
		"servers": servers,
		"ca-cert": caCert,
	})
}

// NewMacaroon returns a macaroon the way a controller asking for a
// third-party discharge would.
func NewMacaroon(id string) (*macaroon.Macaroon, error) {
	m, err := macaroon.New([]byte("root-key"), []byte(id), "juju", macaroon.LatestVersion)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := m.AddThirdPartyCaveat([]byte("caveat-key"), []byte("is-authenticated-user"), "https://identity.test"); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
