// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"
	"github.com/juju/retry"
	"github.com/juju/version/v2"
	"gopkg.in/tomb.v2"

	"github.com/juju/python-libjuju-sub000/api/base"
	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/rpc/jsoncodec"
	"github.com/juju/python-libjuju-sub000/rpc/params"
)

var logger = loggo.GetLogger("juju.api")

// PingPeriod defines how often the internal connection health check
// will run.
const PingPeriod = 10 * time.Second

// state is the internal implementation of the Connection interface.
type state struct {
	client *rpc.Conn

	// addr is the address used to connect to the API server.
	addr string

	// modelTag holds the model tag.
	// It is empty if there is no model tag associated with the connection.
	modelTag names.ModelTag

	// controllerTag holds the controller's tag once we're connected.
	controllerTag names.ControllerTag

	// authTag holds the authenticated entity's tag after login.
	authTag names.Tag

	// serverVersion holds the version of the API server that we are
	// connected to. It is possible that this version is 0 if the
	// server does not report this during login.
	serverVersion version.Number

	// schema holds the facade versions the client speaks to this
	// controller's series.
	schema facadeSchema

	// facadeVersions holds the versions of all facades as reported by
	// Login.
	facadeVersions map[string][]int

	// hostPorts is the API server addresses returned from Login,
	// which the client may cache and use for failover.
	hostPorts []string

	clock      clock.Clock
	pingPeriod time.Duration

	// tomb owns the keepalive goroutine.
	tomb tomb.Tomb
}

var _ Connection = (*state)(nil)

// Open establishes a connection to the API server using the Info
// given, returning a State instance which can be used to make API
// requests.
//
// Each controller address list is tried in turn. A controller that
// redirects the login adds the controllers it names to the list; one
// that needs a discharge is skipped.
func Open(ctx context.Context, info *Info, opts DialOpts) (Connection, error) {
	if err := info.Validate(); err != nil {
		return nil, errors.Annotate(err, "validating info for opening an API connection")
	}
	opts = withDefaults(opts)
	if opts.LoginProvider == nil {
		opts.LoginProvider = NewUserpassLoginProvider(info.Tag, info.Password, info.Nonce, info.Macaroons)
	}

	n := &negotiator{
		info: info,
		opts: opts,
		dial: func(ctx context.Context, ep endpoint) (*state, error) {
			return dialEndpoint(ctx, info, ep, opts)
		},
	}
	st, err := n.run(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return st, nil
}

func withDefaults(opts DialOpts) DialOpts {
	defaults := DefaultDialOpts()
	if opts.Timeout == 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.DialAttempts == 0 {
		opts.DialAttempts = defaults.DialAttempts
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.PingPeriod == 0 {
		opts.PingPeriod = defaults.PingPeriod
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.DialWebsocket == nil {
		opts.DialWebsocket = gorillaDialWebsocket(opts)
	}
	return opts
}

// dialEndpoint opens a transport to the first reachable address of ep
// and returns the not yet logged in state that owns it.
func dialEndpoint(ctx context.Context, info *Info, ep endpoint, opts DialOpts) (*state, error) {
	if len(ep.addrs) == 0 {
		return nil, errors.NotValidf("controller with no addresses")
	}
	tlsConfig, err := tlsConfigFor(ep.caCert, opts.InsecureSkipVerify)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var (
		conn jsoncodec.JSONConn
		addr string
	)
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			var lastErr error
			for _, a := range ep.addrs {
				c, err := opts.DialWebsocket(ctx, apiURL(a, info.ModelTag), tlsConfig)
				if err == nil {
					conn, addr = c, a
					return nil
				}
				logger.Debugf("cannot dial %s: %v", a, err)
				lastErr = err
				if ctx.Err() != nil {
					break
				}
			}
			return lastErr
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(lastErr error, attempt int) {
			logger.Debugf("attempt %d to reach %v failed: %v", attempt, ep.addrs, lastErr)
		},
		Attempts: opts.DialAttempts,
		Delay:    opts.RetryDelay,
		Clock:    opts.Clock,
		Stop:     ctx.Done(),
	})
	if err != nil {
		return nil, errors.Trace(retry.LastError(err))
	}
	logger.Debugf("connected to API server %s", addr)

	client := rpc.NewConn(jsoncodec.New(conn), rpc.Config{
		Addr:    addr,
		Metrics: opts.RPCMetrics,
	})
	client.Start()
	return &state{
		client:     client,
		addr:       addr,
		modelTag:   info.ModelTag,
		authTag:    info.Tag,
		clock:      opts.Clock,
		pingPeriod: opts.PingPeriod,
	}, nil
}

// apiURL returns the URL of the API endpoint of the given model, or
// of the controller if modelTag is empty.
func apiURL(addr string, modelTag names.ModelTag) string {
	path := "/api"
	if modelTag.Id() != "" {
		path = "/model/" + modelTag.Id() + "/api"
	}
	u := &url.URL{
		Scheme: "wss",
		Host:   addr,
		Path:   path,
	}
	return u.String()
}

func tlsConfigFor(caCert string, insecureSkipVerify bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecureSkipVerify,
	}
	if caCert != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(caCert)) {
			return nil, errors.NotValidf("CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// gorillaDialWebsocket returns a DialWebsocketFunc that dials with
// gorilla/websocket.
func gorillaDialWebsocket(opts DialOpts) DialWebsocketFunc {
	return func(ctx context.Context, urlStr string, tlsConfig *tls.Config) (jsoncodec.JSONConn, error) {
		netDialer := &net.Dialer{Timeout: opts.Timeout}
		dialContext := netDialer.DialContext
		if opts.TrackConnections {
			dialContext = WrapDialContext(dialContext)
		}
		dialer := &websocket.Dialer{
			NetDialContext:   dialContext,
			Proxy:            http.ProxyFromEnvironment,
			TLSClientConfig:  tlsConfig,
			HandshakeTimeout: opts.Timeout,
		}
		ws, _, err := dialer.DialContext(ctx, urlStr, nil)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return jsoncodec.NewWebsocket(ws), nil
	}
}

// APICall places a call to the remote machine.
//
// This fills out the rpc.Request on the given facade, version for a given
// object id, and the specific RPC method. It marshalls the Arguments, and will
// unmarshall the result into the response object that is supplied.
func (s *state) APICall(ctx context.Context, facade string, vers int, id, method string, args, response any) error {
	err := s.client.Call(ctx, rpc.Request{
		Type:    facade,
		Version: vers,
		Id:      id,
		Action:  method,
	}, args, response)
	return errors.Trace(err)
}

// BestFacadeVersion compares the versions of facades that we know about, and
// the versions available from the server, and reports back what version is the
// 'best available' to use.
func (s *state) BestFacadeVersion(facade string) int {
	if s.schema == nil {
		return 0
	}
	return bestVersion(s.schema.Versions()[facade], s.facadeVersions[facade])
}

// ModelTag implements base.APICaller.
func (s *state) ModelTag() (names.ModelTag, bool) {
	return s.modelTag, s.modelTag.Id() != ""
}

// ControllerTag returns the tag of the controller.
func (s *state) ControllerTag() names.ControllerTag {
	return s.controllerTag
}

// AuthTag returns the tag of the authorized entity.
func (s *state) AuthTag() names.Tag {
	return s.authTag
}

// Addr returns the address used to connect to the API server.
func (s *state) Addr() string {
	return s.addr
}

// ServerVersion holds the version of the API server that we are
// connected to.
func (s *state) ServerVersion() (version.Number, bool) {
	return s.serverVersion, s.serverVersion != version.Zero
}

// APIHostPorts returns addresses that may be used to connect
// to the API server, including the address used to connect.
func (s *state) APIHostPorts() []string {
	return append([]string(nil), s.hostPorts...)
}

// Broken implements Connection.
func (s *state) Broken() <-chan struct{} {
	return s.client.Dead()
}

// Health implements Connection.
func (s *state) Health() rpc.Health {
	return s.client.Health()
}

// Ping implements Connection.
func (s *state) Ping(ctx context.Context) error {
	return base.NewFacadeCaller(s, "Pinger").FacadeCall(ctx, "Ping", nil, nil)
}

// WatchAll returns an AllWatcher, from which you can request the Next
// collection of Deltas.
func (s *state) WatchAll(ctx context.Context) (*AllWatcher, error) {
	var info params.AllWatcherId
	if err := base.NewFacadeCaller(s, "Client").FacadeCall(ctx, "WatchAll", nil, &info); err != nil {
		return nil, errors.Trace(err)
	}
	return NewAllWatcher(s, info.AllWatcherId), nil
}

// Close closes the connection. The keepalive task is stopped first, so
// that it never observes a half closed transport.
func (s *state) Close() error {
	s.tomb.Kill(nil)
	_ = s.tomb.Wait()
	return s.client.Close()
}
