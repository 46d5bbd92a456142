// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"github.com/juju/version/v2"
	"gopkg.in/macaroon.v2"

	"github.com/juju/python-libjuju-sub000/api/base"
	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/rpc/jsoncodec"
)

// Info encapsulates information about a server holding juju state and
// can be used to make a connection to it.
type Info struct {
	// Addrs holds the addresses of the controllers.
	Addrs []string

	// CACert holds the CA certificate that will be used
	// to validate the controller's certificate, in PEM format.
	CACert string

	// ModelTag holds the model tag for the model we are
	// trying to connect to. If this is empty, a controller-only
	// login will be made.
	ModelTag names.ModelTag

	// Tag holds the name of the entity that is connecting.
	// If this is nil, macaroon authentication will be used.
	Tag names.Tag

	// Password holds the password for the administrator or connecting agent.
	Password string

	// Macaroons holds a slice of macaroon.Slice that may be used to
	// authenticate with the API server.
	Macaroons []macaroon.Slice

	// Nonce holds the nonce used when provisioning the machine. Used
	// only by the machine agent.
	Nonce string `yaml:",omitempty"`
}

// Validate validates the API info.
func (info *Info) Validate() error {
	if len(info.Addrs) == 0 {
		return errors.NotValidf("missing addresses")
	}
	for _, addr := range info.Addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return errors.NotValidf("address %q", addr)
		}
	}
	if info.Tag != nil && info.Password == "" && len(info.Macaroons) == 0 {
		return errors.NotValidf("missing credentials for %q", info.Tag)
	}
	return nil
}

// DialWebsocketFunc opens the message stream to one controller address.
type DialWebsocketFunc func(ctx context.Context, urlStr string, tlsConfig *tls.Config) (jsoncodec.JSONConn, error)

// DialOpts holds configuration parameters that control the
// Dialing behavior when connecting to a controller.
type DialOpts struct {
	// Timeout is the amount of time to wait for one websocket
	// handshake to complete.
	Timeout time.Duration

	// DialAttempts is the number of times the addresses of one
	// controller are tried before moving on to the next.
	DialAttempts int

	// RetryDelay is the amount of time to wait between
	// unsuccessful connection attempts.
	RetryDelay time.Duration

	// PingPeriod is the interval between keepalive pings.
	PingPeriod time.Duration

	// Clock is used as a time source for retries and keepalive.
	// If it is nil, clock.WallClock will be used.
	Clock clock.Clock

	// LoginProvider is used to log in. If it is nil, a provider built
	// from the Info credentials is used.
	LoginProvider LoginProvider

	// DialWebsocket is used to make the connection. If it is nil,
	// gorilla/websocket is used.
	DialWebsocket DialWebsocketFunc

	// InsecureSkipVerify skips TLS certificate verification
	// when connecting to the controller. This should only
	// be used in tests, or when verification cannot be
	// performed and the communication need not be secure.
	InsecureSkipVerify bool

	// TrackConnections logs the opening and closing of every network
	// connection made, along with the stack that opened it.
	TrackConnections bool

	// RPCMetrics, if set, records every call made on the connection.
	RPCMetrics *rpc.Collector
}

// DefaultDialOpts returns a DialOpts representing the default
// parameters for contacting a controller.
func DefaultDialOpts() DialOpts {
	return DialOpts{
		Timeout:      30 * time.Second,
		DialAttempts: 3,
		RetryDelay:   2 * time.Second,
		PingPeriod:   PingPeriod,
		Clock:        clock.WallClock,
	}
}

// DialOption is the type of functions that mutate DialOpts.
type DialOption func(*DialOpts)

// WithLoginProvider returns a DialOption that sets the login provider.
func WithLoginProvider(provider LoginProvider) DialOption {
	return func(opts *DialOpts) {
		opts.LoginProvider = provider
	}
}

// WithClock returns a DialOption that sets the clock.
func WithClock(clk clock.Clock) DialOption {
	return func(opts *DialOpts) {
		opts.Clock = clk
	}
}

// WithRPCMetrics returns a DialOption that records call metrics in
// collector.
func WithRPCMetrics(collector *rpc.Collector) DialOption {
	return func(opts *DialOpts) {
		opts.RPCMetrics = collector
	}
}

// Connection represents a connection to a Juju API server.
type Connection interface {
	base.APICaller

	// Close closes the connection. Pending calls fail, the keepalive
	// task stops and the transport is shut down.
	Close() error

	// Broken returns a channel which will be closed if the connection
	// is detected to be broken, either because the underlying
	// connection has closed or because API pings have failed.
	Broken() <-chan struct{}

	// Health reports whether the connection is usable.
	Health() rpc.Health

	// Addr returns the address used to connect to the API server.
	Addr() string

	// AuthTag returns the tag of the authorized user of the state API
	// connection.
	AuthTag() names.Tag

	// ControllerTag returns the tag of the controller.
	// This could be defined on base.APICaller.
	ControllerTag() names.ControllerTag

	// ServerVersion returns the version of the server, and whether
	// the server reported one.
	ServerVersion() (version.Number, bool)

	// APIHostPorts returns the addresses of every API server of the
	// controller, as reported at login.
	APIHostPorts() []string

	// Ping makes an API request which checks if the connection is
	// still functioning.
	Ping(ctx context.Context) error

	// WatchAll returns an AllWatcher, from which you can request
	// the Next collection of Deltas.
	WatchAll(ctx context.Context) (*AllWatcher, error)
}
