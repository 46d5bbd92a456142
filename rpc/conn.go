// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("juju.rpc")

// Config holds the optional collaborators of a Conn.
type Config struct {
	// Addr names the remote end in errors and logs.
	Addr string

	// Metrics, if set, records every call made on the connection.
	Metrics *Collector
}

// Conn represents the client end of an RPC connection. There may be
// multiple outstanding Calls associated with a single Conn, and a Conn
// may be used by multiple goroutines simultaneously.
type Conn struct {
	// codec holds the underlying RPC connection.
	codec Codec

	addr    string
	metrics *Collector

	// sending guards the write side of the codec - it ensures
	// that codec.WriteMessage is not called concurrently.
	sending sync.Mutex

	// reqId holds the latest client request id.
	reqId atomic.Uint64

	// pending matches responses with the calls waiting for them.
	pending *Multiplexer

	// mutex guards the following values.
	mutex sync.Mutex

	// closing is set when the connection is shutting down via
	// Close. When this is set, no more client requests will be
	// initiated.
	closing bool

	// codecClosed is set once the codec has been closed.
	codecClosed bool

	// readFailed is set when the input loop stopped because the
	// codec failed rather than because we closed it.
	readFailed bool

	// dead is closed when the input loop terminates. It is nil
	// until Start is called.
	dead chan struct{}

	// inputLoopError holds the error that caused the input loop to
	// terminate prematurely. It is set before dead is closed.
	inputLoopError error

	// closingCh is closed when Close is first called.
	closingCh chan struct{}
}

// NewConn creates a new connection that uses the given codec for
// transport, but it does not start it. Conn.Start must be called before
// any requests are sent or received.
func NewConn(codec Codec, config Config) *Conn {
	return &Conn{
		codec:     codec,
		addr:      config.Addr,
		metrics:   config.Metrics,
		pending:   NewMultiplexer(),
		closingCh: make(chan struct{}),
	}
}

// Start starts the RPC connection running. It starts exactly one
// receive loop; calling it again has no effect.
func (conn *Conn) Start() {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if conn.dead == nil && !conn.closing {
		conn.dead = make(chan struct{})
		go conn.input()
	}
}

// Dead returns a channel that is closed when the connection has
// stopped receiving. It returns nil if the connection was never started.
func (conn *Conn) Dead() <-chan struct{} {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	return conn.dead
}

// Closing returns a channel that is closed as soon as Close is called.
func (conn *Conn) Closing() <-chan struct{} {
	return conn.closingCh
}

// Err returns the error that stopped the input loop, if it stopped for
// any reason other than Close.
func (conn *Conn) Err() error {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	return conn.inputLoopError
}

// Pending returns the number of calls waiting for a response.
func (conn *Conn) Pending() int {
	return conn.pending.Len()
}

// Health reports whether the connection is usable. It is derived afresh
// from the connection's state on every call.
func (conn *Conn) Health() Health {
	conn.mutex.Lock()
	flags := healthFlags{
		started:        conn.dead != nil,
		socketOpen:     !conn.codecClosed && !conn.readFailed,
		closeRequested: conn.closing,
	}
	if flags.started {
		select {
		case <-conn.dead:
		default:
			flags.loopRunning = true
		}
	}
	conn.mutex.Unlock()

	health := flags.derive()
	if health == HealthUnknown {
		logger.Errorf("programming error: cannot derive health of connection to %s from %+v", conn.addr, flags)
	}
	return health
}

// Close closes the connection. Every outstanding call fails with
// ErrShutdown. Close may be called more than once; only the first call
// does anything.
func (conn *Conn) Close() error {
	conn.mutex.Lock()
	if conn.closing {
		conn.mutex.Unlock()
		return nil
	}
	conn.closing = true
	close(conn.closingCh)
	dead := conn.dead
	conn.mutex.Unlock()

	// Closing the codec is what makes a blocked read return; the input
	// loop then sees the closing flag and exits without dispatching.
	err := conn.codec.Close()
	conn.mutex.Lock()
	conn.codecClosed = true
	conn.mutex.Unlock()

	if dead == nil {
		// Never started: nobody else will fail the pending calls.
		conn.pending.FailAll(ErrShutdown)
	} else {
		<-dead
	}
	if err != nil {
		logger.Debugf("closing codec for %s: %v", conn.addr, err)
	}
	return nil
}

func (conn *Conn) isClosing() bool {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	return conn.closing
}

// input reads messages from the connection and hands responses to
// the calls waiting for them.
func (conn *Conn) input() {
	err := conn.loop()

	conn.mutex.Lock()
	var failure error
	if conn.closing {
		failure = ErrShutdown
	} else {
		conn.readFailed = true
		failure = &ConnectivityError{Addr: conn.addr, Err: err}
		// Make the error available for Conn.Err to see.
		conn.inputLoopError = failure
	}
	conn.mutex.Unlock()

	if failure != ErrShutdown {
		logger.Debugf("connection to %s lost: %v", conn.addr, err)
	}
	// Terminate all client requests.
	conn.pending.FailAll(failure)

	conn.mutex.Lock()
	close(conn.dead)
	conn.mutex.Unlock()
}

// loop implements the looping part of Conn.input.
func (conn *Conn) loop() error {
	for {
		var msg Message
		err := conn.codec.ReadMessage(&msg)
		if conn.isClosing() {
			return nil
		}
		if err != nil {
			return errors.Trace(err)
		}
		if msg.Header.IsRequest() {
			logger.Warningf("ignoring request %d (%s.%s) from %s: client connections serve no methods",
				msg.Header.RequestId, msg.Header.Request.Type, msg.Header.Request.Action, conn.addr)
			continue
		}
		id := msg.Header.RequestId
		if !conn.pending.Fulfill(id, &msg) {
			// The caller gave up on this request; there's
			// nobody to give the response to.
			logger.Tracef("discarding response to abandoned request %d", id)
		}
	}
}
