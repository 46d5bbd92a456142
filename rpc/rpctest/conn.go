// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package rpctest provides an in-memory stand-in for the controller end
// of a websocket, for use in tests.
package rpctest

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/juju/errors"
)

// Request is a request as received by the fake controller.
type Request struct {
	RequestId uint64          `json:"request-id"`
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	Id        string          `json:"id"`
	Request   string          `json:"request"`
	Params    json.RawMessage `json:"params"`
}

// Method returns the request's "Type.Request" name.
func (r Request) Method() string {
	return r.Type + "." + r.Request
}

// DecodeParams unmarshals the request parameters into v.
func (r Request) DecodeParams(v any) error {
	return errors.Trace(json.Unmarshal(r.Params, v))
}

// Reply is the controller's answer to one request.
type Reply struct {
	Response  any
	Error     string
	ErrorCode string
	ErrorInfo map[string]any

	// Drop means no reply is ever sent.
	Drop bool
}

// Result returns a reply carrying v as the response body.
func Result(v any) Reply {
	return Reply{Response: v}
}

// Fail returns a reply carrying a header error.
func Fail(code, message string, info map[string]any) Reply {
	return Reply{Error: message, ErrorCode: code, ErrorInfo: info}
}

// Handler computes the reply to a request. Each request is handled in
// its own goroutine, so a handler may block to delay its reply.
type Handler func(Request) Reply

// Mux routes requests to handlers by "Type.Request" name. Unknown
// methods are answered the way the controller answers them.
type Mux map[string]Handler

// Handle implements Handler.
func (m Mux) Handle(req Request) Reply {
	if h, ok := m[req.Method()]; ok {
		return h(req)
	}
	return Fail("", fmt.Sprintf("no such request - method %s(%d).%s is not implemented", req.Type, req.Version, req.Request), nil)
}

type wireReply struct {
	RequestId uint64         `json:"request-id"`
	Response  any            `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error-code,omitempty"`
	ErrorInfo map[string]any `json:"error-info,omitempty"`
}

// Conn is an in-memory jsoncodec.JSONConn whose far end is a Handler.
type Conn struct {
	handler Handler

	incoming chan []byte

	mu       sync.Mutex
	requests []Request

	closed    chan struct{}
	closeOnce sync.Once

	broken    chan struct{}
	breakOnce sync.Once
	breakErr  error
}

// NewConn returns a connection that answers every request with handler.
func NewConn(handler Handler) *Conn {
	return &Conn{
		handler:  handler,
		incoming: make(chan []byte),
		closed:   make(chan struct{}),
		broken:   make(chan struct{}),
	}
}

// Send implements jsoncodec.JSONConn.
func (c *Conn) Send(msg any) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	case <-c.broken:
		return c.breakErr
	default:
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Trace(err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.Trace(err)
	}
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	go c.serve(req)
	return nil
}

func (c *Conn) serve(req Request) {
	reply := c.handler(req)
	if reply.Drop {
		return
	}
	_ = c.Inject(wireReply{
		RequestId: req.RequestId,
		Response:  reply.Response,
		Error:     reply.Error,
		ErrorCode: reply.ErrorCode,
		ErrorInfo: reply.ErrorInfo,
	})
}

// Inject delivers msg to the client as if the controller had sent it. It
// blocks until the client reads it or the connection goes away.
func (c *Conn) Inject(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Trace(err)
	}
	return c.InjectRaw(data)
}

// InjectRaw delivers data, unparsed, to the client.
func (c *Conn) InjectRaw(data []byte) error {
	select {
	case c.incoming <- data:
		return nil
	case <-c.closed:
		return io.EOF
	case <-c.broken:
		return c.breakErr
	}
}

// Receive implements jsoncodec.JSONConn.
func (c *Conn) Receive(msg any) error {
	select {
	case data := <-c.incoming:
		return errors.Trace(json.Unmarshal(data, msg))
	case <-c.closed:
		return io.EOF
	case <-c.broken:
		return c.breakErr
	}
}

// Close implements jsoncodec.JSONConn.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

// Break makes the connection fail as if the network had gone away:
// every read and write from now on returns err.
func (c *Conn) Break(err error) {
	c.breakOnce.Do(func() {
		c.breakErr = err
		close(c.broken)
	})
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Requests returns every request sent so far, in order.
func (c *Conn) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.requests...)
}
