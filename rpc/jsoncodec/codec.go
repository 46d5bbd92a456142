// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package jsoncodec encodes RPC messages as JSON objects, one object per
// message frame.
package jsoncodec

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/python-libjuju-sub000/rpc"
)

var logger = loggo.GetLogger("juju.rpc.jsoncodec")

// JSONConn sends and receives messages to an underlying connection
// in JSON format.
type JSONConn interface {
	// Send sends a message.
	Send(msg any) error
	// Receive receives a message into msg.
	Receive(msg any) error
	Close() error
}

// Codec implements rpc.Codec for a connection.
type Codec struct {
	// msg holds the message that's just been read by ReadMessage,
	// ready to be decoded.
	msg  inMsg
	conn JSONConn

	mu      sync.Mutex
	closing bool
}

// New returns an rpc codec that uses conn to send and receive
// messages.
func New(conn JSONConn) *Codec {
	return &Codec{
		conn: conn,
	}
}

// inMsg is the wire form of a message on its way in. The params and
// response bodies are left encoded.
type inMsg struct {
	RequestId uint64          `json:"request-id"`
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	Id        string          `json:"id"`
	Request   string          `json:"request"`
	Params    json.RawMessage `json:"params"`
	Error     string          `json:"error"`
	ErrorCode string          `json:"error-code"`
	ErrorInfo map[string]any  `json:"error-info"`
	Response  json.RawMessage `json:"response"`
}

// outMsg is the wire form of a message on its way out.
type outMsg struct {
	RequestId uint64         `json:"request-id"`
	Type      string         `json:"type,omitempty"`
	Version   int            `json:"version,omitempty"`
	Id        string         `json:"id,omitempty"`
	Request   string         `json:"request,omitempty"`
	Params    any            `json:"params,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error-code,omitempty"`
	ErrorInfo map[string]any `json:"error-info,omitempty"`
	Response  any            `json:"response,omitempty"`
}

// Close implements rpc.Codec.
func (c *Codec) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Codec) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// ReadMessage implements rpc.Codec.
func (c *Codec) ReadMessage(msg *rpc.Message) error {
	c.msg = inMsg{}
	if err := c.conn.Receive(&c.msg); err != nil {
		// If we've closed the connection, we may get a spurious error,
		// so ignore it.
		if c.isClosing() || err == io.EOF {
			return io.EOF
		}
		return errors.Annotate(err, "error receiving message")
	}
	msg.Header = rpc.Header{
		RequestId: c.msg.RequestId,
		Request: rpc.Request{
			Type:    c.msg.Type,
			Version: c.msg.Version,
			Id:      c.msg.Id,
			Action:  c.msg.Request,
		},
		Error:     c.msg.Error,
		ErrorCode: c.msg.ErrorCode,
		ErrorInfo: c.msg.ErrorInfo,
	}
	if msg.Header.IsRequest() {
		msg.Body = c.msg.Params
	} else {
		msg.Body = c.msg.Response
	}
	if logger.IsTraceEnabled() {
		logger.Tracef("<- %d %s", msg.Header.RequestId, msg.Body)
	}
	return nil
}

// WriteMessage implements rpc.Codec.
func (c *Codec) WriteMessage(hdr *rpc.Header, body any) error {
	m := outMsg{
		RequestId: hdr.RequestId,
		Type:      hdr.Request.Type,
		Version:   hdr.Request.Version,
		Id:        hdr.Request.Id,
		Request:   hdr.Request.Action,
		Error:     hdr.Error,
		ErrorCode: hdr.ErrorCode,
		ErrorInfo: hdr.ErrorInfo,
	}
	if hdr.IsRequest() {
		m.Params = body
	} else {
		m.Response = body
	}
	return errors.Trace(c.conn.Send(&m))
}
