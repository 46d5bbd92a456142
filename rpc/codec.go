// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import "encoding/json"

// A Codec implements reading and writing of messages in an RPC
// session. The RPC code calls WriteMessage to write a message to the
// connection and ReadMessage to read the next one.
type Codec interface {
	// ReadMessage reads the next message into msg. The body is left
	// undecoded.
	ReadMessage(msg *Message) error

	// WriteMessage writes a message with the given header and body.
	WriteMessage(hdr *Header, body any) error

	// Close closes the codec. It may be called concurrently
	// and should cause ReadMessage to unblock.
	Close() error
}

// Request identifies the remote method a call is made on.
type Request struct {
	// Type holds the facade name to act on.
	Type string

	// Version holds the version of Type we will be acting on.
	Version int

	// Id holds the id of the object to act on.
	Id string

	// Action holds the method to invoke on the object.
	Action string
}

// Header is a header written before every RPC call. Since RPC requests
// can be initiated from either side, the header may represent a request
// from the other side or a response to an outstanding request.
type Header struct {
	// RequestId holds the sequence number of the request.
	RequestId uint64

	// Request holds the action to invoke.
	Request Request

	// Error holds the error, if any.
	Error string

	// ErrorCode holds the code of the error, if any.
	ErrorCode string

	// ErrorInfo holds an optional set of additional information for an
	// error, if any.
	ErrorInfo map[string]any
}

// IsRequest returns whether the header represents an RPC request. If
// it is not a request, it is a response.
func (hdr *Header) IsRequest() bool {
	return hdr.Request.Type != "" || hdr.Request.Action != ""
}

// Message is a header together with its still encoded body.
type Message struct {
	Header Header
	Body   json.RawMessage
}
