// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/juju/errors"
)

// ErrShutdown is returned when a request is made on a connection that is
// shutting down, and to every pending call when the caller closes the
// connection.
const ErrShutdown = errors.ConstError("connection is shut down")

// IsShutdownErr returns true if the error is ErrShutdown.
func IsShutdownErr(err error) bool {
	return errors.Is(err, ErrShutdown)
}

// ErrorCoder represents an any error that has an associated
// error code. An error code is a short string that represents the
// kind of an error.
type ErrorCoder interface {
	ErrorCode() string
}

// ConnectivityError is returned when the connection to the controller
// could not be established or was lost while requests were outstanding.
type ConnectivityError struct {
	// Addr holds the address being talked to.
	Addr string
	// Err holds the underlying failure.
	Err error
}

// Error implements error.
func (e *ConnectivityError) Error() string {
	addr := e.Addr
	if addr == "" {
		addr = "controller"
	}
	if e.Err == nil {
		return fmt.Sprintf("connection to %s failed", addr)
	}
	return fmt.Sprintf("connection to %s failed: %v", addr, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// IsConnectivityError reports whether err is, or wraps, a
// *ConnectivityError.
func IsConnectivityError(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}

// RequestError represents an error returned from an RPC request: the
// controller rejected the whole call.
type RequestError struct {
	Message string
	Code    string
	Info    map[string]any
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return e.Message + " (" + e.Code + ")"
	}
	return e.Message
}

// ErrorCode returns the error code associated with the error.
func (e *RequestError) ErrorCode() string {
	return e.Code
}

// ErrorInfo returns the error information associated with the error.
func (e *RequestError) ErrorInfo() map[string]any {
	return e.Info
}

// UnmarshalInfo attempts to unmarshal the information contained in the Info
// field of a RequestError into an object instance a pointer to which is passed
// via the to argument. The method will return an error if a non-pointer arg
// is provided.
func (e *RequestError) UnmarshalInfo(to any) error {
	if reflect.ValueOf(to).Kind() != reflect.Ptr {
		return errors.New("UnmarshalInfo expects a pointer as an argument")
	}

	data, err := json.Marshal(e.Info)
	if err != nil {
		return errors.Annotate(err, "could not marshal error information")
	}
	err = json.Unmarshal(data, to)
	if err != nil {
		return errors.Annotate(err, "could not unmarshal error information to provided target")
	}
	return nil
}

// ResultsError is returned when a bulk call was accepted but one or more
// of its results carry an error. The call as a whole is treated as
// failed.
type ResultsError struct {
	// Errors holds the failing results, in result order.
	Errors []*RequestError
}

// Messages returns the message of every failing result.
func (e *ResultsError) Messages() []string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Message
	}
	return messages
}

func (e *ResultsError) Error() string {
	return strings.Join(e.Messages(), "\n")
}

// wireError is the shape of an error held inside a response body.
type wireError struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Info    map[string]any `json:"info,omitempty"`
}

// failed reports whether the error describes a failure. An error
// without a message does not.
func (e *wireError) failed() bool {
	return e != nil && e.Message != ""
}

func (e *wireError) requestError() *RequestError {
	return &RequestError{
		Message: e.Message,
		Code:    e.Code,
		Info:    e.Info,
	}
}

// responseErrors picks out the parts of a response body that can carry
// errors.
type responseErrors struct {
	Results []json.RawMessage `json:"results"`
	Error   *wireError        `json:"error"`
}

type resultError struct {
	Error *wireError `json:"error"`
}

// decodeResponse turns a response message into either an error or the
// decoded response. In priority order:
//   - a header error fails the whole call with a *RequestError;
//   - a "results" list with any entry whose error has a message fails
//     with a *ResultsError carrying every failing entry;
//   - a body level "error" with a message and no results fails with a
//     *RequestError;
//   - anything else is decoded into response.
//
// Bodies that aren't shaped like any of the above are passed through to
// response unchanged.
func decodeResponse(msg *Message, response any) error {
	hdr := msg.Header
	if hdr.Error != "" {
		// Report unknown methods as not implemented.
		if strings.HasPrefix(hdr.Error, "no such request ") && hdr.ErrorCode == "" {
			hdr.ErrorCode = codeNotImplemented
		}
		return &RequestError{
			Message: hdr.Error,
			Code:    hdr.ErrorCode,
			Info:    hdr.ErrorInfo,
		}
	}

	body := bytes.TrimSpace(msg.Body)
	if len(body) > 0 && body[0] == '{' {
		var parts responseErrors
		if err := json.Unmarshal(body, &parts); err == nil {
			if parts.Results != nil {
				if err := resultsError(parts.Results); err != nil {
					return err
				}
			} else if parts.Error.failed() {
				return parts.Error.requestError()
			}
		}
	}

	if response == nil || len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(body, response); err != nil {
		return errors.Annotatef(err, "decoding response for request %d", hdr.RequestId)
	}
	return nil
}

func resultsError(results []json.RawMessage) error {
	var failed []*RequestError
	for _, raw := range results {
		var result resultError
		if err := json.Unmarshal(raw, &result); err != nil {
			// Not an object; it can't carry an error.
			continue
		}
		if result.Error.failed() {
			failed = append(failed, result.Error.requestError())
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &ResultsError{Errors: failed}
}

const codeNotImplemented = "not implemented"
