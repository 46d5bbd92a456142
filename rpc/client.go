// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"context"
	"time"

	"github.com/juju/errors"

	"github.com/juju/python-libjuju-sub000/internal/interrupt"
)

// Call invokes the named action on the object of the given type with the given
// id. The returned values will be stored in response, which should be a pointer.
// If the action fails remotely, the error will be a *RequestError, or a
// *ResultsError if some of the results of a bulk call failed.
// The params value may be nil if no parameters are provided; the response value
// may be nil to indicate that any result should be discarded.
func (conn *Conn) Call(ctx context.Context, req Request, params, response any) (err error) {
	// Before sending the request, check if the context has been canceled.
	// This is done to prevent any unnecessary work from being done if the
	// context has been canceled.
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	started := time.Now()
	conn.metrics.callStarted(req)
	defer func() {
		conn.metrics.callFinished(req, started, err)
	}()

	slot, err := conn.send(req, params)
	if err != nil {
		return errors.Trace(err)
	}

	msg, err := interrupt.Race(ctx, conn.closingCh, slot.Wait)
	if err != nil {
		// Nobody will be waiting for a response any more.
		slot.Abandon()
		if interrupt.IsInterrupted(err) {
			// The connection is being closed; don't wait for the
			// input loop to tell us.
			return ErrShutdown
		}
		return errors.Trace(err)
	}
	return decodeResponse(msg, response)
}

// send registers a slot for a new request id and writes the request.
func (conn *Conn) send(req Request, params any) (*Slot, error) {
	conn.mutex.Lock()
	switch {
	case conn.dead == nil && !conn.closing:
		conn.mutex.Unlock()
		return nil, errors.New("rpc: call made when connection not started")
	case conn.closing:
		conn.mutex.Unlock()
		return nil, ErrShutdown
	}
	conn.mutex.Unlock()

	// Register before sending, so that the response can never
	// arrive before anyone is waiting for it.
	reqId := conn.reqId.Add(1)
	slot, err := conn.pending.Register(reqId)
	if err != nil {
		return nil, err
	}

	hdr := &Header{
		RequestId: reqId,
		Request:   req,
	}
	if params == nil {
		params = struct{}{}
	}

	conn.sending.Lock()
	err = conn.codec.WriteMessage(hdr, params)
	conn.sending.Unlock()
	if err != nil {
		slot.Abandon()
		return nil, errors.Annotatef(err, "sending request %d (%s.%s)", reqId, req.Type, req.Action)
	}
	logger.Tracef("-> %d %s(%d).%s", reqId, req.Type, req.Version, req.Action)
	return slot, nil
}
