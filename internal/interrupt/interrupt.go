// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package interrupt provides the one way that blocking operations in this
// module are made cancellable: the operation races a cancellation signal
// and whichever side finishes first wins.
package interrupt

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// ErrInterrupted is returned by Race and Sleep when the abort channel is
// closed before the operation completes.
const ErrInterrupted = errors.ConstError("operation interrupted")

// IsInterrupted reports whether err was caused by an abort signal.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

type outcome[T any] struct {
	value T
	err   error
}

// Race runs op in its own goroutine and waits for the first of: op
// returning, ctx being done, or abort being closed. When op loses, the
// context passed to it is cancelled and its eventual result is discarded.
// A nil abort channel never fires.
func Race[T any](ctx context.Context, abort <-chan struct{}, op func(context.Context) (T, error)) (T, error) {
	var zero T

	// Don't start the operation at all if the race is already decided.
	select {
	case <-abort:
		return zero, ErrInterrupted
	default:
	}
	if err := ctx.Err(); err != nil {
		return zero, context.Cause(ctx)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the losing goroutine never blocks on send.
	done := make(chan outcome[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-abort:
		return zero, ErrInterrupted
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	}
}

// Sleep waits for d to elapse on the given clock. It returns early with
// ErrInterrupted if abort is closed, or with the context's cause if ctx is
// done first.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration, abort <-chan struct{}) error {
	_, err := Race(ctx, abort, func(ctx context.Context) (struct{}, error) {
		timer := clk.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.Chan():
			return struct{}{}, nil
		case <-ctx.Done():
			return struct{}{}, context.Cause(ctx)
		}
	})
	return err
}
