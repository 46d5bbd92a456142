// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

// ErrDuplicateRequest is returned when registering a request id that is
// already waiting for a response.
const ErrDuplicateRequest = errors.ConstError("duplicate request id")

// Multiplexer matches responses to the callers waiting for them. Each
// registered request id owns exactly one slot; the slot is forgotten as
// soon as it is resolved, so ids do not accumulate.
type Multiplexer struct {
	mu     sync.Mutex
	slots  map[uint64]*Slot
	failed error
}

// NewMultiplexer returns an empty multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		slots: make(map[uint64]*Slot),
	}
}

// Slot is the single-resolution handle a caller waits on for the
// response to one request.
type Slot struct {
	id   uint64
	mux  *Multiplexer
	done chan struct{}

	// msg and err are written once, before done is closed.
	msg *Message
	err error
}

// ID returns the request id the slot was registered for.
func (s *Slot) ID() uint64 {
	return s.id
}

// Register creates the slot for id. It must be called before the request
// is sent so that a fast response always finds its waiter. Once FailAll
// has been called every registration fails with the same error.
func (m *Multiplexer) Register(id uint64) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed != nil {
		return nil, m.failed
	}
	if _, ok := m.slots[id]; ok {
		return nil, errors.Annotatef(ErrDuplicateRequest, "request %d", id)
	}
	s := &Slot{
		id:   id,
		mux:  m,
		done: make(chan struct{}),
	}
	m.slots[id] = s
	return s, nil
}

// Fulfill resolves the slot waiting on id with msg. It reports false if
// nobody is waiting, in which case msg is dropped.
func (m *Multiplexer) Fulfill(id uint64, msg *Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return false
	}
	delete(m.slots, id)
	s.msg = msg
	close(s.done)
	return true
}

// FailAll resolves every outstanding slot with err. Only the first call
// has any effect.
func (m *Multiplexer) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed != nil {
		return
	}
	m.failed = err
	for id, s := range m.slots {
		s.err = err
		close(s.done)
		delete(m.slots, id)
	}
}

// Len returns the number of slots still waiting.
func (m *Multiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *Multiplexer) abandon(s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slots[s.id] == s {
		delete(m.slots, s.id)
	}
}

// Abandon removes the slot without resolving it. A response arriving
// later for the same id is dropped.
func (s *Slot) Abandon() {
	s.mux.abandon(s)
}

// Wait blocks until the slot is resolved or ctx is done. If ctx wins,
// only this slot is abandoned; other requests are unaffected.
func (s *Slot) Wait(ctx context.Context) (*Message, error) {
	select {
	case <-s.done:
		return s.msg, s.err
	case <-ctx.Done():
	}
	s.Abandon()
	// The slot may have been resolved while we were abandoning it.
	select {
	case <-s.done:
		return s.msg, s.err
	default:
		return nil, context.Cause(ctx)
	}
}
