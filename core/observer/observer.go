// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package observer dispatches applied model deltas to registered
// callbacks.
package observer

import (
	"regexp"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"

	"github.com/juju/python-libjuju-sub000/core/modelstate"
	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
)

var logger = loggo.GetLogger("juju.core.observer")

// Observer is called for every applied delta that matches its filter.
// old and new are snapshots taken when the delta was applied; either may
// be nil. Returned errors are logged and otherwise ignored.
type Observer func(delta multiwatcher.Delta, old, new *modelstate.Entity, store modelstate.Reader) error

// Filter restricts which deltas an observer sees. Zero fields match
// everything.
type Filter struct {
	// Kind matches the entity kind, e.g. "unit".
	Kind string

	// Action matches the effective action of the delta. A delta for an
	// entity that had no previous record counts as an add, whatever
	// action the controller sent.
	Action multiwatcher.Action

	// IDPattern, if set, must match the entity id.
	IDPattern *regexp.Regexp

	// Predicate, if set, must return true for the delta.
	Predicate func(multiwatcher.Delta) bool
}

// Validate returns an error if the filter can never be satisfied.
func (f Filter) Validate() error {
	if f.Action != "" {
		if err := f.Action.Validate(); err != nil {
			return errors.Trace(err)
		}
	}
	if strings.Contains(f.Kind, ".") {
		return errors.NotValidf("kind %q", f.Kind)
	}
	return nil
}

func (f Filter) matchTopic(topic string) bool {
	kind, action, _ := strings.Cut(topic, ".")
	if f.Kind != "" && f.Kind != kind {
		return false
	}
	if f.Action != "" && string(f.Action) != action {
		return false
	}
	return true
}

func (f Filter) matchDelta(delta multiwatcher.Delta) bool {
	if f.IDPattern != nil && !f.IDPattern.MatchString(delta.EntityId().Id) {
		return false
	}
	if f.Predicate != nil && !f.Predicate(delta) {
		return false
	}
	return true
}

// notification is the payload published on the hub.
type notification struct {
	delta multiwatcher.Delta
	old   *modelstate.Entity
	new   *modelstate.Entity
}

// Registry holds the registered observers.
type Registry struct {
	store modelstate.Reader
	hub   *pubsub.SimpleHub

	mu    sync.Mutex
	count int
}

// NewRegistry returns a registry whose observers are given store as their
// read-only view of the model.
func NewRegistry(store modelstate.Reader) *Registry {
	return &Registry{
		store: store,
		hub: pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
			Logger: logger.Child("hub"),
		}),
	}
}

// Register adds an observer. The returned func removes it again.
func (r *Registry) Register(obs Observer, filter Filter) (func(), error) {
	if obs == nil {
		return nil, errors.NotValidf("nil observer")
	}
	if err := filter.Validate(); err != nil {
		return nil, errors.Annotate(err, "registering observer")
	}

	unsubscribe := r.hub.SubscribeMatch(filter.matchTopic, func(topic string, data interface{}) {
		n, ok := data.(notification)
		if !ok {
			logger.Criticalf("programming error: topic data expected notification, got %T", data)
			return
		}
		if !filter.matchDelta(n.delta) {
			return
		}
		r.invoke(obs, n)
	})

	r.mu.Lock()
	r.count++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			r.mu.Lock()
			r.count--
			r.mu.Unlock()
		})
	}, nil
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Notify invokes every matching observer with the applied delta and
// returns once they have all been called. Each matching observer is
// called exactly once.
func (r *Registry) Notify(delta multiwatcher.Delta, old, new *modelstate.Entity) {
	wait := r.hub.Publish(Topic(delta, old), notification{
		delta: delta,
		old:   old,
		new:   new,
	})
	wait()
}

// Topic returns the hub topic for an applied delta: the entity kind and
// the effective action, joined by a dot.
func Topic(delta multiwatcher.Delta, old *modelstate.Entity) string {
	action := delta.Action
	if old == nil && action != multiwatcher.Remove {
		action = multiwatcher.Add
	}
	return delta.Kind + "." + string(action)
}

func (r *Registry) invoke(obs Observer, n notification) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("observer panicked handling %s: %v\n%s", n.delta.EntityId(), p, debug.Stack())
		}
	}()
	// Each observer gets its own snapshots so that one observer can't
	// change what another sees.
	if err := obs(n.delta, n.old.Copy(), n.new.Copy(), r.store); err != nil {
		logger.Errorf("observer failed handling %s: %v", n.delta.EntityId(), err)
	}
}
