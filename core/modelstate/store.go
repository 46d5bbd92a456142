// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package modelstate holds the client side mirror of a model's entities,
// kept up to date by applying deltas from the controller.
package modelstate

import (
	"sync"

	"github.com/juju/collections/set"

	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
)

// Entity is a snapshot of one entity of the model. Entities handed out by
// the store are copies; mutating them does not affect the store.
type Entity struct {
	Kind string
	Id   string
	Data map[string]any
}

// EntityId returns the identity of the entity.
func (e *Entity) EntityId() multiwatcher.EntityId {
	return multiwatcher.EntityId{Kind: e.Kind, Id: e.Id}
}

// Copy returns a deep copy of the entity. Copying a nil entity gives nil.
func (e *Entity) Copy() *Entity {
	if e == nil {
		return nil
	}
	return &Entity{
		Kind: e.Kind,
		Id:   e.Id,
		Data: copyDataMap(e.Data),
	}
}

// Reader is the read-only view of the store handed to observers.
type Reader interface {
	// Get returns a copy of the entity, or false if it is not known.
	Get(kind, id string) (*Entity, bool)
	// Entities returns copies of every entity of the given kind.
	Entities(kind string) []*Entity
	// Kinds returns the sorted entity kinds currently held.
	Kinds() []string
	// Len returns the number of entities held.
	Len() int
}

// Store is the entity table, keyed by kind and id.
type Store struct {
	mu       sync.RWMutex
	entities map[string]map[string]*Entity
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]map[string]*Entity),
	}
}

// Apply applies the delta to the store and returns snapshots of the entity
// before and after. old is nil for an entity seen for the first time and
// new is nil for a removal. Removing an unknown entity is a no-op
// returning two nils.
func (s *Store) Apply(delta multiwatcher.Delta) (old, new *Entity) {
	id := delta.EntityId()

	s.mu.Lock()
	defer s.mu.Unlock()

	byId := s.entities[id.Kind]
	existing := byId[id.Id]

	if delta.Action == multiwatcher.Remove {
		if existing == nil {
			return nil, nil
		}
		delete(byId, id.Id)
		if len(byId) == 0 {
			delete(s.entities, id.Kind)
		}
		return existing.Copy(), nil
	}

	if byId == nil {
		byId = make(map[string]*Entity)
		s.entities[id.Kind] = byId
	}
	// Store our own copy so that the caller's delta can't alias the
	// stored record.
	record := &Entity{
		Kind: id.Kind,
		Id:   id.Id,
		Data: copyDataMap(delta.Data),
	}
	byId[id.Id] = record
	return existing.Copy(), record.Copy()
}

// Get is part of the Reader interface.
func (s *Store) Get(kind, id string) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[kind][id]
	if !ok {
		return nil, false
	}
	return e.Copy(), true
}

// Entities is part of the Reader interface.
func (s *Store) Entities(kind string) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byId := s.entities[kind]
	ids := set.NewStrings()
	for id := range byId {
		ids.Add(id)
	}
	result := make([]*Entity, 0, len(byId))
	for _, id := range ids.SortedValues() {
		result = append(result, byId[id].Copy())
	}
	return result
}

// Kinds is part of the Reader interface.
func (s *Store) Kinds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := set.NewStrings()
	for kind := range s.entities {
		kinds.Add(kind)
	}
	return kinds.SortedValues()
}

// Len is part of the Reader interface.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for _, byId := range s.entities {
		n += len(byId)
	}
	return n
}
