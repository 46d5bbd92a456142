// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package multiwatcher

import (
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
)

// Action describes what happened to an entity.
type Action string

const (
	// Add is sent the first time an entity is seen.
	Add Action = "add"
	// Change is sent when an existing entity is updated. Controllers also
	// use it for entities the watcher has never reported before.
	Change Action = "change"
	// Remove is sent when the entity has gone away.
	Remove Action = "remove"
)

// Validate returns an error if the action is not one we understand.
func (a Action) Validate() error {
	switch a {
	case Add, Change, Remove:
		return nil
	}
	return errors.NotValidf("action %q", string(a))
}

// Well known entity kinds.
const (
	KindModel             = "model"
	KindMachine           = "machine"
	KindApplication       = "application"
	KindRemoteApplication = "remoteApplication"
	KindApplicationOffer  = "applicationOffer"
	KindUnit              = "unit"
	KindRelation          = "relation"
	KindAnnotation        = "annotation"
	KindBlock             = "block"
	KindAction            = "action"
	KindCharm             = "charm"
)

// idFields holds the entity attribute used as the entity id for kinds
// that don't carry an "id" attribute.
var idFields = map[string]string{
	KindModel:             "model-uuid",
	KindApplication:       "name",
	KindRemoteApplication: "name",
	KindApplicationOffer:  "application-name",
	KindUnit:              "name",
	KindAnnotation:        "tag",
	KindCharm:             "charm-url",
}

// EntityId uniquely identifies an entity within a model.
type EntityId struct {
	Kind string `json:"kind"`
	Id   string `json:"id"`
}

// String implements fmt.Stringer.
func (id EntityId) String() string {
	return id.Kind + ":" + id.Id
}

// Delta holds details of a change to the model. The entity data is
// carried as decoded JSON; its schema is owned by the controller.
type Delta struct {
	Kind   string
	Action Action
	Data   map[string]any
}

// EntityId returns the identity of the entity the delta refers to.
func (d Delta) EntityId() EntityId {
	return EntityId{Kind: d.Kind, Id: EntityIdFor(d.Kind, d.Data)}
}

// EntityIdFor extracts the id of an entity of the given kind from its
// attributes. An entity without a usable id attribute has the empty id.
func EntityIdFor(kind string, data map[string]any) string {
	field, ok := idFields[kind]
	if !ok {
		field = "id"
	}
	switch v := data[field].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON implements json.Marshaler.
func (d Delta) MarshalJSON() ([]byte, error) {
	data := d.Data
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal([]any{d.Kind, d.Action, data})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Delta) UnmarshalJSON(data []byte) error {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return err
	}
	if len(elements) != 3 {
		return errors.Errorf(
			"expected 3 elements in top-level of JSON but got %d",
			len(elements))
	}
	var kind, action string
	if err := json.Unmarshal(elements[0], &kind); err != nil {
		return err
	}
	if err := json.Unmarshal(elements[1], &action); err != nil {
		return err
	}
	if err := Action(action).Validate(); err != nil {
		return errors.Annotatef(err, "delta for %q", kind)
	}
	var entity map[string]any
	if err := json.Unmarshal(elements[2], &entity); err != nil {
		return errors.Annotatef(err, "decoding %s entity", kind)
	}
	d.Kind = kind
	d.Action = Action(action)
	d.Data = entity
	return nil
}
