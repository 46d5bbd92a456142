// Copyright 2014 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/version/v2"
)

// adminFacadeVersion is the version of the Admin facade used to log in.
// Every supported controller speaks it, so it is not negotiated.
const adminFacadeVersion = 3

// facadeSchema describes the facade versions this client can speak to
// one series of controllers. A connection picks its schema once, at
// login, from the version the controller reports.
type facadeSchema interface {
	// Series names the controller series the schema is for.
	Series() string

	// Versions returns, for each facade the client uses, the versions
	// the client knows how to speak.
	Versions() map[string][]int
}

type schema2x struct{}

func (schema2x) Series() string { return "2.x" }

func (schema2x) Versions() map[string][]int {
	return map[string][]int{
		"Admin":      {3},
		"AllWatcher": {1, 2},
		"Client":     {1, 2, 3},
		"Pinger":     {1},
	}
}

type schema3x struct{}

func (schema3x) Series() string { return "3.x" }

func (schema3x) Versions() map[string][]int {
	return map[string][]int{
		"Admin":      {3, 4},
		"AllWatcher": {3, 4},
		"Client":     {6, 7, 8},
		"Pinger":     {1},
	}
}

// schemaFor returns the schema for a controller reporting the given
// version. Controllers too old to report a version are all 2.x.
func schemaFor(serverVersion string) (facadeSchema, version.Number, error) {
	if serverVersion == "" {
		return schema2x{}, version.Zero, nil
	}
	v, err := version.Parse(serverVersion)
	if err != nil {
		return nil, version.Zero, errors.Annotatef(err, "controller version %q", serverVersion)
	}
	if v.Major < 3 {
		return schema2x{}, v, nil
	}
	return schema3x{}, v, nil
}

// bestVersion returns the newest version present in both desired and
// available, or 0 if there is none.
func bestVersion(desired, available []int) int {
	common := set.NewInts(desired...).Intersection(set.NewInts(available...))
	if common.IsEmpty() {
		return 0
	}
	values := common.SortedValues()
	return values[len(values)-1]
}
