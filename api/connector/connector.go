// Copyright 2022 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package connector provides ways of obtaining a controller connection
// from configuration.
package connector

import (
	"context"

	"github.com/juju/python-libjuju-sub000/api"
)

// A Connector is able to provide a Connection, which can be used to make
// API calls.
type Connector interface {
	Connect(ctx context.Context, dialOptions ...api.DialOption) (api.Connection, error)
}
