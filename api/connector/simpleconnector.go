// Copyright 2022 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package connector

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"gopkg.in/macaroon.v2"

	"github.com/juju/python-libjuju-sub000/api"
)

// SimpleConfig aims to provide the same API surface as pilot juju for
// obtaining an api connection.
type SimpleConfig struct {
	// Addresses of controllers (at least one required, more than one for HA).
	ControllerAddresses []string `yaml:"controller-addresses"`

	// CACert holds the PEM encoded certificate that signs the
	// controllers' certificates.
	CACert string `yaml:"ca-cert"`

	// UUID of model to connect to (optional)
	ModelUUID string `yaml:"model-uuid"`

	// Either Username/Password or Macaroons is required to get authentication.
	Username  string           `yaml:"username"`
	Password  string           `yaml:"password"`
	Macaroons []macaroon.Slice `yaml:"-"`
}

// A SimpleConnector can provide connections from a simple set of options.
type SimpleConnector struct {
	info            api.Info
	defaultDialOpts api.DialOpts
}

var _ Connector = (*SimpleConnector)(nil)

// NewSimple returns an instance of *SimpleConnector configured to
// connect according to the specified options.  If some options are invalid an
// error is returned.
func NewSimple(opts SimpleConfig, dialOptions ...api.DialOption) (*SimpleConnector, error) {
	info := api.Info{
		Addrs:     opts.ControllerAddresses,
		CACert:    opts.CACert,
		Macaroons: opts.Macaroons,
	}
	if opts.ModelUUID != "" {
		if !names.IsValidModel(opts.ModelUUID) {
			return nil, errors.NotValidf("model UUID %q", opts.ModelUUID)
		}
		info.ModelTag = names.NewModelTag(opts.ModelUUID)
	}
	if opts.Username != "" {
		if !names.IsValidUser(opts.Username) {
			return nil, errors.NotValidf("user name %q", opts.Username)
		}
		info.Tag = names.NewUserTag(opts.Username)
		info.Password = opts.Password
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}

	dialOpts := api.DefaultDialOpts()
	if opts.Username == "" {
		dialOpts.LoginProvider = api.NewMacaroonLoginProvider(opts.Macaroons)
	}

	conn := &SimpleConnector{
		info:            info,
		defaultDialOpts: dialOpts,
	}

	for _, f := range dialOptions {
		f(&conn.defaultDialOpts)
	}
	return conn, nil
}

// Info returns the connection details the connector was built from.
func (c *SimpleConnector) Info() api.Info {
	return c.info
}

// Connect returns a Connection according to c's configuration.
func (c *SimpleConnector) Connect(ctx context.Context, dialOptions ...api.DialOption) (api.Connection, error) {
	opts := c.defaultDialOpts
	for _, f := range dialOptions {
		f(&opts)
	}
	return api.Open(ctx, &c.info, opts)
}
