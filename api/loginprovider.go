// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"gopkg.in/macaroon.v2"

	"github.com/juju/python-libjuju-sub000/api/base"
	"github.com/juju/python-libjuju-sub000/rpc/params"
)

// ClientVersion is sent to the controller at login.
const ClientVersion = "3.5.0"

// LoginProvider provides the means to log in to a controller.
type LoginProvider interface {
	// Login performs the Admin.Login call over caller. A controller
	// that wants the client elsewhere answers with a redirection
	// error; one that wants a third-party discharge answers with a
	// result whose DischargeRequired field is set.
	Login(ctx context.Context, caller base.APICaller) (*params.LoginResult, error)
}

// NewUserpassLoginProvider returns a LoginProvider implementation that
// authenticates the entity with the given name and password or
// macaroons. The nonce should be empty unless logging in as a machine
// agent.
func NewUserpassLoginProvider(
	tag names.Tag,
	password string,
	nonce string,
	macaroons []macaroon.Slice,
) LoginProvider {
	return &userpassLoginProvider{
		tag:       tag,
		password:  password,
		nonce:     nonce,
		macaroons: macaroons,
	}
}

type userpassLoginProvider struct {
	tag       names.Tag
	password  string
	nonce     string
	macaroons []macaroon.Slice
}

// Login implements the LoginProvider.Login method.
func (p *userpassLoginProvider) Login(ctx context.Context, caller base.APICaller) (*params.LoginResult, error) {
	var tag string
	if p.tag != nil {
		tag = p.tag.String()
	}
	request := &params.LoginRequest{
		AuthTag:       tag,
		Credentials:   p.password,
		Nonce:         p.nonce,
		Macaroons:     p.macaroons,
		ClientVersion: ClientVersion,
	}
	return login(ctx, caller, request)
}

// NewMacaroonLoginProvider returns a LoginProvider that presents only
// the given macaroons. A controller that needs more will ask for a
// discharge.
func NewMacaroonLoginProvider(macaroons []macaroon.Slice) LoginProvider {
	return &macaroonLoginProvider{macaroons: macaroons}
}

type macaroonLoginProvider struct {
	macaroons []macaroon.Slice
}

// Login implements the LoginProvider.Login method.
func (p *macaroonLoginProvider) Login(ctx context.Context, caller base.APICaller) (*params.LoginResult, error) {
	request := &params.LoginRequest{
		Macaroons:     p.macaroons,
		ClientVersion: ClientVersion,
	}
	return login(ctx, caller, request)
}

func login(ctx context.Context, caller base.APICaller, request *params.LoginRequest) (*params.LoginResult, error) {
	var result params.LoginResult
	err := caller.APICall(ctx, "Admin", adminFacadeVersion, "", "Login", request, &result)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

// NewTryInOrderLoginProvider returns a login provider that will attempt to
// log in using all the specified login providers in sequence - returning on
// the first successful login.
func NewTryInOrderLoginProvider(providers ...LoginProvider) LoginProvider {
	return &tryInOrderLoginProviders{
		providers: providers,
	}
}

type tryInOrderLoginProviders struct {
	providers []LoginProvider
}

// Login implements the LoginProvider.Login method.
func (p *tryInOrderLoginProviders) Login(ctx context.Context, caller base.APICaller) (*params.LoginResult, error) {
	var lastError error
	for i, provider := range p.providers {
		result, err := provider.Login(ctx, caller)
		if err == nil {
			return result, nil
		}
		// A redirect applies whoever asks; there's no point trying
		// the rest.
		if params.IsCodeRedirect(err) {
			return nil, errors.Trace(err)
		}
		logger.Debugf("login provider %d: %v", i, err)
		lastError = err
	}
	if lastError == nil {
		return nil, errors.New("no login providers")
	}
	return nil, lastError
}
