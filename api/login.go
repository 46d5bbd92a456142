// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/names/v5"

	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/rpc/params"
)

// endpoint is one controller: the addresses it may be reached on and
// the CA certificate that signs its server certificate.
type endpoint struct {
	addrs  []string
	caCert string
}

type loginOutcomeKind int

const (
	loginSucceeded loginOutcomeKind = iota
	loginRedirected
	loginDischargeRequired
)

func (k loginOutcomeKind) String() string {
	switch k {
	case loginSucceeded:
		return "succeeded"
	case loginRedirected:
		return "redirected"
	case loginDischargeRequired:
		return "discharge required"
	}
	return "unknown"
}

// loginOutcome is the result of one login attempt that the controller
// answered without rejecting the client.
type loginOutcome struct {
	kind loginOutcomeKind

	// result is set when the login succeeded.
	result *params.LoginResult

	// redirect holds the controllers to try instead.
	redirect []endpoint

	// reason holds why a discharge is required.
	reason string
}

// negotiator works through a list of controllers until one of them
// accepts a login.
type negotiator struct {
	info *Info
	opts DialOpts
	dial func(ctx context.Context, ep endpoint) (*state, error)
}

// run returns the logged in connection. If every controller has been
// tried without success it fails with a *rpc.ConnectivityError naming
// the first requested address. A controller that rejects the
// credentials fails the run at once.
func (n *negotiator) run(ctx context.Context) (*state, error) {
	worklist := []endpoint{{addrs: n.info.Addrs, caCert: n.info.CACert}}
	var lastErr error
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, context.Cause(ctx)
		}
		ep := worklist[0]
		worklist = worklist[1:]

		st, err := n.dial(ctx, ep)
		if err != nil {
			logger.Debugf("cannot connect to %v: %v", ep.addrs, err)
			lastErr = err
			continue
		}

		outcome, err := st.attemptLogin(ctx, n.opts.LoginProvider)
		if err != nil {
			_ = st.client.Close()
			return nil, errors.Trace(err)
		}
		logger.Debugf("login to %s %v", st.addr, outcome.kind)
		switch outcome.kind {
		case loginSucceeded:
			if err := st.finishLogin(outcome.result); err != nil {
				_ = st.client.Close()
				return nil, errors.Trace(err)
			}
			return st, nil
		case loginRedirected:
			worklist = append(worklist, outcome.redirect...)
			lastErr = errors.Errorf("redirected by %s", st.addr)
		case loginDischargeRequired:
			lastErr = errors.Errorf("discharge required by %s: %s", st.addr, outcome.reason)
		}
		_ = st.client.Close()
	}
	return nil, &rpc.ConnectivityError{Addr: n.info.Addrs[0], Err: lastErr}
}

// attemptLogin logs in with provider and classifies the answer.
func (s *state) attemptLogin(ctx context.Context, provider LoginProvider) (loginOutcome, error) {
	result, err := provider.Login(ctx, s)
	switch {
	case params.IsCodeRedirect(err):
		redirect, err := s.redirectEndpoints(ctx, err)
		if err != nil {
			return loginOutcome{}, errors.Annotatef(err, "following redirect from %s", s.addr)
		}
		return loginOutcome{kind: loginRedirected, redirect: redirect}, nil
	case params.IsCodeDischargeRequired(err):
		return loginOutcome{kind: loginDischargeRequired, reason: errors.Cause(err).Error()}, nil
	case err != nil:
		return loginOutcome{}, errors.Trace(err)
	case result.DischargeRequired != nil:
		return loginOutcome{kind: loginDischargeRequired, reason: result.DischargeRequiredReason}, nil
	}
	return loginOutcome{kind: loginSucceeded, result: result}, nil
}

// redirectEndpoints returns the controllers named by a redirection
// error. Controllers that don't put them in the error are asked for
// them.
func (s *state) redirectEndpoints(ctx context.Context, redirectErr error) ([]endpoint, error) {
	var info params.RedirectErrorInfo
	var reqErr *rpc.RequestError
	if errors.As(redirectErr, &reqErr) && len(reqErr.Info) > 0 {
		if err := reqErr.UnmarshalInfo(&info); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if len(info.Servers) == 0 {
		var result params.RedirectInfoResult
		err := s.APICall(ctx, "Admin", adminFacadeVersion, "", "RedirectInfo", nil, &result)
		if err != nil {
			return nil, errors.Annotate(err, "getting redirect info")
		}
		info.Servers = result.Servers
		info.CACert = result.CACert
	}

	var endpoints []endpoint
	for _, server := range info.Servers {
		addrs := params.FlattenHostPorts([][]params.HostPort{server})
		if len(addrs) == 0 {
			continue
		}
		endpoints = append(endpoints, endpoint{addrs: addrs, caCert: info.CACert})
	}
	if len(endpoints) == 0 {
		return nil, errors.New("redirected without any controller addresses")
	}
	return endpoints, nil
}

// finishLogin records what the controller told us at login and starts
// the keepalive task.
func (s *state) finishLogin(result *params.LoginResult) error {
	schema, serverVersion, err := schemaFor(result.ServerVersion)
	if err != nil {
		return errors.Trace(err)
	}
	s.schema = schema
	s.serverVersion = serverVersion

	s.facadeVersions = make(map[string][]int, len(result.Facades))
	for _, facade := range result.Facades {
		s.facadeVersions[facade.Name] = facade.Versions
	}

	if result.ModelTag != "" {
		tag, err := names.ParseModelTag(result.ModelTag)
		if err != nil {
			return errors.Annotatef(err, "invalid model tag in login result")
		}
		s.modelTag = tag
	}
	if result.ControllerTag != "" {
		tag, err := names.ParseControllerTag(result.ControllerTag)
		if err != nil {
			return errors.Annotatef(err, "invalid controller tag in login result")
		}
		s.controllerTag = tag
	}
	if result.UserInfo != nil && result.UserInfo.Identity != "" {
		tag, err := names.ParseTag(result.UserInfo.Identity)
		if err != nil {
			return errors.Annotatef(err, "invalid identity in login result")
		}
		s.authTag = tag
	}
	s.hostPorts = params.FlattenHostPorts(result.Servers)

	logger.Debugf("logged in to %s, controller series %s", s.addr, schema.Series())
	s.tomb.Go(s.keepalive)
	return nil
}
