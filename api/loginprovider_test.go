// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api_test

import (
	"context"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/python-libjuju-sub000/api"
	"github.com/juju/python-libjuju-sub000/api/base"
	"github.com/juju/python-libjuju-sub000/rpc"
	"github.com/juju/python-libjuju-sub000/rpc/params"
)

type tryInOrderLoginProviderSuite struct{}

var _ = gc.Suite(&tryInOrderLoginProviderSuite{})

func (s *tryInOrderLoginProviderSuite) Test(c *gc.C) {
	p1 := &mockLoginProvider{err: errors.New("provider 1 error")}
	p2 := &mockLoginProvider{err: errors.New("provider 2 error")}
	p3 := &mockLoginProvider{}

	lp := api.NewTryInOrderLoginProvider(p1, p2)
	_, err := lp.Login(context.Background(), nil)
	c.Assert(err, gc.ErrorMatches, "provider 2 error")

	lp = api.NewTryInOrderLoginProvider(p1, p2, p3)
	_, err = lp.Login(context.Background(), nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p3.calls, gc.Equals, 1)
}

func (s *tryInOrderLoginProviderSuite) TestRedirectStopsTheSearch(c *gc.C) {
	p1 := &mockLoginProvider{err: &rpc.RequestError{Code: params.CodeRedirect, Message: "go away"}}
	p2 := &mockLoginProvider{}

	_, err := api.NewTryInOrderLoginProvider(p1, p2).Login(context.Background(), nil)
	c.Assert(params.IsCodeRedirect(err), jc.IsTrue)
	c.Check(p2.calls, gc.Equals, 0)
}

func (s *tryInOrderLoginProviderSuite) TestNoProviders(c *gc.C) {
	_, err := api.NewTryInOrderLoginProvider().Login(context.Background(), nil)
	c.Assert(err, gc.ErrorMatches, "no login providers")
}

type mockLoginProvider struct {
	err   error
	calls int
}

func (p *mockLoginProvider) Login(ctx context.Context, caller base.APICaller) (*params.LoginResult, error) {
	p.calls++
	return &params.LoginResult{}, p.err
}
