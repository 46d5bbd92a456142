// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/juju/python-libjuju-sub000/api/base"
	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
	"github.com/juju/python-libjuju-sub000/internal/interrupt"
	"github.com/juju/python-libjuju-sub000/rpc/params"
)

// ErrWatcherStopped is returned by AllWatcher.Next once Stop has been
// called.
const ErrWatcherStopped = errors.ConstError("watcher was stopped")

// AllWatcher holds information allowing us to get Deltas describing
// changes to the entire model.
type AllWatcher struct {
	objType string
	caller  base.APICaller
	id      string

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewAllWatcher returns an AllWatcher instance which interacts with a
// watcher created by the WatchAll API call.
//
// There should be no need to call this from outside of the api
// package. It is only used by Connection.WatchAll in this package.
func NewAllWatcher(caller base.APICaller, id string) *AllWatcher {
	return &AllWatcher{
		objType: "AllWatcher",
		caller:  caller,
		id:      id,
		stopped: make(chan struct{}),
	}
}

// ID returns the subscription id the controller assigned.
func (watcher *AllWatcher) ID() string {
	return watcher.id
}

// Next returns a new set of deltas from a watcher previously created
// by the WatchAll API call. It will block until there are deltas to
// return, ctx is done, or Stop is called.
func (watcher *AllWatcher) Next(ctx context.Context) ([]multiwatcher.Delta, error) {
	info, err := interrupt.Race(ctx, watcher.stopped, func(ctx context.Context) (params.AllWatcherNextResults, error) {
		var info params.AllWatcherNextResults
		err := watcher.caller.APICall(
			ctx,
			watcher.objType,
			watcher.caller.BestFacadeVersion(watcher.objType),
			watcher.id,
			"Next",
			nil, &info,
		)
		return info, err
	})
	if interrupt.IsInterrupted(err) {
		return nil, ErrWatcherStopped
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return info.Deltas, nil
}

// Stop shuts down a watcher previously created by the WatchAll API
// call. A Next blocked in another goroutine returns at once. Only the
// first call asks the controller to stop the watcher.
func (watcher *AllWatcher) Stop(ctx context.Context) error {
	first := false
	watcher.stopOnce.Do(func() {
		close(watcher.stopped)
		first = true
	})
	if !first {
		return nil
	}
	return watcher.caller.APICall(
		ctx,
		watcher.objType,
		watcher.caller.BestFacadeVersion(watcher.objType),
		watcher.id,
		"Stop",
		nil, nil,
	)
}
