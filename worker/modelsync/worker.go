// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package modelsync keeps a local copy of a model up to date with the
// controller's delta stream and tells observers about every change.
package modelsync

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/python-libjuju-sub000/core/modelstate"
	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
)

var logger = loggo.GetLogger("juju.worker.modelsync")

// stopTimeout bounds the best effort request asking the controller to
// drop the subscription.
const stopTimeout = 5 * time.Second

// Watcher yields the batches of deltas describing a model's changes.
type Watcher interface {
	Next(ctx context.Context) ([]multiwatcher.Delta, error)
	Stop(ctx context.Context) error
}

// Store holds the local copy of the model.
type Store interface {
	Apply(delta multiwatcher.Delta) (old, new *modelstate.Entity)
	Len() int
}

// Notifier is told about every applied delta.
type Notifier interface {
	Notify(delta multiwatcher.Delta, old, new *modelstate.Entity)
}

// Config holds the dependencies of a Worker.
type Config struct {
	// NewWatcher subscribes to the model's delta stream.
	NewWatcher func(context.Context) (Watcher, error)
	Store      Store
	Notifier   Notifier
	Clock      clock.Clock

	// Metrics is optional.
	Metrics *Collector
}

// Validate returns an error if the config cannot be used to start a
// Worker.
func (config Config) Validate() error {
	if config.NewWatcher == nil {
		return errors.NotValidf("nil NewWatcher")
	}
	if config.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if config.Notifier == nil {
		return errors.NotValidf("nil Notifier")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Worker drains a model's delta stream. Every delta is applied to the
// store and then passed to the notifier, one at a time and in the order
// the controller sent them.
type Worker struct {
	catacomb catacomb.Catacomb
	config   Config

	mu        sync.Mutex
	batches   int
	deltas    int
	lastBatch time.Time
}

var _ worker.Reporter = (*Worker)(nil)

// NewWorker starts a Worker with the given config.
func NewWorker(config Config) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		config: config,
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.catacomb.Wait()
}

// Report is part of the worker.Reporter interface.
func (w *Worker) Report() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	report := map[string]any{
		"batches":  w.batches,
		"deltas":   w.deltas,
		"entities": w.config.Store.Len(),
	}
	if !w.lastBatch.IsZero() {
		report["last-batch"] = w.lastBatch.Format(time.RFC3339)
	}
	return report
}

func (w *Worker) scopedContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(w.catacomb.Context(context.Background()))
}

func (w *Worker) loop() error {
	ctx, cancel := w.scopedContext()
	defer cancel()

	watcher, err := w.config.NewWatcher(ctx)
	if err != nil {
		return errors.Annotate(err, "watching model")
	}
	defer w.stopWatcher(watcher)
	logger.Debugf("watching model deltas")

	for {
		deltas, err := watcher.Next(ctx)
		if err != nil {
			select {
			case <-w.catacomb.Dying():
				return w.catacomb.ErrDying()
			default:
			}
			return errors.Annotate(err, "reading model deltas")
		}
		w.apply(deltas)
	}
}

func (w *Worker) apply(deltas []multiwatcher.Delta) {
	for _, delta := range deltas {
		logger.Tracef("applying %s %s", delta.Action, delta.EntityId())
		old, new := w.config.Store.Apply(delta)
		w.config.Notifier.Notify(delta, old, new)
		w.config.Metrics.applied(delta)
	}

	w.mu.Lock()
	w.batches++
	w.deltas += len(deltas)
	w.lastBatch = w.config.Clock.Now()
	entities := w.config.Store.Len()
	w.mu.Unlock()

	w.config.Metrics.batchApplied(entities)
}

func (w *Worker) stopWatcher(watcher Watcher) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	// The connection may already be gone, taking the subscription
	// with it.
	if err := watcher.Stop(ctx); err != nil {
		logger.Debugf("stopping model watcher: %v", err)
	}
}
