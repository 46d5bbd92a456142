// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package modelsync

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/python-libjuju-sub000/core/multiwatcher"
)

const metricsNamespace = "juju_modelsync"

// Collector is a prometheus.Collector that collects metrics about the
// deltas applied to the local model.
type Collector struct {
	deltas   *prometheus.CounterVec
	batches  prometheus.Counter
	entities prometheus.Gauge
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		deltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deltas_total",
				Help:      "The number of deltas applied, by entity kind and action.",
			}, []string{"kind", "action"},
		),
		batches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "batches_total",
				Help:      "The number of delta batches applied.",
			},
		),
		entities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "entities",
				Help:      "The number of entities held in the local model.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.deltas.Describe(ch)
	c.batches.Describe(ch)
	c.entities.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.deltas.Collect(ch)
	c.batches.Collect(ch)
	c.entities.Collect(ch)
}

func (c *Collector) applied(delta multiwatcher.Delta) {
	if c == nil {
		return
	}
	c.deltas.WithLabelValues(delta.Kind, string(delta.Action)).Inc()
}

func (c *Collector) batchApplied(entities int) {
	if c == nil {
		return
	}
	c.batches.Inc()
	c.entities.Set(float64(entities))
}
