// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "juju_rpc"

// Collector is a prometheus.Collector that collects metrics about the
// calls made over RPC connections.
type Collector struct {
	calls        *prometheus.CounterVec
	callErrors   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	inflight     prometheus.Gauge
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "calls_total",
				Help:      "The number of calls made, by facade and method.",
			}, []string{"facade", "method"},
		),
		callErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "call_errors_total",
				Help:      "The number of calls that returned an error, by facade and method.",
			}, []string{"facade", "method"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "call_duration_seconds",
				Help:      "The time taken for a call to complete.",
				Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 30, 120},
			}, []string{"facade"},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "calls_in_flight",
				Help:      "The number of calls waiting for a response.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.calls.Describe(ch)
	c.callErrors.Describe(ch)
	c.callDuration.Describe(ch)
	c.inflight.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.calls.Collect(ch)
	c.callErrors.Collect(ch)
	c.callDuration.Collect(ch)
	c.inflight.Collect(ch)
}

func (c *Collector) callStarted(req Request) {
	if c == nil {
		return
	}
	c.calls.WithLabelValues(req.Type, req.Action).Inc()
	c.inflight.Inc()
}

func (c *Collector) callFinished(req Request, started time.Time, err error) {
	if c == nil {
		return
	}
	c.inflight.Dec()
	c.callDuration.WithLabelValues(req.Type).Observe(time.Since(started).Seconds())
	if err != nil {
		c.callErrors.WithLabelValues(req.Type, req.Action).Inc()
	}
}
