// Package metrics collects runtime telemetry for the command and query
// buses and the state store, exposed in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/state"
)

// Dispatch outcomes used for the status label.
const (
	StatusOK       = "ok"
	StatusInvalid  = "invalid"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Collector records bus and store activity on its own registry.
type Collector struct {
	registry *prometheus.Registry

	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	commitTotal     *prometheus.CounterVec
}

// NewCollector creates a collector. The namespace defaults to "tracker".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "tracker"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "dispatch_total",
			Help:      "Total number of command and query dispatches",
		},
		[]string{"kind", "name", "status"},
	)

	c.dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in command and query handlers",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"kind", "name"},
	)

	c.commitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "commits_total",
			Help:      "Total number of committed state mutations",
		},
		[]string{"mutation"},
	)

	c.registry.MustRegister(c.dispatchTotal, c.dispatchLatency, c.commitTotal)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records every dispatch that passed validation on a bus of kind.
func (c *Collector) Middleware(kind bus.Kind) bus.Middleware {
	return func(name string, next bus.Handler) bus.Handler {
		return func(ctx context.Context, payload any) (any, error) {
			start := time.Now()
			res, err := next(ctx, payload)
			c.dispatchLatency.WithLabelValues(string(kind), name).Observe(time.Since(start).Seconds())
			c.dispatchTotal.WithLabelValues(string(kind), name, status(err)).Inc()
			return res, err
		}
	}
}

// ObserveRejected counts a dispatch that never reached the handler.
func (c *Collector) ObserveRejected(kind bus.Kind, name string) {
	c.dispatchTotal.WithLabelValues(string(kind), name, StatusInvalid).Inc()
}

// WatchStore counts every commit on s. The returned function stops counting.
func (c *Collector) WatchStore(s *state.Store) func() {
	return s.Subscribe(func(ch state.Change) {
		c.commitTotal.WithLabelValues(ch.Mutation).Inc()
	})
}

func status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	case errors.Is(err, bus.ErrValidation):
		return StatusInvalid
	}
	return StatusFailed
}
