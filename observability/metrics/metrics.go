// Package metrics exposes Prometheus collectors for handler executions,
// published events, subscriber failures and async task transitions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Collector records runtime metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	handlerTotal       *prometheus.CounterVec
	handlerLatency     *prometheus.HistogramVec
	eventsPublished    *prometheus.CounterVec
	subscriberFailures *prometheus.CounterVec
	taskTransitions    *prometheus.CounterVec
}

// NewCollector creates a collector registered on its own registry.
// Service name and version become constant labels on every series.
func NewCollector(namespace, serviceName, serviceVersion string) *Collector {
	if namespace == "" {
		namespace = "svcore"
	}
	constLabels := prometheus.Labels{"service": serviceName, "version": serviceVersion}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.handlerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "handler",
			Name:        "executions_total",
			Help:        "Total number of handler executions",
			ConstLabels: constLabels,
		},
		[]string{"verb", "kind", "result"},
	)

	c.handlerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "handler",
			Name:        "duration_seconds",
			Help:        "Handler execution time",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			ConstLabels: constLabels,
		},
		[]string{"verb", "kind"},
	)

	c.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "bus",
			Name:        "events_published_total",
			Help:        "Total number of events published on the bus",
			ConstLabels: constLabels,
		},
		[]string{"domain", "status", "result"},
	)

	c.subscriberFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "bus",
			Name:        "subscriber_failures_total",
			Help:        "Total number of failed event subscriber invocations",
			ConstLabels: constLabels,
		},
		[]string{"domain", "handler"},
	)

	c.taskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "task",
			Name:        "transitions_total",
			Help:        "Total number of async task status transitions",
			ConstLabels: constLabels,
		},
		[]string{"verb", "status"},
	)

	c.registry.MustRegister(
		c.handlerTotal,
		c.handlerLatency,
		c.eventsPublished,
		c.subscriberFailures,
		c.taskTransitions,
	)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// HTTPHandler serves the registry in the Prometheus exposition format.
func (c *Collector) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHandler records one handler execution.
func (c *Collector) RecordHandler(verb, kind string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.handlerTotal.WithLabelValues(verb, kind, result(err)).Inc()
	c.handlerLatency.WithLabelValues(verb, kind).Observe(duration.Seconds())
}

// RecordEventPublished records one publish attempt of an event with the given status.
func (c *Collector) RecordEventPublished(domain, status string, err error) {
	if c == nil {
		return
	}
	c.eventsPublished.WithLabelValues(domain, status, result(err)).Inc()
}

// RecordSubscriberFailure records a failed event handler invocation.
func (c *Collector) RecordSubscriberFailure(domain, handler string) {
	if c == nil {
		return
	}
	c.subscriberFailures.WithLabelValues(domain, handler).Inc()
}

// RecordTaskTransition records an async task entering status.
func (c *Collector) RecordTaskTransition(verb, status string) {
	if c == nil {
		return
	}
	c.taskTransitions.WithLabelValues(verb, status).Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
