package orchestrator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop and rejection reasons recorded by the engine.
const (
	ReasonMalformed    = "malformed"
	ReasonUnknown      = "unknown_puzzle"
	ReasonNotActive    = "not_active"
	ReasonRateLimited  = "rate_limited"
	ReasonInvalid      = "invalid_target"
	ReasonDuplicate    = "duplicate"
	ReasonBlocked      = "blocked"
	ReasonSolved       = "solved"
	ReasonUnclassified = "other"
)

// Collector holds the engine's Prometheus metrics in its own registry.
type Collector struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	eventsRejected *prometheus.CounterVec
	operatorTotal  *prometheus.CounterVec
	activePuzzle   prometheus.Gauge
}

// NewCollector creates the engine metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "lair"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handled_total",
			Help:      "Device events delivered to the active puzzle",
		},
		[]string{"puzzle"},
	)

	c.eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Device events dropped before reaching a puzzle",
		},
		[]string{"reason"},
	)

	c.eventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "rejected_total",
			Help:      "Device events the active puzzle refused",
		},
		[]string{"puzzle", "reason"},
	)

	c.operatorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operator",
			Name:      "commands_total",
			Help:      "Operator commands by kind and result",
		},
		[]string{"command", "result"},
	)

	c.activePuzzle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_puzzle",
			Help:      "Id of the active puzzle (0 = none)",
		},
	)

	c.registry.MustRegister(
		c.eventsTotal,
		c.eventsDropped,
		c.eventsRejected,
		c.operatorTotal,
		c.activePuzzle,
	)

	return c
}

// Registry returns the Prometheus registry holding the engine metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordHandled counts an event delivered to a puzzle.
func (c *Collector) RecordHandled(puzzleID int) {
	c.eventsTotal.WithLabelValues(strconv.Itoa(puzzleID)).Inc()
}

// RecordDropped counts an event dropped by the engine.
func (c *Collector) RecordDropped(reason string) {
	c.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordRejected counts an event a puzzle refused.
func (c *Collector) RecordRejected(puzzleID int, reason string) {
	c.eventsRejected.WithLabelValues(strconv.Itoa(puzzleID), reason).Inc()
}

// RecordOperator counts an operator command.
func (c *Collector) RecordOperator(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.operatorTotal.WithLabelValues(command, result).Inc()
}

// RecordActive sets the active puzzle gauge.
func (c *Collector) RecordActive(puzzleID int) {
	c.activePuzzle.Set(float64(puzzleID))
}
