// Package metrics exposes Prometheus metrics for the journey tracker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick results.
const (
	TickOK         = "ok"
	TickNoPosition = "no_position"
	TickNoLeg      = "no_leg"
	TickError      = "error"
	TickStopped    = "stopped"
)

// Transition kinds.
const (
	TransitionLegAdvanced      = "leg_advanced"
	TransitionJourneyCompleted = "journey_completed"
)

// Collector holds the tracker metrics on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	ActiveJourneys  prometheus.Gauge
	Ticks           *prometheus.CounterVec // result label
	Notifications   *prometheus.CounterVec // type label
	Transitions     *prometheus.CounterVec // kind label
	BroadcastErrors prometheus.Counter
	TickDuration    prometheus.Histogram
}

// NewCollector creates a collector with Go runtime and process metrics included.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveJourneys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_journeys",
			Help: "Number of journeys with a running tracking task.",
		}),
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_ticks_total",
			Help: "Total tracker ticks by result.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_notifications_total",
			Help: "Total notifications dispatched by type.",
		}, []string{"type"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_transitions_total",
			Help: "Total leg and journey state transitions by kind.",
		}, []string{"kind"}),
		BroadcastErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_broadcast_errors_total",
			Help: "Total failed realtime broadcasts.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_tick_duration_seconds",
			Help:    "Duration of tracker tick evaluation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.ActiveJourneys,
		c.Ticks, c.Notifications, c.Transitions,
		c.BroadcastErrors, c.TickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// SetActiveJourneys records the number of running tracking tasks.
func (c *Collector) SetActiveJourneys(n int) {
	if c == nil {
		return
	}
	c.ActiveJourneys.Set(float64(n))
}

// ObserveTick records one tick outcome and its duration.
func (c *Collector) ObserveTick(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.WithLabelValues(result).Inc()
	c.TickDuration.Observe(d.Seconds())
}

// NotificationSent counts a dispatched notification.
func (c *Collector) NotificationSent(notificationType string) {
	if c == nil {
		return
	}
	c.Notifications.WithLabelValues(notificationType).Inc()
}

// Transition counts a state transition.
func (c *Collector) Transition(kind string) {
	if c == nil {
		return
	}
	c.Transitions.WithLabelValues(kind).Inc()
}

// BroadcastFailed counts a failed broadcast.
func (c *Collector) BroadcastFailed() {
	if c == nil {
		return
	}
	c.BroadcastErrors.Inc()
}
