// Package tracermetrics exposes Prometheus metrics for the tracer driver
// and graph, following the namespace/subsystem/collector conventions of
// this repo's ambient metrics stack.
package tracermetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "bgptracer"
	subsystem = "graph"
)

// Collector holds every metric emitted by the tracer driver and graph.
type Collector struct {
	StatesTotal           prometheus.Gauge
	FinalStatesTotal      prometheus.Gauge
	TransitionsTotal      prometheus.Counter
	GraphFullTotal        prometheus.Counter
	FinalListDroppedTotal prometheus.Counter
	MarkingSweepDuration  prometheus.Histogram
	MaxQueueDepth         prometheus.Gauge
}

// NewCollector builds a Collector and registers every metric with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		StatesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "states_total",
			Help:      "Number of states currently attached to the graph.",
		}),
		FinalStatesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "final_states_total",
			Help:      "Number of final states recorded in the graph's fast-lookup list.",
		}),
		TransitionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total number of transitions generated across all trace steps.",
		}),
		GraphFullTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "graph_full_total",
			Help:      "Number of state attaches rejected because max_states was reached.",
		}),
		FinalListDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "final_list_dropped_total",
			Help:      "Number of FINAL states that could not be added to the final-state list because max_final_states was reached.",
		}),
		MarkingSweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "marking_sweep_duration_seconds",
			Help:      "Duration of each mark_can_lead_to_final sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		MaxQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "max_queue_depth",
			Help:      "Maximum, over all attached states, of max_msgs_per_directed_session.",
		}),
	}

	reg.MustRegister(
		c.StatesTotal,
		c.FinalStatesTotal,
		c.TransitionsTotal,
		c.GraphFullTotal,
		c.FinalListDroppedTotal,
		c.MarkingSweepDuration,
		c.MaxQueueDepth,
	)

	return c
}

// ObserveGraph updates the gauges that reflect the current graph size from
// the given counts, leaving the monotonic counters untouched.
func (c *Collector) ObserveGraph(states, finalStates int, maxQueueDepth uint) {
	c.StatesTotal.Set(float64(states))
	c.FinalStatesTotal.Set(float64(finalStates))
	c.MaxQueueDepth.Set(float64(maxQueueDepth))
}

// IncTransitions satisfies tracer.MetricsReporter.
func (c *Collector) IncTransitions() {
	c.TransitionsTotal.Inc()
}

// IncGraphFull satisfies tracer.MetricsReporter.
func (c *Collector) IncGraphFull() {
	c.GraphFullTotal.Inc()
}

// IncFinalListDropped satisfies tracer.MetricsReporter.
func (c *Collector) IncFinalListDropped() {
	c.FinalListDroppedTotal.Inc()
}

// ObserveMarkingSweep satisfies tracer.MetricsReporter.
func (c *Collector) ObserveMarkingSweep(d time.Duration) {
	c.MarkingSweepDuration.Observe(d.Seconds())
}
