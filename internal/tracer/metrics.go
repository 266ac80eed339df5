package tracer

import "time"

// MetricsReporter receives observability events from a Driver's and Graph's
// hot paths. A nil MetricsReporter is valid everywhere it is held — every
// call site in this package checks for nil before calling through it, so a
// Driver built without WithMetrics makes no metrics calls at all. Mirrors
// the teacher's MetricsReporter-field/functional-option collaborator
// pattern (see internal/tracermetrics.Collector for the concrete Prometheus
// implementation).
type MetricsReporter interface {
	// IncTransitions counts one transition freshly generated by
	// GenerateTransition, regardless of whether the resulting step
	// succeeds.
	IncTransitions()

	// IncGraphFull counts one attach rejected because max_states was
	// reached.
	IncGraphFull()

	// IncFinalListDropped counts one FINAL state that could not be added
	// to the final-state fast-lookup list because max_final_states was
	// reached.
	IncFinalListDropped()

	// ObserveMarkingSweep records the wall-clock duration of one
	// Graph.MarkCanLeadToFinal sweep.
	ObserveMarkingSweep(d time.Duration)
}
