// Package tracer implements deterministic state-space exploration over a
// simulated BGP routing system: it captures the discrete-event queue and
// per-router routing state after every event delivery, deduplicates
// structurally equivalent states, and assembles the result into a directed
// graph of states and transitions.
package tracer

import "errors"

// Error taxonomy for the tracer driver and graph. Each sentinel is returned
// verbatim or wrapped with additional context via fmt.Errorf("...: %w", ...).
var (
	// ErrGraphFull is returned when adding a state would exceed the graph's
	// configured state cap.
	ErrGraphFull = errors.New("tracer: graph is full")

	// ErrFinalListFull names the condition where a final state exceeds the
	// configured final-state cap. Graph does not return it: the state is
	// still attached and FINAL, and the overflow is counted instead (see
	// Graph.FinalListDropped).
	ErrFinalListFull = errors.New("tracer: final state list is full")

	// ErrUnknownState is returned when a state ID does not exist in the graph.
	ErrUnknownState = errors.New("tracer: unknown state")

	// ErrUnknownTransition is returned when a transition index is out of
	// range for a state's allowed transitions.
	ErrUnknownTransition = errors.New("tracer: unknown transition")

	// ErrTransitionAlreadyGenerated names the idempotence signal for a
	// transition index that has already been generated. GenerateTransition
	// reports it as ok=false and TraceStep as StepAlreadyTaken; neither
	// returns this error.
	ErrTransitionAlreadyGenerated = errors.New("tracer: transition already generated")

	// ErrSimulatorStepFailed is returned when the Simulator collaborator
	// fails to deliver an event.
	ErrSimulatorStepFailed = errors.New("tracer: simulator step failed")

	// ErrIncompatibleTopology is returned when a routing snapshot being
	// injected names a router, peer count, or peer order that does not
	// match the network it is injected into.
	ErrIncompatibleTopology = errors.New("tracer: incompatible topology")

	// ErrDriverBusy is returned when a driver operation is invoked while
	// another is already in progress. The driver is not reentrant.
	ErrDriverBusy = errors.New("tracer: driver is busy")
)
