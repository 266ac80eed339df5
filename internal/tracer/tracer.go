package tracer

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// StepKind classifies the outcome of one TraceStep call.
type StepKind int

const (
	// StepInvalid means the step could not be performed; see the
	// accompanying error.
	StepInvalid StepKind = iota
	// StepNewState means a fresh, previously-unseen state was attached.
	StepNewState
	// StepMergedInto means the resulting state was structurally
	// equivalent to an existing one; no new state was created.
	StepMergedInto
	// StepAlreadyTaken means this (state, trans_index) pair was already
	// explored; the graph is unchanged.
	StepAlreadyTaken
)

// StepResult is the tagged result of one TraceStep call.
type StepResult struct {
	Kind    StepKind
	StateID StateID
}

// Driver drives the external Simulator and Network collaborators: inject a
// state's snapshot, step exactly one event, capture the result, and
// reconcile it against the Graph. The driver is not reentrant — concurrent
// calls are serialized by a weight-1 semaphore, and a second caller while
// one call is in flight receives ErrDriverBusy rather than blocking, so
// contention is observable rather than silently queued.
type Driver struct {
	sim Simulator
	net Network

	graph *Graph

	sem *semaphore.Weighted

	metrics MetricsReporter
}

// DriverOption configures optional Driver behavior at construction time.
type DriverOption func(*Driver)

// WithMetrics attaches a MetricsReporter that the driver and its graph call
// into for every transition, graph-full rejection, final-list drop, and
// marking sweep. A Driver built without this option makes no metrics calls.
func WithMetrics(mr MetricsReporter) DriverOption {
	return func(d *Driver) { d.metrics = mr }
}

// NewDriver constructs a Driver over the given collaborators and an empty
// graph with the given state caps.
func NewDriver(sim Simulator, net Network, maxStates, maxFinalStates int, opts ...DriverOption) *Driver {
	d := &Driver{
		sim:   sim,
		net:   net,
		graph: NewGraph(maxStates, maxFinalStates),
		sem:   semaphore.NewWeighted(1),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.graph.metrics = d.metrics

	return d
}

// Graph returns the driver's graph.
func (d *Driver) Graph() *Graph {
	return d.graph
}

// Start captures the root state from the external simulator and network and
// attaches it as the graph's initial state.
func (d *Driver) Start(ctx context.Context) (*State, error) {
	if !d.sem.TryAcquire(1) {
		return nil, ErrDriverBusy
	}
	defer d.sem.Release(1)

	root, err := captureState(ctx, d.sim, d.net)
	if err != nil {
		return nil, fmt.Errorf("capture root: %w", err)
	}

	if err := root.Attach(d.graph, nil); err != nil {
		return nil, fmt.Errorf("attach root: %w", err)
	}

	d.graph.SetCursor(root)

	return root, nil
}

// TraceStep resolves stateID, injects its snapshot, generates the
// trans_index-th allowed transition, steps the simulator exactly once, and
// reconciles the resulting candidate state against the graph.
func (d *Driver) TraceStep(ctx context.Context, stateID StateID, transIndex int) (StepResult, error) {
	if !d.sem.TryAcquire(1) {
		return StepResult{Kind: StepInvalid}, ErrDriverBusy
	}
	defer d.sem.Release(1)

	res, err := d.stepLocked(ctx, stateID, transIndex)
	if err == nil && (res.Kind == StepNewState || res.Kind == StepMergedInto) {
		if st, stErr := d.graph.State(res.StateID); stErr == nil {
			d.graph.SetCursor(st)
		}
	}

	return res, err
}

func (d *Driver) stepLocked(ctx context.Context, stateID StateID, transIndex int) (StepResult, error) {
	origin, err := d.graph.State(stateID)
	if err != nil {
		return StepResult{Kind: StepInvalid}, err
	}

	if err := origin.Inject(ctx, d.sim, d.net); err != nil {
		return StepResult{Kind: StepInvalid}, fmt.Errorf("inject origin: %w", err)
	}

	t, fresh, err := origin.GenerateTransition(transIndex)
	if err != nil {
		return StepResult{Kind: StepInvalid}, err
	}

	if !fresh {
		var to StateID
		if t.To != nil {
			to = t.To.ID
		}

		return StepResult{Kind: StepAlreadyTaken, StateID: to}, nil
	}

	if d.metrics != nil {
		d.metrics.IncTransitions()
	}

	// A failure anywhere below leaves origin.generated[transIndex] rolled
	// back unless one of the two success paths sets attached true, so a
	// retry of the same index is treated as fresh rather than reporting
	// AlreadyTaken against a transition that never reached a destination.
	attached := false

	defer func() {
		if !attached {
			origin.rollbackTransition(transIndex, t)
		}
	}()

	allowed := origin.Queue.AllowedTransitions()
	pos := allowed[transIndex]

	if err := d.sim.SetFirst(ctx, pos); err != nil {
		return StepResult{Kind: StepInvalid}, fmt.Errorf("set first: %w", err)
	}

	if err := d.sim.Step(ctx); err != nil {
		return StepResult{Kind: StepInvalid}, fmt.Errorf("%w: %w", ErrSimulatorStepFailed, err)
	}

	candidate, err := CreateIsolated(ctx, d.sim, d.net)
	if err != nil {
		return StepResult{Kind: StepInvalid}, fmt.Errorf("capture candidate: %w", err)
	}

	if match := d.graph.FindEquivalent(candidate); match != nil {
		t.To = match
		match.Incoming = append(match.Incoming, t)
		attached = true

		return StepResult{Kind: StepMergedInto, StateID: match.ID}, nil
	}

	if err := candidate.Attach(d.graph, t); err != nil {
		if d.metrics != nil && errors.Is(err, ErrGraphFull) {
			d.metrics.IncGraphFull()
		}

		return StepResult{Kind: StepInvalid}, err
	}

	attached = true

	return StepResult{Kind: StepNewState, StateID: candidate.ID}, nil
}

// InjectState resolves stateID and writes its queue and routing snapshots
// back into the driver's own Simulator and Network collaborators, so a
// caller that only has a state id (not the collaborators themselves) can
// request "make the external engine look like state N" — the binding
// State.Inject needs but does not provide on its own.
func (d *Driver) InjectState(ctx context.Context, stateID StateID) error {
	if !d.sem.TryAcquire(1) {
		return ErrDriverBusy
	}
	defer d.sem.Release(1)

	st, err := d.graph.State(stateID)
	if err != nil {
		return err
	}

	if err := st.Inject(ctx, d.sim, d.net); err != nil {
		return fmt.Errorf("inject state %d: %w", stateID, err)
	}

	d.graph.SetCursor(st)

	return nil
}

// WholeGraphResult summarizes a TraceWholeGraph run.
type WholeGraphResult struct {
	// GraphFull is true if enumeration halted because the state cap was
	// reached, rather than because the work queue emptied.
	GraphFull bool

	// Failures records every local failure encountered on individual work
	// items (SIMULATOR_STEP_FAILED, INCOMPATIBLE_TOPOLOGY); the
	// enumeration continues past each of these with the next item.
	Failures []error
}

type workItem struct {
	state StateID
	index int
}

// TraceWholeGraph performs a breadth-first enumeration of the reachable
// state space starting from the root's allowed transitions. States are
// created in BFS order; ids are assigned in creation order, making the
// enumeration fully deterministic given identical inputs. After a work
// item yields a fresh state (StepNewState), all of that state's allowed
// transitions are enqueued — a merged-into state's transitions are not
// re-enqueued, since AllowedTransitions is a pure function of the state's
// own content and was already enqueued the first time that state was
// created (see DESIGN.md's nb_input==1 resolution).
func (d *Driver) TraceWholeGraph(ctx context.Context) (WholeGraphResult, error) {
	if !d.sem.TryAcquire(1) {
		return WholeGraphResult{}, ErrDriverBusy
	}
	defer d.sem.Release(1)

	root := d.graph.Root()
	if root == nil {
		return WholeGraphResult{}, fmt.Errorf("tracer: graph has no root; call Start first")
	}

	var queue []workItem

	for _, idx := range allowedIndices(root) {
		queue = append(queue, workItem{state: root.ID, index: idx})
	}

	var result WholeGraphResult

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		res, err := d.stepLocked(ctx, item.state, item.index)
		if err != nil {
			if errors.Is(err, ErrGraphFull) {
				result.GraphFull = true
				break
			}

			if errors.Is(err, ErrSimulatorStepFailed) || errors.Is(err, ErrIncompatibleTopology) {
				result.Failures = append(result.Failures, err)
				continue
			}

			return result, err
		}

		if res.Kind == StepNewState {
			newState, stateErr := d.graph.State(res.StateID)
			if stateErr != nil {
				return result, stateErr
			}

			for _, idx := range allowedIndices(newState) {
				queue = append(queue, workItem{state: newState.ID, index: idx})
			}
		}
	}

	return result, nil
}

func allowedIndices(s *State) []int {
	n := len(s.Queue.AllowedTransitions())
	idx := make([]int, n)

	for i := range idx {
		idx[i] = i
	}

	return idx
}
