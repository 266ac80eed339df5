package tracer

import (
	"context"
	"fmt"
	"strings"
)

// StateID is a dense nonnegative id assigned on graph attachment,
// monotonically increasing and never reused.
type StateID int

// Flags is the state type bit set.
type Flags uint8

const (
	// FlagRoot marks the graph's initial state.
	FlagRoot Flags = 1 << iota
	// FlagFinal marks a state whose allowed-transition set is empty.
	FlagFinal
	// FlagCanLeadToFinal marks a state from which some final state is
	// reachable, set by Graph.MarkCanLeadToFinal.
	FlagCanLeadToFinal
)

// Has reports whether f includes bit.
func (f Flags) Has(bit Flags) bool {
	return f&bit != 0
}

// State is one global snapshot: one QueueSnapshot, one RoutingSnapshot, and
// the transitions attaching it into a Graph. States are created only by a
// Driver, attached at most once, and never mutated after they have
// received all of their outgoing transitions.
type State struct {
	ID StateID

	Queue   QueueSnapshot
	Routing RoutingSnapshot

	Incoming []*Transition
	Outgoing []*Transition

	Flags Flags

	// MarkingSeq is the per-graph sweep counter value at which this state
	// was last visited by Graph.MarkCanLeadToFinal. It guards against
	// revisiting a state within one sweep when the graph has a cycle.
	MarkingSeq uint64

	// Depth is the length of a shortest path from the graph's root.
	Depth int

	// DefinitelyBlocked is an externally-settable hint consulted by
	// Graph.GetActiveMinimumSession; the driver never sets it itself (see
	// DESIGN.md's resolution of the STATE_DEFINITELY_BLOCKED open
	// question).
	DefinitelyBlocked bool

	// generated maps an allowed-transition index (not raw FIFO position)
	// to the transition already produced for it, giving
	// GenerateTransition its idempotence.
	generated map[int]*Transition

	attached bool
}

// captureState builds an unattached State by capturing the simulator's
// queue and the network's routing state.
func captureState(ctx context.Context, sim Simulator, net Network) (*State, error) {
	q, err := CaptureQueue(ctx, sim)
	if err != nil {
		return nil, fmt.Errorf("capture queue: %w", err)
	}

	r, err := CaptureRouting(ctx, net)
	if err != nil {
		return nil, fmt.Errorf("capture routing: %w", err)
	}

	s := &State{
		Queue:     q,
		Routing:   r,
		generated: make(map[int]*Transition),
	}

	if len(q.AllowedTransitions()) == 0 {
		s.Flags |= FlagFinal
	}

	return s, nil
}

// CreateIsolated captures a candidate state without attaching it to any
// graph, so the driver can test it for equivalence before deciding whether
// to attach it or discard it in favor of an existing match.
func CreateIsolated(ctx context.Context, sim Simulator, net Network) (*State, error) {
	return captureState(ctx, sim, net)
}

// Attach assigns this state's id from g, registers it, wires the incoming
// transition (if any), and — if it is a final state — appends it to the
// graph's final-state list, subject to max_final_states.
func (s *State) Attach(g *Graph, in *Transition) error {
	if s.attached {
		return fmt.Errorf("tracer: state already attached")
	}

	if err := g.addState(s); err != nil {
		return err
	}

	s.attached = true

	if in != nil {
		in.To = s
		s.Incoming = append(s.Incoming, in)
		s.Depth = in.From.Depth + 1
	} else {
		s.Flags |= FlagRoot
	}

	if s.Flags.Has(FlagFinal) {
		if err := g.addFinalState(s); err != nil {
			return err
		}
	}

	return nil
}

// GenerateTransition returns a fresh Transition for the k-th allowed
// transition, unless one was already generated for that index, in which
// case it returns the existing transition and ok=false to signal
// AlreadyTaken.
func (s *State) GenerateTransition(k int) (t *Transition, ok bool, err error) {
	allowed := s.Queue.AllowedTransitions()
	if k < 0 || k >= len(allowed) {
		return nil, false, ErrUnknownTransition
	}

	if existing, found := s.generated[k]; found {
		return existing, false, nil
	}

	t = &Transition{
		Event:      s.Queue.EventAt(allowed[k]),
		TransIndex: k,
		From:       s,
	}
	s.generated[k] = t
	s.Outgoing = append(s.Outgoing, t)

	return t, true, nil
}

// rollbackTransition undoes a GenerateTransition(k) call whose downstream
// simulator step failed, so a later retry of the same index is treated as
// fresh again instead of returning AlreadyTaken against a dangling
// To==nil transition.
func (s *State) rollbackTransition(k int, t *Transition) {
	if s.generated[k] != t {
		return
	}

	delete(s.generated, k)

	for i, out := range s.Outgoing {
		if out == t {
			s.Outgoing = append(s.Outgoing[:i], s.Outgoing[i+1:]...)
			break
		}
	}
}

// Inject writes this state's queue and routing snapshots back into the
// external simulator and network.
func (s *State) Inject(ctx context.Context, sim Simulator, net Network) error {
	if err := s.Queue.Inject(ctx, sim); err != nil {
		return fmt.Errorf("inject queue: %w", err)
	}

	if err := s.Routing.Inject(ctx, net); err != nil {
		return fmt.Errorf("inject routing: %w", err)
	}

	return nil
}

// IsFinal reports whether this state's allowed-transition set is empty.
func (s *State) IsFinal() bool {
	return s.Flags.Has(FlagFinal)
}

// IsComplete reports whether every allowed transition has been generated.
func (s *State) IsComplete() bool {
	return len(s.Outgoing) == len(s.Queue.AllowedTransitions())
}

// DebugString renders a deterministic human-readable dump of the state's
// queue and routing snapshots, grounded on the original implementation's
// flat/HTML dump helpers (see SPEC_FULL.md's supplemented features).
func (s *State) DebugString() string {
	var b strings.Builder

	fmt.Fprintf(&b, "state %d depth=%d flags=%s\n", s.ID, s.Depth, flagsString(s.Flags))
	fmt.Fprintf(&b, "  queue: %d events, %d sessions, max_per_session=%d\n",
		s.Queue.Len(), s.Queue.SessionCount(), s.Queue.MaxSessionDepth())

	for _, i := range s.Queue.AllowedTransitions() {
		e := s.Queue.EventAt(i)
		fmt.Fprintf(&b, "    allowed[%d]: %s -> %s\n", i, e.Src, e.Dst)
	}

	for _, r := range s.Routing.Routers() {
		rs, _ := s.Routing.RouterSnapshot(r)
		fmt.Fprintf(&b, "  router %s: %d fib prefixes, %d rib prefixes, %d peers\n",
			r, len(rs.FIB), len(rs.LocalRIB), len(rs.Peers))
	}

	return b.String()
}

func flagsString(f Flags) string {
	var parts []string

	if f.Has(FlagRoot) {
		parts = append(parts, "ROOT")
	}

	if f.Has(FlagFinal) {
		parts = append(parts, "FINAL")
	}

	if f.Has(FlagCanLeadToFinal) {
		parts = append(parts, "CAN_LEAD_TO_FINAL")
	}

	if len(parts) == 0 {
		return "-"
	}

	return strings.Join(parts, "|")
}
