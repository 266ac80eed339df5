package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lpaquette/bgptracer/internal/simref"
	"github.com/lpaquette/bgptracer/internal/tracer"
)

// TestOneHopPropagation is seed scenario 1: a two-router topology where a
// single UPDATE propagates from 1.0.0.1 to 1.0.0.2.
func TestOneHopPropagation(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "1.0.0.1", Peers: []simref.Peer{{Neighbor: "1.0.0.2"}}},
		{ID: "1.0.0.2", Peers: []simref.Peer{{Neighbor: "1.0.0.1"}}},
	})

	events := []tracer.Event{
		{Src: "1.0.0.1", Dst: "1.0.0.2", Payload: simref.UpdatePayload("10/8", "1.0.0.1")},
	}

	driver := tracer.NewDriver(simref.NewSimulator(net, events), net, 0, 0)

	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := driver.TraceWholeGraph(context.Background()); err != nil {
		t.Fatalf("TraceWholeGraph: %v", err)
	}

	states := driver.Graph().States()
	if len(states) != 2 {
		t.Fatalf("len(States()) = %d, want 2", len(states))
	}

	s1 := states[1]
	if !s1.IsFinal() {
		t.Error("s1.IsFinal() = false, want true")
	}
	if len(s1.Incoming) != 1 {
		t.Fatalf("len(s1.Incoming) = %d, want 1", len(s1.Incoming))
	}

	rs, ok := s1.Routing.RouterSnapshot("1.0.0.2")
	if !ok {
		t.Fatal("s1 has no routing snapshot for 1.0.0.2")
	}

	peer := rs.Peers[0]

	found := false
	for _, r := range peer.AdjRIBIn {
		if sv, ok := r.(simref.StringValue); ok && string(sv) == "10/8 via 1.0.0.1" {
			found = true
		}
	}
	if !found {
		t.Errorf("1.0.0.2's adj_rib_in from 1.0.0.1 = %v, want it to contain 10/8", peer.AdjRIBIn)
	}
}

// TestCommutativeDelivery is seed scenario 2: two independent sessions
// (A→B, C→B) whose delivery order does not affect the resulting routing
// state, so both orders merge into the same terminal state.
func TestCommutativeDelivery(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "A", Peers: []simref.Peer{{Neighbor: "B"}}},
		{ID: "B", Peers: []simref.Peer{{Neighbor: "A"}, {Neighbor: "C"}}},
		{ID: "C", Peers: []simref.Peer{{Neighbor: "B"}}},
	})

	events := []tracer.Event{
		{Src: "A", Dst: "B", Payload: simref.UpdatePayload("10/8", "A")},
		{Src: "C", Dst: "B", Payload: simref.UpdatePayload("20/8", "C")},
	}

	driver := tracer.NewDriver(simref.NewSimulator(net, events), net, 0, 0)

	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := driver.TraceWholeGraph(context.Background())
	if err != nil {
		t.Fatalf("TraceWholeGraph: %v", err)
	}
	if res.GraphFull {
		t.Fatal("GraphFull = true, want false")
	}

	states := driver.Graph().States()

	root := states[0]
	if len(root.Outgoing) != 2 {
		t.Fatalf("len(root.Outgoing) = %d, want 2 (the two independent sessions)", len(root.Outgoing))
	}

	// Both single-event intermediates (via-E1-only, via-E2-only) are
	// distinct from each other, but completing either order reaches a
	// routing- and queue-equivalent empty-queue state: exactly one FINAL
	// state, regardless of how many intermediates preceded it.
	finals := driver.Graph().FinalStates()
	if len(finals) != 1 {
		t.Fatalf("len(FinalStates()) = %d, want 1 (both delivery orders converge)", len(finals))
	}

	if !finals[0].IsFinal() {
		t.Error("the recorded final state does not report IsFinal()")
	}
	if len(finals[0].Incoming) != 2 {
		t.Errorf("len(finals[0].Incoming) = %d, want 2 (one per delivery order)", len(finals[0].Incoming))
	}
}

// TestNonCommutativeDelivery is seed scenario 3: an UPDATE followed by a
// WITHDRAW on the same directed session, where only the head event is an
// allowed transition at the root.
func TestNonCommutativeDelivery(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "A", Peers: []simref.Peer{{Neighbor: "B"}}},
		{ID: "B", Peers: []simref.Peer{{Neighbor: "A"}}},
	})

	events := []tracer.Event{
		{Src: "A", Dst: "B", Payload: simref.UpdatePayload("p", "X")},
		{Src: "A", Dst: "B", Payload: simref.WithdrawPayload("p")},
	}

	sim := simref.NewSimulator(net, events)
	driver := tracer.NewDriver(sim, net, 0, 0)

	root, err := driver.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	allowed := root.Queue.AllowedTransitions()
	if len(allowed) != 1 || allowed[0] != 0 {
		t.Fatalf("root.Queue.AllowedTransitions() = %v, want [0]", allowed)
	}

	if _, err := driver.TraceWholeGraph(context.Background()); err != nil {
		t.Fatalf("TraceWholeGraph: %v", err)
	}

	states := driver.Graph().States()
	if len(states) != 3 {
		t.Fatalf("len(States()) = %d, want 3 (a chain of length 3)", len(states))
	}

	for i, s := range states {
		if i == 0 {
			continue
		}
		if len(s.Incoming) != 1 || s.Incoming[0].From.ID != tracer.StateID(i-1) {
			t.Errorf("states[%d] is not a single successor of states[%d]", i, i-1)
		}
	}
}

// TestCapBehavior is seed scenario 5: a low max_states cap halts
// trace_whole_graph early and reports GraphFull, without attaching more
// than the cap.
func TestCapBehavior(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "A", Peers: []simref.Peer{{Neighbor: "B"}, {Neighbor: "C"}, {Neighbor: "D"}}},
		{ID: "B", Peers: []simref.Peer{{Neighbor: "A"}}},
		{ID: "C", Peers: []simref.Peer{{Neighbor: "A"}}},
		{ID: "D", Peers: []simref.Peer{{Neighbor: "A"}}},
	})

	events := []tracer.Event{
		{Src: "A", Dst: "B", Payload: simref.UpdatePayload("10/8", "A")},
		{Src: "A", Dst: "B", Payload: simref.UpdatePayload("20/8", "A")},
		{Src: "A", Dst: "C", Payload: simref.UpdatePayload("30/8", "A")},
		{Src: "A", Dst: "C", Payload: simref.UpdatePayload("40/8", "A")},
		{Src: "A", Dst: "D", Payload: simref.UpdatePayload("50/8", "A")},
		{Src: "A", Dst: "D", Payload: simref.UpdatePayload("60/8", "A")},
	}

	driver := tracer.NewDriver(simref.NewSimulator(net, events), net, 5, 0)

	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := driver.TraceWholeGraph(context.Background())
	if err != nil {
		t.Fatalf("TraceWholeGraph: %v", err)
	}

	if !res.GraphFull {
		t.Fatal("GraphFull = false, want true once max_states is reached")
	}

	states := driver.Graph().States()
	if len(states) != 5 {
		t.Fatalf("len(States()) = %d, want exactly 5", len(states))
	}

	for _, s := range states {
		if len(s.Outgoing) > len(s.Queue.AllowedTransitions()) {
			t.Errorf("state %d: |outgoing| > |allowed_transitions|", s.ID)
		}
	}
}

// TestDedupMerge is seed scenario 6: two different paths through the same
// graph that reach an equivalent routing+queue state must converge on the
// same id, with the second arrival reported as StepMergedInto.
func TestDedupMerge(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "A", Peers: []simref.Peer{{Neighbor: "B"}, {Neighbor: "C"}}},
		{ID: "B", Peers: []simref.Peer{{Neighbor: "A"}}},
		{ID: "C", Peers: []simref.Peer{{Neighbor: "A"}}},
	})

	events := []tracer.Event{
		{Src: "A", Dst: "B", Payload: simref.UpdatePayload("10/8", "A")},
		{Src: "A", Dst: "C", Payload: simref.UpdatePayload("20/8", "A")},
	}

	sim := simref.NewSimulator(net, events)
	driver := tracer.NewDriver(sim, net, 0, 0)

	root, err := driver.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Path 1: deliver A→B first, then A→C.
	viaB, err := driver.TraceStep(context.Background(), root.ID, 0)
	if err != nil {
		t.Fatalf("TraceStep(root,0): %v", err)
	}
	if viaB.Kind != tracer.StepNewState {
		t.Fatalf("TraceStep(root,0) Kind = %v, want StepNewState", viaB.Kind)
	}

	finalViaB, err := driver.TraceStep(context.Background(), viaB.StateID, 0)
	if err != nil {
		t.Fatalf("TraceStep(viaB,0): %v", err)
	}
	if finalViaB.Kind != tracer.StepNewState {
		t.Fatalf("TraceStep(viaB,0) Kind = %v, want StepNewState", finalViaB.Kind)
	}

	finalState, err := driver.Graph().State(finalViaB.StateID)
	if err != nil {
		t.Fatalf("State(finalViaB): %v", err)
	}
	if got := len(finalState.Incoming); got != 1 {
		t.Fatalf("len(finalState.Incoming) = %d, want 1 before the second path merges in", got)
	}

	// Path 2: deliver A→C first, then A→B — must merge into finalState.
	viaC, err := driver.TraceStep(context.Background(), root.ID, 1)
	if err != nil {
		t.Fatalf("TraceStep(root,1): %v", err)
	}
	if viaC.Kind != tracer.StepNewState {
		t.Fatalf("TraceStep(root,1) Kind = %v, want StepNewState", viaC.Kind)
	}

	merged, err := driver.TraceStep(context.Background(), viaC.StateID, 0)
	if err != nil {
		t.Fatalf("TraceStep(viaC,0): %v", err)
	}
	if merged.Kind != tracer.StepMergedInto {
		t.Fatalf("TraceStep(viaC,0) Kind = %v, want StepMergedInto", merged.Kind)
	}
	if merged.StateID != finalState.ID {
		t.Fatalf("merged.StateID = %d, want %d (the existing equivalent state)", merged.StateID, finalState.ID)
	}

	if got := len(finalState.Incoming); got != 2 {
		t.Fatalf("len(finalState.Incoming) = %d, want 2 after the merge", got)
	}

	total := len(driver.Graph().States())
	if total != 4 {
		t.Fatalf("len(States()) = %d, want 4 (root, viaB, viaC, finalState — no new id for the merge)", total)
	}
}

// TestTraceStepUnknownState exercises the error path for an unresolvable
// origin state id.
func TestTraceStepUnknownState(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()
	driver := tracer.NewDriver(simref.NewSimulator(net, nil), net, 0, 0)

	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := driver.TraceStep(context.Background(), tracer.StateID(99), 0)
	if !errors.Is(err, tracer.ErrUnknownState) {
		t.Fatalf("TraceStep(99,0) error = %v, want ErrUnknownState", err)
	}
}

// TestDriverGuardReleasedAfterEachCall checks that the semaphore-backed
// non-reentrancy guard is released when a call returns, so a later
// sequential call is not rejected with ErrDriverBusy.
func TestDriverGuardReleasedAfterEachCall(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()
	driver := tracer.NewDriver(simref.NewSimulator(net, nil), net, 0, 0)

	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Start again should succeed (the first call already released its
	// semaphore), proving the guard is per-call, not sticky.
	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}

// TestInjectState exercises Driver.InjectState's happy path: the simulator
// and network collaborators end up holding the requested state's snapshot.
func TestInjectState(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "A", Peers: []simref.Peer{{Neighbor: "B"}}},
		{ID: "B", Peers: []simref.Peer{{Neighbor: "A"}}},
	})

	events := []tracer.Event{
		{Src: "A", Dst: "B", Payload: simref.UpdatePayload("10/8", "A")},
	}

	sim := simref.NewSimulator(net, events)
	driver := tracer.NewDriver(sim, net, 0, 0)

	root, err := driver.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	next, err := driver.TraceStep(context.Background(), root.ID, 0)
	if err != nil {
		t.Fatalf("TraceStep: %v", err)
	}
	if next.Kind != tracer.StepNewState {
		t.Fatalf("TraceStep Kind = %v, want StepNewState", next.Kind)
	}

	// After stepping, the live simulator/network reflect the new state —
	// injecting the root back should restore the original snapshot.
	if err := driver.InjectState(context.Background(), root.ID); err != nil {
		t.Fatalf("InjectState(root): %v", err)
	}

	n, err := sim.EventsLen(context.Background())
	if err != nil {
		t.Fatalf("EventsLen: %v", err)
	}
	if n != len(events) {
		t.Errorf("EventsLen() after InjectState(root) = %d, want %d (root's full queue)", n, len(events))
	}

	if got := driver.Graph().Cursor(); got != root {
		t.Errorf("Cursor() after InjectState(root) = %v, want root", got)
	}
}

// TestInjectStateUnknownState exercises the error path for an unresolvable
// state id.
func TestInjectStateUnknownState(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()
	driver := tracer.NewDriver(simref.NewSimulator(net, nil), net, 0, 0)

	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := driver.InjectState(context.Background(), tracer.StateID(99))
	if !errors.Is(err, tracer.ErrUnknownState) {
		t.Fatalf("InjectState(99) error = %v, want ErrUnknownState", err)
	}
}
