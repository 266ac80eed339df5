package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lpaquette/bgptracer/internal/simref"
	"github.com/lpaquette/bgptracer/internal/tracer"
)

func attachRoot(t *testing.T, g *tracer.Graph, sim tracer.Simulator, net tracer.Network) *tracer.State {
	t.Helper()

	s, err := tracer.CreateIsolated(context.Background(), sim, net)
	if err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}

	if err := s.Attach(g, nil); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	return s
}

func TestGraphAddStateEnforcesCap(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()
	sim := simref.NewSimulator(net, nil)

	g := tracer.NewGraph(1, 10)
	attachRoot(t, g, sim, net)

	second, err := tracer.CreateIsolated(context.Background(), sim, net)
	if err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}

	err = second.Attach(g, nil)
	if !errors.Is(err, tracer.ErrGraphFull) {
		t.Fatalf("Attach past cap error = %v, want ErrGraphFull", err)
	}
}

func TestGraphFinalListDropNonFatal(t *testing.T) {
	t.Parallel()

	bounded := tracer.NewGraph(0, 1)

	// Two distinct, non-equivalent networks, both captured with an empty
	// event queue, so both states are FINAL but structurally distinct —
	// attaching the second exercises the fast-lookup list's overflow path.
	net1 := simref.NewNetwork([]simref.Router{{ID: "r1"}})
	net2 := simref.NewNetwork([]simref.Router{{ID: "r1"}, {ID: "r2"}})

	s1 := attachRoot(t, bounded, simref.NewSimulator(net1, nil), net1)
	if !s1.IsFinal() {
		t.Fatal("s1 should be FINAL with an empty queue")
	}
	if got := bounded.FinalListDropped(); got != 0 {
		t.Fatalf("FinalListDropped() = %d, want 0 after the first final state", got)
	}

	second, err := tracer.CreateIsolated(context.Background(), simref.NewSimulator(net2, nil), net2)
	if err != nil {
		t.Fatalf("CreateIsolated second: %v", err)
	}
	if err := second.Attach(bounded, nil); err != nil {
		t.Fatalf("Attach second: %v", err)
	}

	if got := bounded.FinalListDropped(); got != 1 {
		t.Fatalf("FinalListDropped() = %d, want 1 once max_final_states is exceeded", got)
	}
	if got := len(bounded.FinalStates()); got != 1 {
		t.Fatalf("len(FinalStates()) = %d, want 1 (overflow is dropped, not fatal)", got)
	}
}

func TestFindEquivalentMatchesEquivalentState(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()
	g := tracer.NewGraph(0, 0)
	root := attachRoot(t, g, simref.NewSimulator(net, nil), net)

	candidate, err := tracer.CreateIsolated(context.Background(), simref.NewSimulator(net, nil), net)
	if err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}

	match := g.FindEquivalent(candidate)
	if match != root {
		t.Fatalf("FindEquivalent = %v, want root", match)
	}
}

func TestMarkCanLeadToFinalBackwardReachability(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()
	sim := simref.NewSimulator(net, []tracer.Event{
		{Src: "r1", Dst: "r2", Payload: simref.UpdatePayload("10/8", "r1")},
	})

	driver := tracer.NewDriver(sim, net, 0, 0)

	root, err := driver.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := driver.TraceStep(context.Background(), root.ID, 0)
	if err != nil {
		t.Fatalf("TraceStep: %v", err)
	}
	if res.Kind != tracer.StepNewState {
		t.Fatalf("Kind = %v, want StepNewState", res.Kind)
	}

	driver.Graph().MarkCanLeadToFinal()

	leaf, err := driver.Graph().State(res.StateID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}

	if !leaf.Flags.Has(tracer.FlagCanLeadToFinal) {
		t.Error("leaf (itself FINAL) missing FlagCanLeadToFinal")
	}
	if !root.Flags.Has(tracer.FlagCanLeadToFinal) {
		t.Error("root missing FlagCanLeadToFinal despite a path to a final state")
	}
}

func TestDetectOneCycleNoneOnDAG(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()
	sim := simref.NewSimulator(net, []tracer.Event{
		{Src: "r1", Dst: "r2", Payload: simref.UpdatePayload("10/8", "r1")},
	})

	driver := tracer.NewDriver(sim, net, 0, 0)

	if _, err := driver.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := driver.TraceWholeGraph(context.Background()); err != nil {
		t.Fatalf("TraceWholeGraph: %v", err)
	}

	if cd := driver.Graph().DetectOneCycle(); cd != nil {
		t.Errorf("DetectOneCycle() = %+v, want nil for an acyclic trace", cd)
	}

	if cds := driver.Graph().DetectAllCycles(); len(cds) != 0 {
		t.Errorf("DetectAllCycles() = %+v, want empty for an acyclic trace", cds)
	}
}

func TestGetActiveMinimumSessionSkipsBlockedAndComplete(t *testing.T) {
	t.Parallel()

	net := newTestNetwork()

	complete, err := tracer.CreateIsolated(context.Background(), simref.NewSimulator(net, nil), net)
	if err != nil {
		t.Fatalf("CreateIsolated complete: %v", err)
	}

	blocked, err := tracer.CreateIsolated(context.Background(), simref.NewSimulator(net, []tracer.Event{
		{Src: "r1", Dst: "r2", Payload: simref.UpdatePayload("10/8", "r1")},
	}), net)
	if err != nil {
		t.Fatalf("CreateIsolated blocked: %v", err)
	}
	blocked.DefinitelyBlocked = true

	active, err := tracer.CreateIsolated(context.Background(), simref.NewSimulator(net, []tracer.Event{
		{Src: "r1", Dst: "r2", Payload: simref.UpdatePayload("10/8", "r1")},
		{Src: "r1", Dst: "r3", Payload: simref.UpdatePayload("20/8", "r1")},
	}), net)
	if err != nil {
		t.Fatalf("CreateIsolated active: %v", err)
	}

	g := tracer.NewGraph(0, 0)

	best := g.GetActiveMinimumSession([]*tracer.State{complete, blocked, active})
	if best != active {
		t.Fatalf("GetActiveMinimumSession = %v, want the only unblocked, incomplete state", best)
	}
}
