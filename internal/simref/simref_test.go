package simref_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lpaquette/bgptracer/internal/simref"
	"github.com/lpaquette/bgptracer/internal/tracer"
)

func TestNewNetworkOrdersRoutersAscending(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "r3"},
		{ID: "r1"},
		{ID: "r2"},
	})

	got, err := net.Routers(context.Background())
	if err != nil {
		t.Fatalf("Routers: %v", err)
	}

	want := []tracer.RouterID{"r1", "r2", "r3"}
	if len(got) != len(want) {
		t.Fatalf("Routers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Routers()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "r1", Peers: []simref.Peer{{Neighbor: "r2"}}},
		{ID: "r2", Peers: []simref.Peer{{Neighbor: "r1"}}},
	})

	net.ApplyUpdate("r2", "r1", "10/8", simref.StringValue("10/8 via r1"))

	snap, err := net.Snapshot(context.Background(), "r2")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if _, ok := snap.LocalRIB["10/8"]; !ok {
		t.Fatal("snapshot missing 10/8 in local RIB after ApplyUpdate")
	}

	net.ApplyWithdraw("r2", "10/8")

	cleared, err := net.Snapshot(context.Background(), "r2")
	if err != nil {
		t.Fatalf("Snapshot after withdraw: %v", err)
	}
	if _, ok := cleared.LocalRIB["10/8"]; ok {
		t.Error("snapshot still has 10/8 in local RIB after ApplyWithdraw")
	}

	if err := net.Restore(context.Background(), "r2", snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := net.Snapshot(context.Background(), "r2")
	if err != nil {
		t.Fatalf("Snapshot after restore: %v", err)
	}
	if _, ok := restored.LocalRIB["10/8"]; !ok {
		t.Error("snapshot missing 10/8 in local RIB after Restore")
	}
}

func TestRestoreTopologyMismatch(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "r1", Peers: []simref.Peer{{Neighbor: "r2"}}},
	})

	foreign := simref.NewNetwork([]simref.Router{
		{ID: "r1", Peers: []simref.Peer{{Neighbor: "r2"}, {Neighbor: "r3"}}},
	})

	snap, err := foreign.Snapshot(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	err = net.Restore(context.Background(), "r1", snap)
	if !errors.Is(err, tracer.ErrIncompatibleTopology) {
		t.Fatalf("Restore error = %v, want ErrIncompatibleTopology", err)
	}
}

func TestSimulatorSetFirstExactPositionalReorder(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{
		{ID: "r1", Peers: []simref.Peer{{Neighbor: "r2"}, {Neighbor: "r3"}}},
		{ID: "r2", Peers: []simref.Peer{{Neighbor: "r1"}}},
		{ID: "r3", Peers: []simref.Peer{{Neighbor: "r1"}}},
	})

	events := []tracer.Event{
		{Src: "r1", Dst: "r2", Payload: simref.UpdatePayload("10/8", "r1")},
		{Src: "r1", Dst: "r3", Payload: simref.UpdatePayload("20/8", "r1")},
		{Src: "r1", Dst: "r2", Payload: simref.UpdatePayload("30/8", "r1")},
	}

	sim := simref.NewSimulator(net, events)

	if err := sim.SetFirst(context.Background(), 2); err != nil {
		t.Fatalf("SetFirst: %v", err)
	}

	first, err := sim.EventAt(context.Background(), 0)
	if err != nil {
		t.Fatalf("EventAt(0): %v", err)
	}
	if sv, ok := first.Payload.(simref.StringValue); !ok || string(sv) != "update 30/8 via r1" {
		t.Errorf("EventAt(0) = %v, want the 30/8 update moved to the front", first)
	}

	second, err := sim.EventAt(context.Background(), 1)
	if err != nil {
		t.Fatalf("EventAt(1): %v", err)
	}
	if sv, ok := second.Payload.(simref.StringValue); !ok || string(sv) != "update 10/8 via r1" {
		t.Errorf("EventAt(1) = %v, want the 10/8 update preserved in relative order", second)
	}

	third, err := sim.EventAt(context.Background(), 2)
	if err != nil {
		t.Fatalf("EventAt(2): %v", err)
	}
	if sv, ok := third.Payload.(simref.StringValue); !ok || string(sv) != "update 20/8 via r1" {
		t.Errorf("EventAt(2) = %v, want the 20/8 update preserved in relative order", third)
	}
}

func TestSimulatorStepEmptyQueueFails(t *testing.T) {
	t.Parallel()

	net := simref.NewNetwork([]simref.Router{{ID: "r1"}})
	sim := simref.NewSimulator(net, nil)

	err := sim.Step(context.Background())
	if !errors.Is(err, tracer.ErrSimulatorStepFailed) {
		t.Fatalf("Step on empty queue error = %v, want ErrSimulatorStepFailed", err)
	}
}

func TestStringValueEquality(t *testing.T) {
	t.Parallel()

	a := simref.StringValue("x")
	b := simref.StringValue("x")
	c := simref.StringValue("y")

	if !a.Equal(b) {
		t.Error("a.Equal(b) = false, want true for identical StringValues")
	}
	if a.Equal(c) {
		t.Error("a.Equal(c) = true, want false for differing StringValues")
	}
	if !a.Equal(a.Clone()) {
		t.Error("a.Equal(a.Clone()) = false, want true")
	}
}
