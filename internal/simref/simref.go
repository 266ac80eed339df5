// Package simref provides an in-memory, deterministic reference
// implementation of the tracer's Simulator and Network collaborator
// interfaces. It never performs real BGP decision-process logic — it is a
// bookkeeping model of event delivery and route propagation used by the
// daemon, the CLI, and every test in this repository (spec.md §6 treats a
// real BGP engine as strictly out of scope).
package simref

import (
	"context"
	"fmt"
	"sort"

	"github.com/lpaquette/bgptracer/internal/tracer"
)

// StringValue is the simplest tracer.Value implementation: equality by
// plain string comparison. It is used for event payloads and routes in
// tests and in the bundled scenario format, where protocol-specific
// payload comparison collapses to content equality.
type StringValue string

// Clone returns a copy of the value (strings are already immutable, so
// this is just a type conversion).
func (v StringValue) Clone() tracer.Value {
	return v
}

// Equal reports whether other is a StringValue with the same content.
func (v StringValue) Equal(other tracer.Value) bool {
	o, ok := other.(StringValue)
	return ok && v == o
}

// Peer describes one router's configured BGP peer, in the router's
// configured peer order.
type Peer struct {
	Neighbor tracer.RouterID
}

// Router is one router's static configuration and live state within a
// Network.
type Router struct {
	ID    tracer.RouterID
	Peers []Peer

	fib      map[tracer.Prefix][]tracer.FIBEntry
	localRIB map[tracer.Prefix]tracer.Route
	adjIn    map[tracer.RouterID][]tracer.Route
	adjOut   map[tracer.RouterID][]tracer.Route
	seq      map[tracer.RouterID][2]uint32 // [send, recv]
}

// Network is the in-memory reference Network collaborator.
type Network struct {
	order   []tracer.RouterID
	routers map[tracer.RouterID]*Router
}

// NewNetwork builds a Network from the given routers, sorted by router id
// ascending (the stable order spec.md §6 requires).
func NewNetwork(routers []Router) *Network {
	n := &Network{routers: make(map[tracer.RouterID]*Router, len(routers))}

	for _, r := range routers {
		rc := r
		if rc.fib == nil {
			rc.fib = make(map[tracer.Prefix][]tracer.FIBEntry)
		}

		if rc.localRIB == nil {
			rc.localRIB = make(map[tracer.Prefix]tracer.Route)
		}

		if rc.adjIn == nil {
			rc.adjIn = make(map[tracer.RouterID][]tracer.Route)
		}

		if rc.adjOut == nil {
			rc.adjOut = make(map[tracer.RouterID][]tracer.Route)
		}

		if rc.seq == nil {
			rc.seq = make(map[tracer.RouterID][2]uint32)
		}

		n.routers[rc.ID] = &rc
		n.order = append(n.order, rc.ID)
	}

	sort.Slice(n.order, func(i, j int) bool { return n.order[i] < n.order[j] })

	return n
}

// Routers implements tracer.Network.
func (n *Network) Routers(_ context.Context) ([]tracer.RouterID, error) {
	out := make([]tracer.RouterID, len(n.order))
	copy(out, n.order)

	return out, nil
}

// Snapshot implements tracer.Network.
func (n *Network) Snapshot(_ context.Context, id tracer.RouterID) (tracer.RouterSnapshot, error) {
	r, ok := n.routers[id]
	if !ok {
		return tracer.RouterSnapshot{}, fmt.Errorf("simref: unknown router %s", id)
	}

	fib := make(map[tracer.Prefix][]tracer.FIBEntry, len(r.fib))
	for p, e := range r.fib {
		fib[p] = append([]tracer.FIBEntry(nil), e...)
	}

	rib := make(map[tracer.Prefix]tracer.Route, len(r.localRIB))
	for p, route := range r.localRIB {
		rib[p] = route
	}

	peers := make([]tracer.PeerSnapshot, len(r.Peers))

	for i, p := range r.Peers {
		s := r.seq[p.Neighbor]
		peers[i] = tracer.PeerSnapshot{
			NeighborAddr: p.Neighbor,
			SendSeq:      s[0],
			RecvSeq:      s[1],
			AdjRIBIn:     append([]tracer.Route(nil), r.adjIn[p.Neighbor]...),
			AdjRIBOut:    append([]tracer.Route(nil), r.adjOut[p.Neighbor]...),
		}
	}

	return tracer.RouterSnapshot{Router: id, FIB: fib, LocalRIB: rib, Peers: peers}, nil
}

// Restore implements tracer.Network.
func (n *Network) Restore(_ context.Context, id tracer.RouterID, snap tracer.RouterSnapshot) error {
	r, ok := n.routers[id]
	if !ok {
		return fmt.Errorf("simref: unknown router %s: %w", id, tracer.ErrIncompatibleTopology)
	}

	if len(snap.Peers) != len(r.Peers) {
		return fmt.Errorf("simref: peer count mismatch for %s: %w", id, tracer.ErrIncompatibleTopology)
	}

	for i, p := range snap.Peers {
		if p.NeighborAddr != r.Peers[i].Neighbor {
			return fmt.Errorf("simref: peer order mismatch for %s: %w", id, tracer.ErrIncompatibleTopology)
		}
	}

	r.fib = make(map[tracer.Prefix][]tracer.FIBEntry, len(snap.FIB))
	for p, e := range snap.FIB {
		r.fib[p] = append([]tracer.FIBEntry(nil), e...)
	}

	r.localRIB = make(map[tracer.Prefix]tracer.Route, len(snap.LocalRIB))
	for p, route := range snap.LocalRIB {
		r.localRIB[p] = route
	}

	r.adjIn = make(map[tracer.RouterID][]tracer.Route, len(snap.Peers))
	r.adjOut = make(map[tracer.RouterID][]tracer.Route, len(snap.Peers))
	r.seq = make(map[tracer.RouterID][2]uint32, len(snap.Peers))

	for _, p := range snap.Peers {
		r.adjIn[p.NeighborAddr] = append([]tracer.Route(nil), p.AdjRIBIn...)
		r.adjOut[p.NeighborAddr] = append([]tracer.Route(nil), p.AdjRIBOut...)
		r.seq[p.NeighborAddr] = [2]uint32{p.SendSeq, p.RecvSeq}
	}

	return nil
}

// UpdatePayload is the StringValue-encoded payload carried by an UPDATE
// event in the reference scenario format: "update <prefix> via <nexthop>".
func UpdatePayload(prefix, nexthop string) tracer.Value {
	return StringValue("update " + prefix + " via " + nexthop)
}

// WithdrawPayload is the StringValue-encoded payload carried by a WITHDRAW
// event: "withdraw <prefix>".
func WithdrawPayload(prefix string) tracer.Value {
	return StringValue("withdraw " + prefix)
}

// ApplyUpdate installs prefix into dst's adj-rib-in from src, its local RIB,
// and its forwarding table, modeling the simplest possible BGP decision: a
// single route always wins. This is the only place Simulator.Step's effect
// on routing state is decided, and it is deliberately minimal — the real
// decision process is out of scope.
func (n *Network) ApplyUpdate(dst, src tracer.RouterID, prefix tracer.Prefix, route tracer.Route) {
	r, ok := n.routers[dst]
	if !ok {
		return
	}

	r.adjIn[src] = appendRoute(r.adjIn[src], prefix, route)
	r.localRIB[prefix] = route
	r.fib[prefix] = []tracer.FIBEntry{{NextHop: src, Iface: string(src), Metric: 0, Type: "bgp"}}
}

// ApplyWithdraw removes prefix from dst's local RIB and forwarding table.
func (n *Network) ApplyWithdraw(dst tracer.RouterID, prefix tracer.Prefix) {
	r, ok := n.routers[dst]
	if !ok {
		return
	}

	delete(r.localRIB, prefix)
	delete(r.fib, prefix)
}

func appendRoute(existing []tracer.Route, _ tracer.Prefix, route tracer.Route) []tracer.Route {
	return append(existing, route)
}
