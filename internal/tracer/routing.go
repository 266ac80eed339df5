package tracer

import (
	"context"
	"fmt"
)

// Prefix is an address-prefix key shared by forwarding tables and RIBs.
type Prefix string

// FIBEntry is one forwarding-table entry for a prefix: next-hop, outgoing
// interface, metric, and type. These fields are plain comparable values —
// no collaborator dispatch is needed for them, unlike routes.
type FIBEntry struct {
	NextHop RouterID
	Iface   string
	Metric  int
	Type    string
}

// Equal reports whether two forwarding-table entries are identical.
func (e FIBEntry) Equal(o FIBEntry) bool {
	return e.NextHop == o.NextHop && e.Iface == o.Iface && e.Metric == o.Metric && e.Type == o.Type
}

// Route is a BGP route. Its equality and cloning are dispatched through the
// BGP collaborator via the Value capability interface, since route content
// is opaque to the tracer.
type Route = Value

// PeerSnapshot captures one BGP peer's session metadata and both adjacency
// RIBs at capture time.
type PeerSnapshot struct {
	NeighborAddr RouterID
	SendSeq      uint32
	RecvSeq      uint32
	NextHop      string
	SrcAddr      string
	LastError    string
	AdjRIBIn     []Route
	AdjRIBOut    []Route
}

func (p PeerSnapshot) clone() PeerSnapshot {
	c := p
	c.AdjRIBIn = cloneRoutes(p.AdjRIBIn)
	c.AdjRIBOut = cloneRoutes(p.AdjRIBOut)

	return c
}

func cloneRoutes(rs []Route) []Route {
	out := make([]Route, len(rs))
	for i, r := range rs {
		if r != nil {
			out[i] = r.Clone()
		}
	}

	return out
}

func routesEqual(a, b []Route) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] == nil || b[i] == nil {
			if a[i] != b[i] {
				return false
			}

			continue
		}

		if !a[i].Equal(b[i]) {
			return false
		}
	}

	return true
}

// RouterSnapshot is one router's forwarding table, local RIB, and per-peer
// adjacency RIBs/session metadata, captured at a single instant.
type RouterSnapshot struct {
	Router RouterID

	// FIB maps a prefix to its ordered list of forwarding entries.
	FIB map[Prefix][]FIBEntry

	// LocalRIB maps a prefix to the router's chosen BGP route.
	LocalRIB map[Prefix]Route

	// Peers is in the router's configured peer order.
	Peers []PeerSnapshot
}

func (r RouterSnapshot) clone() RouterSnapshot {
	fib := make(map[Prefix][]FIBEntry, len(r.FIB))

	for p, entries := range r.FIB {
		cp := make([]FIBEntry, len(entries))
		copy(cp, entries)
		fib[p] = cp
	}

	rib := make(map[Prefix]Route, len(r.LocalRIB))

	for p, route := range r.LocalRIB {
		if route != nil {
			rib[p] = route.Clone()
		}
	}

	peers := make([]PeerSnapshot, len(r.Peers))
	for i, p := range r.Peers {
		peers[i] = p.clone()
	}

	return RouterSnapshot{Router: r.Router, FIB: fib, LocalRIB: rib, Peers: peers}
}

func fibEqual(a, b map[Prefix][]FIBEntry) bool {
	if len(a) != len(b) {
		return false
	}

	for prefix, ea := range a {
		eb, ok := b[prefix]
		if !ok || len(ea) != len(eb) {
			return false
		}

		for i := range ea {
			if !ea[i].Equal(eb[i]) {
				return false
			}
		}
	}

	return true
}

func ribEqual(a, b map[Prefix]Route) bool {
	if len(a) != len(b) {
		return false
	}

	for prefix, ra := range a {
		rb, ok := b[prefix]
		if !ok {
			return false
		}

		if ra == nil || rb == nil {
			if ra != rb {
				return false
			}

			continue
		}

		if !ra.Equal(rb) {
			return false
		}
	}

	return true
}

func peersEqual(a, b []PeerSnapshot) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].NeighborAddr != b[i].NeighborAddr {
			return false
		}

		if !routesEqual(a[i].AdjRIBIn, b[i].AdjRIBIn) {
			return false
		}

		if !routesEqual(a[i].AdjRIBOut, b[i].AdjRIBOut) {
			return false
		}
	}

	return true
}

// RoutingSnapshot is a deep copy of every router's routing state, in the
// router order fixed at graph creation.
type RoutingSnapshot struct {
	order   []RouterID
	routers map[RouterID]RouterSnapshot
}

// CaptureRouting deep-copies every router's current routing state from net,
// enumerated in net's stable router order.
func CaptureRouting(ctx context.Context, net Network) (RoutingSnapshot, error) {
	order, err := net.Routers(ctx)
	if err != nil {
		return RoutingSnapshot{}, err
	}

	routers := make(map[RouterID]RouterSnapshot, len(order))

	for _, id := range order {
		snap, err := net.Snapshot(ctx, id)
		if err != nil {
			return RoutingSnapshot{}, err
		}

		routers[id] = snap.clone()
	}

	return RoutingSnapshot{order: order, routers: routers}, nil
}

// Inject restores every router's forwarding table, local RIB, and per-peer
// adjacency RIBs and session metadata from this snapshot. Returns
// ErrIncompatibleTopology (wrapped) if any router's peer list in net does
// not match the snapshot's, in order.
func (rs RoutingSnapshot) Inject(ctx context.Context, net Network) error {
	for _, id := range rs.order {
		snap := rs.routers[id]
		if err := net.Restore(ctx, id, snap.clone()); err != nil {
			return fmt.Errorf("inject router %s: %w", id, err)
		}
	}

	return nil
}

// Routers returns the fixed router order for this snapshot.
func (rs RoutingSnapshot) Routers() []RouterID {
	out := make([]RouterID, len(rs.order))
	copy(out, rs.order)

	return out
}

// RouterSnapshot returns the snapshot for a single router, if present.
func (rs RoutingSnapshot) RouterSnapshot(id RouterID) (RouterSnapshot, bool) {
	s, ok := rs.routers[id]
	return s, ok
}

// EquivalentRouting reports whether two routing snapshots are equivalent:
// for each router, in fixed order, equal forwarding tables, equal local
// RIBs, and equal peer lists (same length, same order, equal adjacency
// RIBs). Session sequence counters are not part of identity.
func EquivalentRouting(a, b RoutingSnapshot) bool {
	if len(a.order) != len(b.order) {
		return false
	}

	for i, id := range a.order {
		if b.order[i] != id {
			return false
		}

		ra, oka := a.routers[id]
		rb, okb := b.routers[id]

		if oka != okb {
			return false
		}

		if !oka {
			continue
		}

		if !fibEqual(ra.FIB, rb.FIB) {
			return false
		}

		if !ribEqual(ra.LocalRIB, rb.LocalRIB) {
			return false
		}

		if !peersEqual(ra.Peers, rb.Peers) {
			return false
		}
	}

	return true
}

// Diff returns a short diagnostic description of the first mismatch found
// between two routing snapshots, or "" if they are equivalent. It is purely
// informational and never participates in the equivalence decision — see
// DESIGN.md's resolution of the routing_info_compare open question.
func Diff(a, b RoutingSnapshot) string {
	if len(a.order) != len(b.order) {
		return fmt.Sprintf("router count differs: %d vs %d", len(a.order), len(b.order))
	}

	for i, id := range a.order {
		if b.order[i] != id {
			return fmt.Sprintf("router order differs at position %d: %s vs %s", i, id, b.order[i])
		}

		ra, oka := a.routers[id]
		rb, okb := b.routers[id]

		if oka != okb {
			return fmt.Sprintf("router %s present in only one snapshot", id)
		}

		if !oka {
			continue
		}

		if !fibEqual(ra.FIB, rb.FIB) {
			return fmt.Sprintf("router %s: forwarding table differs", id)
		}

		if !ribEqual(ra.LocalRIB, rb.LocalRIB) {
			return fmt.Sprintf("router %s: local RIB differs", id)
		}

		if !peersEqual(ra.Peers, rb.Peers) {
			return fmt.Sprintf("router %s: peer adjacency RIBs differ", id)
		}
	}

	return ""
}
