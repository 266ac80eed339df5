package tracer

import "context"

// Simulator is the external discrete-event engine the tracer drives. The
// tracer never reimplements event delivery or BGP decision logic — it
// consumes exactly this surface, per the collaborator boundary.
type Simulator interface {
	// EventsLen returns the number of events currently pending in the FIFO.
	EventsLen(ctx context.Context) (int, error)
	// EventAt returns a read-only view of the event at FIFO position i.
	EventAt(ctx context.Context, i int) (Event, error)
	// SetFirst permutes the FIFO so the event at position i becomes
	// position 0, preserving the relative order of every other event.
	// This must be an exact positional reorder, never an arbitrary swap.
	SetFirst(ctx context.Context, i int) error
	// Step advances the simulator by exactly one event (the current head
	// of the FIFO) and applies its effect to the Network collaborator.
	Step(ctx context.Context) error
	// FifoReplace destroys the current FIFO and installs the given events
	// in order, each already an owned copy.
	FifoReplace(ctx context.Context, events []Event) error
}

// Network is the external topology/routing-table collaborator. The tracer
// only reads and replaces the structures listed here; it never computes a
// BGP decision or alters topology.
type Network interface {
	// Routers returns every router id in the network, ascending.
	Routers(ctx context.Context) ([]RouterID, error)
	// Snapshot captures router r's current forwarding table, local RIB,
	// and per-peer adjacency RIBs and session metadata.
	Snapshot(ctx context.Context, r RouterID) (RouterSnapshot, error)
	// Restore replaces router r's forwarding table, local RIB, and
	// per-peer adjacency RIBs and session metadata with snap's contents.
	// Restore must fail with ErrIncompatibleTopology if r's current peer
	// list does not match snap's peer list, in order.
	Restore(ctx context.Context, r RouterID, snap RouterSnapshot) error
}
