package tracer

// RouterID identifies a router by its network address, used both as a map
// key and as the fixed sort key for router and directed-session ordering.
type RouterID string

// Session is an ordered (src, dst) router pair — a "directed session" in
// the simulated BGP transport. Only the head of a session's FIFO sub-queue
// is ever eligible for delivery (see QueueSnapshot.AllowedTransitions).
type Session struct {
	Src RouterID
	Dst RouterID
}

// Value is the capability interface every deep-copied, compared payload in
// a snapshot implements: BGP routes and opaque event payloads (forwarding-
// table entries are plain comparable FIBEntry values instead). The tracer never interprets a Value's contents directly —
// equality and cloning are dispatched through the collaborator-supplied
// implementation, exactly as the source dispatches through comparator
// tables rather than hand-rolled switch statements.
type Value interface {
	// Clone returns an independent deep copy.
	Clone() Value
	// Equal reports whether two values of the same kind are equivalent.
	// Implementations may assume other is the same concrete type; a
	// mismatched type is not equal.
	Equal(other Value) bool
}

// Event is an opaque record delivered by the external simulator. The
// tracer reads only Src/Dst to compute directed sessions; Payload
// equality is delegated to the collaborator via Payload.Equal.
type Event struct {
	Src     RouterID
	Dst     RouterID
	Payload Value
}

// Clone returns a deep copy of the event, cloning its payload.
func (e Event) Clone() Event {
	var p Value
	if e.Payload != nil {
		p = e.Payload.Clone()
	}

	return Event{Src: e.Src, Dst: e.Dst, Payload: p}
}

// Equal reports whether two events are equivalent: same source,
// destination, and protocol-dispatched payload equality.
func (e Event) Equal(other Event) bool {
	if e.Src != other.Src || e.Dst != other.Dst {
		return false
	}

	if e.Payload == nil || other.Payload == nil {
		return e.Payload == nil && other.Payload == nil
	}

	return e.Payload.Equal(other.Payload)
}

func (s Session) of(e Event) bool {
	return s.Src == e.Src && s.Dst == e.Dst
}

func sessionOf(e Event) Session {
	return Session{Src: e.Src, Dst: e.Dst}
}
