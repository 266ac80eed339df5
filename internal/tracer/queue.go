package tracer

import "context"

// QueueSnapshot is a deep copy, in FIFO order, of the external simulator's
// pending-event queue, captured at a single instant. It caches the derived
// attributes used by the branching rule and by equivalence comparison so
// that both are pure functions of already-computed data.
type QueueSnapshot struct {
	events []Event

	// allowed holds the indices of the first event of each distinct
	// ordered (src, dst) session, in strictly increasing order. Computed
	// once at construction and frozen.
	allowed []int

	// maxPerSession is the maximum, over every session present, of how
	// many events belong to it.
	maxPerSession uint

	// sessionCount is the number of distinct ordered (src, dst) pairs
	// present in events.
	sessionCount int
}

// CaptureQueue deep-copies sim's pending FIFO and pre-computes the cached
// attributes described in the data model: allowed transitions,
// max-messages-per-session, and session count.
func CaptureQueue(ctx context.Context, sim Simulator) (QueueSnapshot, error) {
	n, err := sim.EventsLen(ctx)
	if err != nil {
		return QueueSnapshot{}, err
	}

	events := make([]Event, n)

	for i := range n {
		e, err := sim.EventAt(ctx, i)
		if err != nil {
			return QueueSnapshot{}, err
		}

		events[i] = e.Clone()
	}

	q := QueueSnapshot{events: events}
	q.computeDerived()

	return q, nil
}

func (q *QueueSnapshot) computeDerived() {
	seen := make(map[Session]int, len(q.events))
	counts := make(map[Session]uint, len(q.events))
	allowed := make([]int, 0, len(q.events))

	for i, e := range q.events {
		s := sessionOf(e)
		counts[s]++

		if _, ok := seen[s]; !ok {
			seen[s] = i
			allowed = append(allowed, i)
		}
	}

	var maxPerSession uint
	for _, c := range counts {
		if c > maxPerSession {
			maxPerSession = c
		}
	}

	q.allowed = allowed
	q.maxPerSession = maxPerSession
	q.sessionCount = len(counts)
}

// Inject replaces sim's FIFO with a deep copy of this snapshot's events,
// preserving order.
func (q QueueSnapshot) Inject(ctx context.Context, sim Simulator) error {
	copies := make([]Event, len(q.events))
	for i, e := range q.events {
		copies[i] = e.Clone()
	}

	return sim.FifoReplace(ctx, copies)
}

// Len returns the total event count.
func (q QueueSnapshot) Len() int {
	return len(q.events)
}

// AllowedTransitions returns the frozen, strictly increasing indices of the
// first event of each distinct ordered (src, dst) session.
func (q QueueSnapshot) AllowedTransitions() []int {
	out := make([]int, len(q.allowed))
	copy(out, q.allowed)

	return out
}

// MaxSessionDepth returns the maximum number of events belonging to any one
// directed session in this snapshot.
func (q QueueSnapshot) MaxSessionDepth() uint {
	return q.maxPerSession
}

// SessionCount returns the number of distinct ordered (src, dst) pairs
// present in this snapshot.
func (q QueueSnapshot) SessionCount() int {
	return q.sessionCount
}

// EventAt returns the event at FIFO index i.
func (q QueueSnapshot) EventAt(i int) Event {
	return q.events[i]
}

// CountForSession returns how many events in this snapshot belong to the
// ordered (src, dst) session.
func (q QueueSnapshot) CountForSession(src, dst RouterID) int {
	s := Session{Src: src, Dst: dst}

	n := 0

	for _, e := range q.events {
		if s.of(e) {
			n++
		}
	}

	return n
}

// EquivalentQueues reports whether two queue snapshots are equivalent per
// the structural-equivalence algorithm: same total count, same
// max-messages-per-session, and for every ordered (src, dst) session the
// sub-sequence of events of that session, taken in FIFO order, pairwise
// equivalent. Global interleaving between distinct sessions is not part of
// identity — only each session's own internal order is.
func EquivalentQueues(a, b QueueSnapshot) bool {
	if len(a.events) != len(b.events) {
		return false
	}

	if a.maxPerSession != b.maxPerSession {
		return false
	}

	visitedA := make([]bool, len(a.events))
	visitedB := make([]bool, len(b.events))

	for i, ea := range a.events {
		if visitedA[i] {
			continue
		}

		s := sessionOf(ea)

		j := firstUnvisited(b.events, visitedB, s)
		if j < 0 {
			return false
		}

		// Walk both snapshots forward through this directed session in
		// lockstep, comparing and marking as we go.
		ai, bi := i, j
		for ai < len(a.events) && bi < len(b.events) {
			for ai < len(a.events) && (visitedA[ai] || !s.of(a.events[ai])) {
				ai++
			}

			for bi < len(b.events) && (visitedB[bi] || !s.of(b.events[bi])) {
				bi++
			}

			if ai >= len(a.events) || bi >= len(b.events) {
				break
			}

			if !a.events[ai].Equal(b.events[bi]) {
				return false
			}

			visitedA[ai] = true
			visitedB[bi] = true
			ai++
			bi++
		}
	}

	for _, v := range visitedA {
		if !v {
			return false
		}
	}

	for _, v := range visitedB {
		if !v {
			return false
		}
	}

	return true
}

func firstUnvisited(events []Event, visited []bool, s Session) int {
	for i, e := range events {
		if !visited[i] && s.of(e) {
			return i
		}
	}

	return -1
}
