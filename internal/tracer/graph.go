package tracer

import (
	"fmt"
	"time"
)

// CycleDescriptor describes a cycle found by Graph.DetectOneCycle or
// Graph.DetectAllCycles: a path from some ancestor into the cycle, and the
// cycle itself in traversal order.
type CycleDescriptor struct {
	Prefix []StateID
	Cycle  []StateID
}

// Graph owns every state in one trace by construction. States are never
// destroyed individually; the whole graph is discarded together.
type Graph struct {
	tracer *Driver

	states      []*State
	finalStates []*State

	root *State

	maxStates      int
	maxFinalStates int

	// finalListDropped counts FINAL states that could not be added to the
	// fast-lookup list because max_final_states was reached. Non-fatal:
	// the state itself is still attached and flagged FINAL.
	finalListDropped int

	markingSeqCounter uint64

	cycles      []CycleDescriptor
	cyclesValid bool

	cursor *State

	metrics MetricsReporter
}

// NewGraph constructs an empty graph with the given state caps. A
// maxStates or maxFinalStates of 0 means unbounded.
func NewGraph(maxStates, maxFinalStates int) *Graph {
	return &Graph{maxStates: maxStates, maxFinalStates: maxFinalStates}
}

// Root returns the graph's initial state, or nil if the graph has not been
// seeded yet.
func (g *Graph) Root() *State {
	return g.root
}

// States returns every attached state, in id order.
func (g *Graph) States() []*State {
	out := make([]*State, len(g.states))
	copy(out, g.states)

	return out
}

// State returns the state with the given id.
func (g *Graph) State(id StateID) (*State, error) {
	if id < 0 || int(id) >= len(g.states) {
		return nil, ErrUnknownState
	}

	return g.states[id], nil
}

// FinalStates returns the final states recorded in the fast-lookup list
// (bounded by max_final_states — see FinalListDropped for overflow).
func (g *Graph) FinalStates() []*State {
	out := make([]*State, len(g.finalStates))
	copy(out, g.finalStates)

	return out
}

// FinalListDropped returns how many FINAL states exist but were not added
// to the fast-lookup list because max_final_states was reached.
func (g *Graph) FinalListDropped() int {
	return g.finalListDropped
}

// Cursor returns the state the driver is currently positioned at during
// interactive stepping (promoted from the original's
// FOR_TESTING_PURPOSE_current_state — see SPEC_FULL.md).
func (g *Graph) Cursor() *State {
	return g.cursor
}

// SetCursor sets the driver's current interactive position.
func (g *Graph) SetCursor(s *State) {
	g.cursor = s
}

func (g *Graph) addState(s *State) error {
	if g.maxStates > 0 && len(g.states) >= g.maxStates {
		return ErrGraphFull
	}

	s.ID = StateID(len(g.states))
	g.states = append(g.states, s)

	if g.root == nil {
		g.root = s
	}

	g.cyclesValid = false

	return nil
}

func (g *Graph) addFinalState(s *State) error {
	if g.maxFinalStates > 0 && len(g.finalStates) >= g.maxFinalStates {
		g.finalListDropped++

		if g.metrics != nil {
			g.metrics.IncFinalListDropped()
		}

		return nil
	}

	g.finalStates = append(g.finalStates, s)

	return nil
}

// FindEquivalent performs a linear scan over every attached state looking
// for one structurally equivalent to candidate. The reference
// implementation does not index; an implementer may add one keyed on
// (event count, max messages per session, routing hash) with no change in
// observable behavior (spec.md §4.5).
func (g *Graph) FindEquivalent(candidate *State) *State {
	for _, s := range g.states {
		if EquivalentQueues(s.Queue, candidate.Queue) && EquivalentRouting(s.Routing, candidate.Routing) {
			return s
		}
	}

	return nil
}

// MarkCanLeadToFinal increments the sweep counter, then for every final
// state walks backward along incoming transitions, setting
// FlagCanLeadToFinal on every state reached. A state whose MarkingSeq
// already equals the new counter is skipped, which both prevents infinite
// recursion on a cycle and makes repeated calls idempotent modulo the
// counter.
func (g *Graph) MarkCanLeadToFinal() {
	start := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.ObserveMarkingSweep(time.Since(start))
		}
	}()

	g.markingSeqCounter++
	seq := g.markingSeqCounter

	var stack []*State
	stack = append(stack, g.finalStates...)

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.MarkingSeq == seq {
			continue
		}

		s.MarkingSeq = seq
		s.Flags |= FlagCanLeadToFinal

		for _, in := range s.Incoming {
			if in.From != nil && in.From.MarkingSeq != seq {
				stack = append(stack, in.From)
			}
		}
	}
}

// DetectOneCycle returns the first cycle found by a DFS over outgoing
// transitions, or nil if the graph is acyclic. The prefix is the path from
// some ancestor (including the root, if reached that way) into the cycle;
// cycle is the cycle itself in traversal order, starting and ending at the
// same state id.
func (g *Graph) DetectOneCycle() *CycleDescriptor {
	if g.root == nil {
		return nil
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[StateID]int, len(g.states))

	var path []StateID

	var dfs func(s *State) *CycleDescriptor

	dfs = func(s *State) *CycleDescriptor {
		color[s.ID] = gray
		path = append(path, s.ID)

		for _, out := range s.Outgoing {
			if out.To == nil {
				continue
			}

			switch color[out.To.ID] {
			case white:
				if cd := dfs(out.To); cd != nil {
					return cd
				}
			case gray:
				idx := indexOf(path, out.To.ID)
				cycle := append([]StateID(nil), path[idx:]...)
				cycle = append(cycle, out.To.ID)

				return &CycleDescriptor{
					Prefix: append([]StateID(nil), path[:idx]...),
					Cycle:  cycle,
				}
			}
		}

		color[s.ID] = black
		path = path[:len(path)-1]

		return nil
	}

	return dfs(g.root)
}

// DetectAllCycles returns every back-edge found by a DFS over outgoing
// transitions. The cached list is invalidated whenever the graph changes
// and recomputed on demand.
func (g *Graph) DetectAllCycles() []CycleDescriptor {
	if g.cyclesValid {
		return append([]CycleDescriptor(nil), g.cycles...)
	}

	var found []CycleDescriptor

	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[StateID]int, len(g.states))

	for _, root := range g.states {
		if color[root.ID] != white {
			continue
		}

		var path []StateID

		var dfs func(s *State)

		dfs = func(s *State) {
			color[s.ID] = gray
			path = append(path, s.ID)

			for _, out := range s.Outgoing {
				if out.To == nil {
					continue
				}

				switch color[out.To.ID] {
				case white:
					dfs(out.To)
				case gray:
					idx := indexOf(path, out.To.ID)
					cycle := append([]StateID(nil), path[idx:]...)
					cycle = append(cycle, out.To.ID)
					found = append(found, CycleDescriptor{
						Prefix: append([]StateID(nil), path[:idx]...),
						Cycle:  cycle,
					})
				}
			}

			color[s.ID] = black
			path = path[:len(path)-1]
		}

		dfs(root)
	}

	g.cycles = found
	g.cyclesValid = true

	return append([]CycleDescriptor(nil), found...)
}

// GetActiveMinimumSession returns, among the given candidate states where
// |outgoing| < |allowed| and DefinitelyBlocked is false, the one
// minimizing MaxSessionDepth — the fairness scheduler that expands the
// least-congested session first. Returns nil if no candidate qualifies.
func (g *Graph) GetActiveMinimumSession(candidates []*State) *State {
	var best *State

	for _, s := range candidates {
		if s.DefinitelyBlocked {
			continue
		}

		if len(s.Outgoing) >= len(s.Queue.AllowedTransitions()) {
			continue
		}

		if best == nil || s.Queue.MaxSessionDepth() < best.Queue.MaxSessionDepth() {
			best = s
		}
	}

	return best
}

func indexOf(path []StateID, id StateID) int {
	for i, p := range path {
		if p == id {
			return i
		}
	}

	return -1
}

// MaxQueueDepth returns the maximum, over every attached state, of
// max_msgs_per_directed_session — the same quantity tracermetrics reports
// as a gauge.
func (g *Graph) MaxQueueDepth() uint {
	var max uint

	for _, s := range g.states {
		if d := s.Queue.MaxSessionDepth(); d > max {
			max = d
		}
	}

	return max
}

func (g *Graph) String() string {
	return fmt.Sprintf("graph{states=%d final=%d dropped=%d}", len(g.states), len(g.finalStates), g.finalListDropped)
}
