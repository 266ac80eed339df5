package simref

import (
	"context"
	"fmt"
	"strings"

	"github.com/lpaquette/bgptracer/internal/tracer"
)

// Simulator is the in-memory reference Simulator collaborator: a plain
// FIFO of events plus a Network it applies each stepped event's effect to.
// It never reorders anything on its own — SetFirst is the tracer's only
// way to choose the next event, matching spec.md §6's exact-positional-
// reorder requirement.
type Simulator struct {
	events []tracer.Event
	net    *Network
}

// NewSimulator builds a Simulator seeded with the given events, in FIFO
// order, bound to net for applying each stepped event's routing effect.
func NewSimulator(net *Network, events []tracer.Event) *Simulator {
	s := &Simulator{net: net}
	s.events = make([]tracer.Event, len(events))

	for i, e := range events {
		s.events[i] = e.Clone()
	}

	return s
}

// EventsLen implements tracer.Simulator.
func (s *Simulator) EventsLen(_ context.Context) (int, error) {
	return len(s.events), nil
}

// EventAt implements tracer.Simulator.
func (s *Simulator) EventAt(_ context.Context, i int) (tracer.Event, error) {
	if i < 0 || i >= len(s.events) {
		return tracer.Event{}, fmt.Errorf("simref: event index %d out of range", i)
	}

	return s.events[i], nil
}

// SetFirst implements tracer.Simulator: an exact positional reorder that
// brings the event at i to the front, preserving the relative order of
// every other event.
func (s *Simulator) SetFirst(_ context.Context, i int) error {
	if i < 0 || i >= len(s.events) {
		return fmt.Errorf("simref: set_first index %d out of range", i)
	}

	chosen := s.events[i]
	rest := make([]tracer.Event, 0, len(s.events)-1)
	rest = append(rest, s.events[:i]...)
	rest = append(rest, s.events[i+1:]...)
	s.events = append([]tracer.Event{chosen}, rest...)

	return nil
}

// Step implements tracer.Simulator: delivers the event currently at the
// head of the FIFO, applying its effect to the bound Network, then removes
// it.
func (s *Simulator) Step(_ context.Context) error {
	if len(s.events) == 0 {
		return fmt.Errorf("%w: no pending events", tracer.ErrSimulatorStepFailed)
	}

	head := s.events[0]
	s.events = s.events[1:]

	if err := s.apply(head); err != nil {
		return fmt.Errorf("%w: %w", tracer.ErrSimulatorStepFailed, err)
	}

	return nil
}

// FifoReplace implements tracer.Simulator.
func (s *Simulator) FifoReplace(_ context.Context, events []tracer.Event) error {
	cp := make([]tracer.Event, len(events))
	for i, e := range events {
		cp[i] = e.Clone()
	}

	s.events = cp

	return nil
}

// apply decodes the StringValue payload convention used by the scenario
// format ("update <prefix> via <nexthop>" or "withdraw <prefix>") and
// updates the destination router's routing state accordingly.
func (s *Simulator) apply(e tracer.Event) error {
	sv, ok := e.Payload.(StringValue)
	if !ok {
		return fmt.Errorf("simref: unsupported payload type %T", e.Payload)
	}

	fields := strings.Fields(string(sv))
	if len(fields) == 0 {
		return fmt.Errorf("simref: empty payload")
	}

	switch fields[0] {
	case "update":
		if len(fields) != 4 || fields[2] != "via" {
			return fmt.Errorf("simref: malformed update payload %q", sv)
		}

		prefix := tracer.Prefix(fields[1])
		nexthop := fields[3]
		s.net.ApplyUpdate(e.Dst, e.Src, prefix, StringValue(fmt.Sprintf("%s via %s", prefix, nexthop)))

		return nil
	case "withdraw":
		if len(fields) != 2 {
			return fmt.Errorf("simref: malformed withdraw payload %q", sv)
		}

		s.net.ApplyWithdraw(e.Dst, tracer.Prefix(fields[1]))

		return nil
	default:
		return fmt.Errorf("simref: unknown payload verb %q", fields[0])
	}
}
