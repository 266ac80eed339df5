// Package scenario loads a YAML description of a network topology and a
// seed event set, used to bootstrap the tracer's root state. This is
// distinct from internal/config's koanf-layered daemon configuration —
// grounded on the teacher's direct yaml.v3 use for structured files outside
// the daemon config path (test/integration, cmd/gobfd-haproxy-agent).
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lpaquette/bgptracer/internal/simref"
	"github.com/lpaquette/bgptracer/internal/tracer"
)

// PeerSpec is one router's configured peer, in configured order.
type PeerSpec struct {
	Neighbor string `yaml:"neighbor"`
}

// RouterSpec is one router's static configuration.
type RouterSpec struct {
	ID    string     `yaml:"id"`
	Peers []PeerSpec `yaml:"peers"`
}

// EventSpec is one seed event in the root queue. Kind is "update" or
// "withdraw"; Prefix and NextHop are interpreted per Kind.
type EventSpec struct {
	Src     string `yaml:"src"`
	Dst     string `yaml:"dst"`
	Kind    string `yaml:"kind"`
	Prefix  string `yaml:"prefix"`
	NextHop string `yaml:"next_hop"`
}

// Scenario is a full topology + seed-event description.
type Scenario struct {
	Routers []RouterSpec `yaml:"routers"`
	Events  []EventSpec  `yaml:"events"`
}

// Load reads and parses a scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	return &sc, nil
}

// Build materializes the scenario into a simref.Network and a seed event
// list suitable for simref.NewSimulator.
func (sc *Scenario) Build() (*simref.Network, []tracer.Event, error) {
	routers := make([]simref.Router, len(sc.Routers))

	for i, rs := range sc.Routers {
		peers := make([]simref.Peer, len(rs.Peers))
		for j, p := range rs.Peers {
			peers[j] = simref.Peer{Neighbor: tracer.RouterID(p.Neighbor)}
		}

		routers[i] = simref.Router{ID: tracer.RouterID(rs.ID), Peers: peers}
	}

	net := simref.NewNetwork(routers)

	events := make([]tracer.Event, len(sc.Events))

	for i, es := range sc.Events {
		var payload tracer.Value

		switch es.Kind {
		case "update":
			payload = simref.UpdatePayload(es.Prefix, es.NextHop)
		case "withdraw":
			payload = simref.WithdrawPayload(es.Prefix)
		default:
			return nil, nil, fmt.Errorf("scenario: event %d: unknown kind %q", i, es.Kind)
		}

		events[i] = tracer.Event{
			Src:     tracer.RouterID(es.Src),
			Dst:     tracer.RouterID(es.Dst),
			Payload: payload,
		}
	}

	return net, events, nil
}
