package topology

import (
	"sort"
	"sync"

	"github.com/dronemesh/meshsim/internal/node"
)

// DroneSpec describes one drone entry in a load Config.
type DroneSpec struct {
	ID        node.ID
	PDR       node.Ratio
	Group     string
	Neighbors []node.ID
}

// HostSpec describes one client or server entry in a load Config.
type HostSpec struct {
	ID        node.ID
	Neighbors []node.ID
}

// Config is the declarative, three-list description of a graph that
// load builds adjacency from (the union of every neighbor pair).
type Config struct {
	Drones  []DroneSpec
	Clients []HostSpec
	Servers []HostSpec
}

// Topology is the concurrency-safe, validate-then-commit view over the
// graph. Every mutator builds a clone, validates it, and only swaps it
// in on success; a failed mutation leaves the published graph untouched.
type Topology struct {
	mu     sync.RWMutex
	g      *graph
	strict bool
}

// New returns an empty, non-strict topology.
func New() *Topology {
	return &Topology{g: newGraph()}
}

// SetStrictMode toggles whether subsequent mutations require invariant 9
// (drone-only connectivity) in addition to invariants 1-8.
func (t *Topology) SetStrictMode(strict bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strict = strict
}

// StrictMode reports the current strict-mode setting.
func (t *Topology) StrictMode() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strict
}

// Load replaces the entire graph from cfg, always validated strict
// regardless of the topology's current strict-mode setting (loading a
// config is the one operation spec semantics always hold to the full
// invariant set).
func (t *Topology) Load(cfg Config) error {
	g := newGraph()

	for _, d := range cfg.Drones {
		if err := d.PDR.Validate(); err != nil {
			return invalid("load", "drone %d: %v", d.ID, err)
		}
		g.addNode(d.ID, node.KindDrone)
		g.drones[d.ID] = node.DroneAttrs{PDR: d.PDR, Group: d.Group}
	}
	for _, c := range cfg.Clients {
		g.addNode(c.ID, node.KindClient)
	}
	for _, s := range cfg.Servers {
		g.addNode(s.ID, node.KindServer)
	}

	addAll := func(id node.ID, neighbors []node.ID) error {
		for _, n := range neighbors {
			if !g.hasNode(n) {
				return invalid("load", "node %d references unknown neighbor %d", id, n)
			}
			if n == id {
				return invalid("no-self-loop", "node %d lists itself as a neighbor", id)
			}
			g.addEdge(id, n)
		}
		return nil
	}
	for _, d := range cfg.Drones {
		if err := addAll(d.ID, d.Neighbors); err != nil {
			return err
		}
	}
	for _, c := range cfg.Clients {
		if err := addAll(c.ID, c.Neighbors); err != nil {
			return err
		}
	}
	for _, s := range cfg.Servers {
		if err := addAll(s.ID, s.Neighbors); err != nil {
			return err
		}
	}

	if err := g.validate(true); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.g = g
	return nil
}

// AddEdge requires both nodes exist, a != b, and the edge is absent; it
// inserts both directions and re-validates.
func (t *Topology) AddEdge(a, b node.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a == b {
		return invalid("no-self-loop", "cannot add edge from %d to itself", a)
	}
	if !t.g.hasNode(a) {
		return invalid("unknown-node", "node %d does not exist", a)
	}
	if !t.g.hasNode(b) {
		return invalid("unknown-node", "node %d does not exist", b)
	}
	if _, exists := t.g.adjacency[a][b]; exists {
		return invalid("duplicate-edge", "edge %d-%d already exists", a, b)
	}

	proposed := t.g.clone()
	proposed.addEdge(a, b)
	if err := proposed.validate(t.strict); err != nil {
		return err
	}
	t.g = proposed
	return nil
}

// RemoveEdge requires the edge is present; it removes both directions
// and re-validates.
func (t *Topology) RemoveEdge(a, b node.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.g.adjacency[a][b]; !exists {
		return invalid("unknown-edge", "edge %d-%d does not exist", a, b)
	}

	proposed := t.g.clone()
	proposed.removeEdge(a, b)
	if err := proposed.validate(t.strict); err != nil {
		return err
	}
	t.g = proposed
	return nil
}

// AddDrone allocates the smallest unused id not below the current node
// count minus one, inserts the node and its edges, and re-validates. It
// returns the assigned id.
func (t *Topology) AddDrone(neighbors []node.ID, pdr node.Ratio) (node.ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := pdr.Validate(); err != nil {
		return 0, invalid("add-drone", "%v", err)
	}
	for _, n := range neighbors {
		if !t.g.hasNode(n) {
			return 0, invalid("unknown-node", "neighbor %d does not exist", n)
		}
	}

	proposed := t.g.clone()
	id := proposed.nextID()
	proposed.addNode(id, node.KindDrone)
	proposed.drones[id] = node.DroneAttrs{PDR: pdr}
	for _, n := range neighbors {
		proposed.addEdge(id, n)
	}
	if err := proposed.validate(t.strict); err != nil {
		return 0, err
	}
	t.g = proposed
	return id, nil
}

// RemoveNode removes id and all incident edges, then re-validates. Used
// both for crash handling and config trim.
func (t *Topology) RemoveNode(id node.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.g.hasNode(id) {
		return invalid("unknown-node", "node %d does not exist", id)
	}

	proposed := t.g.clone()
	proposed.removeNode(id)
	if err := proposed.validate(t.strict); err != nil {
		return err
	}
	t.g = proposed
	return nil
}

// SetPDR requires id to be a drone and pdr to be in [0,1].
func (t *Topology) SetPDR(id node.ID, pdr node.Ratio) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := pdr.Validate(); err != nil {
		return invalid("set-pdr", "%v", err)
	}
	kind, ok := t.g.nodes[id]
	if !ok {
		return invalid("unknown-node", "node %d does not exist", id)
	}
	if kind != node.KindDrone {
		return invalid("not-a-drone", "node %d is a %s, not a drone", id, kind)
	}
	attrs := t.g.drones[id]
	attrs.PDR = pdr
	t.g.drones[id] = attrs
	return nil
}

// Neighbors returns the sorted neighbor ids of id.
func (t *Topology) Neighbors(id node.ID) ([]node.ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.g.hasNode(id) {
		return nil, false
	}
	out := make([]node.ID, 0, len(t.g.adjacency[id]))
	for n := range t.g.adjacency[id] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true
}

// Kind returns id's NodeKind.
func (t *Topology) Kind(id node.ID) (node.Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	k, ok := t.g.nodes[id]
	return k, ok
}

// DroneAttrs returns id's drone-specific attributes, if id is a drone.
func (t *Topology) DroneAttrs(id node.ID) (node.DroneAttrs, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.g.nodes[id] != node.KindDrone {
		return node.DroneAttrs{}, false
	}
	attrs, ok := t.g.drones[id]
	return attrs, ok
}

// Nodes returns every node id in ascending order.
func (t *Topology) Nodes() []node.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.g.sortedIDs()
}

// EdgeCount returns the number of undirected edges currently present.
func (t *Topology) EdgeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, neighbors := range t.g.adjacency {
		total += len(neighbors)
	}
	return total / 2
}

// Snapshot returns a deep copy of the current Config, suitable for
// persistence (history snapshots) or re-validation elsewhere.
func (t *Topology) Snapshot() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var cfg Config
	for _, id := range t.g.sortedIDs() {
		neighbors := make([]node.ID, 0, len(t.g.adjacency[id]))
		for n := range t.g.adjacency[id] {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		switch t.g.nodes[id] {
		case node.KindDrone:
			attrs := t.g.drones[id]
			cfg.Drones = append(cfg.Drones, DroneSpec{ID: id, PDR: attrs.PDR, Group: attrs.Group, Neighbors: neighbors})
		case node.KindClient:
			cfg.Clients = append(cfg.Clients, HostSpec{ID: id, Neighbors: neighbors})
		case node.KindServer:
			cfg.Servers = append(cfg.Servers, HostSpec{ID: id, Neighbors: neighbors})
		}
	}
	return cfg
}
