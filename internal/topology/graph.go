package topology

import (
	"sort"

	"github.com/dronemesh/meshsim/internal/node"
)

// graph is the bare adjacency representation, with no locking or
// validation of its own. Mutators on Topology always work against a
// cloned graph and only publish it once it passes validate().
type graph struct {
	nodes     map[node.ID]node.Kind
	drones    map[node.ID]node.DroneAttrs
	adjacency map[node.ID]map[node.ID]struct{}
}

func newGraph() *graph {
	return &graph{
		nodes:     make(map[node.ID]node.Kind),
		drones:    make(map[node.ID]node.DroneAttrs),
		adjacency: make(map[node.ID]map[node.ID]struct{}),
	}
}

// clone deep-copies g so a proposed mutation can be validated without
// touching the published graph.
func (g *graph) clone() *graph {
	out := newGraph()
	for id, kind := range g.nodes {
		out.nodes[id] = kind
	}
	for id, attrs := range g.drones {
		out.drones[id] = attrs
	}
	for id, neighbors := range g.adjacency {
		set := make(map[node.ID]struct{}, len(neighbors))
		for n := range neighbors {
			set[n] = struct{}{}
		}
		out.adjacency[id] = set
	}
	return out
}

func (g *graph) hasNode(id node.ID) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *graph) addNode(id node.ID, kind node.Kind) {
	g.nodes[id] = kind
	if g.adjacency[id] == nil {
		g.adjacency[id] = make(map[node.ID]struct{})
	}
}

func (g *graph) addEdge(a, b node.ID) {
	if g.adjacency[a] == nil {
		g.adjacency[a] = make(map[node.ID]struct{})
	}
	if g.adjacency[b] == nil {
		g.adjacency[b] = make(map[node.ID]struct{})
	}
	g.adjacency[a][b] = struct{}{}
	g.adjacency[b][a] = struct{}{}
}

func (g *graph) removeEdge(a, b node.ID) {
	delete(g.adjacency[a], b)
	delete(g.adjacency[b], a)
}

func (g *graph) removeNode(id node.ID) {
	for n := range g.adjacency[id] {
		delete(g.adjacency[n], id)
	}
	delete(g.adjacency, id)
	delete(g.nodes, id)
	delete(g.drones, id)
}

// nextID returns the smallest id k such that k >= len(nodes)-1 and k is
// not already in use, per the deterministic next-id policy.
func (g *graph) nextID() node.ID {
	floor := 0
	if n := len(g.nodes); n > 0 {
		floor = n - 1
	}
	for k := floor; k < 256; k++ {
		id := node.ID(k)
		if !g.hasNode(id) {
			return id
		}
	}
	// Exhausted the id space; callers are expected to bound population
	// well below 256 nodes.
	return node.ID(floor)
}

// sortedIDs returns every node id in ascending order, for deterministic
// iteration (BFS start node, snapshot ordering).
func (g *graph) sortedIDs() []node.ID {
	ids := make([]node.ID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
