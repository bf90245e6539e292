package topology

import "github.com/dronemesh/meshsim/internal/node"

// validate runs the single validation pass described for the topology:
// symmetry/no-self-loop/no-duplicate scan, per-kind degree classification,
// a connectivity BFS over the whole graph, and (in strict mode) a second
// BFS restricted to drone-drone edges that must cover every drone.
// Complexity is O(V+E). It never mutates g.
func (g *graph) validate(strict bool) error {
	for a, neighbors := range g.adjacency {
		if !g.hasNode(a) {
			return invalid("adjacency-domain", "node %d has adjacency entries but is not in nodes", a)
		}
		seen := make(map[node.ID]struct{}, len(neighbors))
		for b := range neighbors {
			if b == a {
				return invalid("no-self-loop", "node %d is adjacent to itself", a)
			}
			if !g.hasNode(b) {
				return invalid("adjacency-domain", "node %d lists neighbor %d which does not exist", a, b)
			}
			if _, dup := seen[b]; dup {
				return invalid("no-duplicate-neighbor", "node %d lists neighbor %d more than once", a, b)
			}
			seen[b] = struct{}{}
			back, ok := g.adjacency[b]
			if !ok {
				return invalid("bidirectional", "edge %d-%d is not mirrored from %d", a, b, b)
			}
			if _, ok := back[a]; !ok {
				return invalid("bidirectional", "edge %d-%d is not mirrored from %d", a, b, b)
			}
		}
	}

	for id, kind := range g.nodes {
		degree := len(g.adjacency[id])
		switch kind {
		case node.KindClient:
			if degree < 1 || degree > 2 {
				return invalid("client-degree", "client %d has degree %d, want 1 or 2", id, degree)
			}
			if err := g.requireAllNeighborsDrone(id); err != nil {
				return err
			}
		case node.KindServer:
			if degree < 2 {
				return invalid("server-degree", "server %d has degree %d, want >= 2", id, degree)
			}
			if err := g.requireAllNeighborsDrone(id); err != nil {
				return err
			}
		case node.KindDrone:
			// No degree constraint beyond overall connectivity.
		default:
			return invalid("node-kind", "node %d has invalid kind", id)
		}
	}

	if len(g.nodes) == 0 {
		return nil
	}

	start := g.sortedIDs()[0]
	visited := g.bfs(start, nil)
	if len(visited) != len(g.nodes) {
		return invalid("connectivity", "graph has %d unreachable node(s) from %d", len(g.nodes)-len(visited), start)
	}

	if strict {
		var droneStart node.ID
		found := false
		for _, id := range g.sortedIDs() {
			if g.nodes[id] == node.KindDrone {
				droneStart = id
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		onlyDrones := func(n node.ID) bool { return g.nodes[n] == node.KindDrone }
		visitedDrones := g.bfs(droneStart, onlyDrones)
		for id, kind := range g.nodes {
			if kind != node.KindDrone {
				continue
			}
			if _, ok := visitedDrones[id]; !ok {
				return invalid("strict-drone-connectivity", "drone %d is unreachable from %d via drone-only edges", id, droneStart)
			}
		}
	}

	return nil
}

// requireAllNeighborsDrone enforces invariants 5-7: a host's neighbors
// must all be drones (hosts are never directly adjacent to another host).
func (g *graph) requireAllNeighborsDrone(id node.ID) error {
	for n := range g.adjacency[id] {
		if g.nodes[n] != node.KindDrone {
			return invalid("host-adjacency", "host %d is adjacent to non-drone %d", id, n)
		}
	}
	return nil
}

// bfs walks g from start, optionally restricted to nodes for which
// filter returns true (filter == nil means unrestricted), and returns
// the set of visited node ids.
func (g *graph) bfs(start node.ID, filter func(node.ID) bool) map[node.ID]struct{} {
	visited := map[node.ID]struct{}{start: {}}
	queue := []node.ID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for n := range g.adjacency[cur] {
			if filter != nil && !filter(n) {
				continue
			}
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return visited
}
