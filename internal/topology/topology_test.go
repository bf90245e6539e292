package topology

import (
	"testing"

	"github.com/dronemesh/meshsim/internal/node"
)

func triangleConfig() Config {
	return Config{
		Drones: []DroneSpec{
			{ID: 1, PDR: 0, Neighbors: []node.ID{2, 3, 10, 20}},
			{ID: 2, PDR: 0, Neighbors: []node.ID{1, 3, 20}},
			{ID: 3, PDR: 0, Neighbors: []node.ID{1, 2}},
		},
		Clients: []HostSpec{
			{ID: 10, Neighbors: []node.ID{1}},
		},
		Servers: []HostSpec{
			{ID: 20, Neighbors: []node.ID{1, 2}},
		},
	}
}

func TestLoadTriangleTopology(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if got, want := len(tp.Nodes()), 5; got != want {
		t.Fatalf("len(Nodes()) = %d, want %d", got, want)
	}
	if got, want := tp.EdgeCount(), 6; got != want {
		t.Fatalf("EdgeCount() = %d, want %d", got, want)
	}

	tp.SetStrictMode(true)
	// Re-validate strict by forcing a no-op mutation through AddEdge/RemoveEdge
	// round trip, since Load itself already always validates strict.
	if err := tp.AddEdge(3, 20); err != nil {
		t.Fatalf("AddEdge(3,20) = %v, want nil (3's drone neighbors keep strict connectivity)", err)
	}
}

func TestLoadRejectsHostAdjacentToHost(t *testing.T) {
	cfg := Config{
		Drones: []DroneSpec{{ID: 1, Neighbors: []node.ID{10}}},
		Clients: []HostSpec{
			{ID: 10, Neighbors: []node.ID{1, 11}},
			{ID: 11, Neighbors: []node.ID{10}},
		},
	}
	tp := New()
	if err := tp.Load(cfg); err == nil {
		t.Fatal("Load() = nil, want error for client-client adjacency")
	}
}

func TestLoadRejectsDisconnectedGraph(t *testing.T) {
	cfg := Config{
		Drones: []DroneSpec{
			{ID: 1},
			{ID: 2},
		},
	}
	tp := New()
	if err := tp.Load(cfg); err == nil {
		t.Fatal("Load() = nil, want error for disconnected graph")
	}
}

func TestAddEdgeRejectsSelfLoopAndDuplicate(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if err := tp.AddEdge(1, 1); err == nil {
		t.Fatal("AddEdge(1,1) = nil, want self-loop error")
	}
	if err := tp.AddEdge(1, 2); err == nil {
		t.Fatal("AddEdge(1,2) = nil, want duplicate-edge error")
	}
}

func TestAddEdgeFailsLeaveGraphUnchanged(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	before := tp.EdgeCount()
	if err := tp.AddEdge(10, 20); err == nil {
		t.Fatal("AddEdge(10,20) = nil, want error: would make two hosts adjacent")
	}
	if got := tp.EdgeCount(); got != before {
		t.Fatalf("EdgeCount() after failed mutation = %d, want unchanged %d", got, before)
	}
}

func TestRemoveEdgeRequiresPresence(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if err := tp.RemoveEdge(1, 99); err == nil {
		t.Fatal("RemoveEdge(1,99) = nil, want error for absent edge")
	}
}

func TestAddDroneAllocatesSmallestFreeID(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	// Nodes currently {1,2,3,10,20}; len=5 so floor=4, smallest free >= 4 is 4.
	id, err := tp.AddDrone([]node.ID{1}, 0.1)
	if err != nil {
		t.Fatalf("AddDrone() = %v", err)
	}
	if id != 4 {
		t.Fatalf("AddDrone() id = %d, want 4", id)
	}
}

func TestSetPDRRejectsNonDrone(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if err := tp.SetPDR(10, 0.5); err == nil {
		t.Fatal("SetPDR(10, ...) = nil, want error: 10 is a client")
	}
	if err := tp.SetPDR(1, 1.5); err == nil {
		t.Fatal("SetPDR(1, 1.5) = nil, want error: out of range")
	}
	if err := tp.SetPDR(1, 0.75); err != nil {
		t.Fatalf("SetPDR(1, 0.75) = %v, want nil", err)
	}
	attrs, ok := tp.DroneAttrs(1)
	if !ok || attrs.PDR != 0.75 {
		t.Fatalf("DroneAttrs(1) = %+v, %v; want PDR=0.75", attrs, ok)
	}
}

func TestRemoveNodeRemovesIncidentEdges(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if err := tp.RemoveNode(3); err != nil {
		t.Fatalf("RemoveNode(3) = %v, want nil", err)
	}
	if _, ok := tp.Kind(3); ok {
		t.Fatal("Kind(3) ok = true after RemoveNode")
	}
	neighbors, _ := tp.Neighbors(1)
	for _, n := range neighbors {
		if n == 3 {
			t.Fatal("Neighbors(1) still lists removed node 3")
		}
	}
}

func TestSnapshotRoundTrips(t *testing.T) {
	tp := New()
	if err := tp.Load(triangleConfig()); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	cfg := tp.Snapshot()

	tp2 := New()
	if err := tp2.Load(cfg); err != nil {
		t.Fatalf("Load(Snapshot()) = %v, want nil", err)
	}
	if tp2.EdgeCount() != tp.EdgeCount() {
		t.Fatalf("round-tripped EdgeCount() = %d, want %d", tp2.EdgeCount(), tp.EdgeCount())
	}
}
