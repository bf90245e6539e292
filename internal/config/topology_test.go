package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dronemesh/meshsim/internal/node"
	"github.com/dronemesh/meshsim/internal/topology"
)

func TestWriteThenLoadTopologyFileRoundTrips(t *testing.T) {
	cfg := topology.Config{
		Drones: []topology.DroneSpec{
			{ID: 1, PDR: 0.5, Group: "alpha", Neighbors: []node.ID{2, 10}},
			{ID: 2, PDR: 0, Neighbors: []node.ID{1}},
		},
		Clients: []topology.HostSpec{{ID: 10, Neighbors: []node.ID{1}}},
	}

	path := filepath.Join(t.TempDir(), "topology.toml")
	if err := WriteTopologyFile(path, cfg); err != nil {
		t.Fatalf("WriteTopologyFile: %v", err)
	}

	loaded, err := LoadTopologyFile(path)
	if err != nil {
		t.Fatalf("LoadTopologyFile: %v", err)
	}
	if len(loaded.Drones) != 2 || len(loaded.Clients) != 1 {
		t.Fatalf("unexpected round-tripped config: %+v", loaded)
	}
	if loaded.Drones[0].PDR != 0.5 || loaded.Drones[0].Group != "alpha" {
		t.Errorf("drone 0 fields did not round-trip: %+v", loaded.Drones[0])
	}
}

func TestLoadTopologyFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.toml")
	content := []byte("[[drone]]\nid = 1\nconnected_node_ids = []\npdr = 0.0\nbogus_key = true\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	if _, err := LoadTopologyFile(path); err == nil {
		t.Fatal("expected an error for an unknown key")
	}
}
