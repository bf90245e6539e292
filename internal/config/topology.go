package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/dronemesh/meshsim/internal/node"
	"github.com/dronemesh/meshsim/internal/topology"
)

// droneFile/clientFile/serverFile mirror the three declarative sections
// of the topology file format. Field names are the TOML keys; unknown
// keys are rejected at decode time.
type droneFile struct {
	ID               uint8   `toml:"id"`
	ConnectedNodeIDs []uint8 `toml:"connected_node_ids"`
	PDR              float64 `toml:"pdr"`
	Group            string  `toml:"group"`
}

type hostFile struct {
	ID                uint8   `toml:"id"`
	ConnectedDroneIDs []uint8 `toml:"connected_drone_ids"`
}

type topologyFile struct {
	Drone  []droneFile `toml:"drone"`
	Client []hostFile  `toml:"client"`
	Server []hostFile  `toml:"server"`
}

// LoadTopologyFile reads and decodes a declarative topology file at
// path, rejecting unknown keys, and converts it to a topology.Config
// ready for Topology.Load.
func LoadTopologyFile(path string) (topology.Config, error) {
	var raw topologyFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return topology.Config{}, fmt.Errorf("config: read topology file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return topology.Config{}, fmt.Errorf("config: topology file has unknown keys: %v", undecoded)
	}
	return convertTopologyFile(raw), nil
}

func convertTopologyFile(raw topologyFile) topology.Config {
	cfg := topology.Config{
		Drones:  make([]topology.DroneSpec, 0, len(raw.Drone)),
		Clients: make([]topology.HostSpec, 0, len(raw.Client)),
		Servers: make([]topology.HostSpec, 0, len(raw.Server)),
	}
	for _, d := range raw.Drone {
		cfg.Drones = append(cfg.Drones, topology.DroneSpec{
			ID:        node.ID(d.ID),
			PDR:       node.Ratio(d.PDR),
			Group:     d.Group,
			Neighbors: toNodeIDs(d.ConnectedNodeIDs),
		})
	}
	for _, c := range raw.Client {
		cfg.Clients = append(cfg.Clients, topology.HostSpec{ID: node.ID(c.ID), Neighbors: toNodeIDs(c.ConnectedDroneIDs)})
	}
	for _, s := range raw.Server {
		cfg.Servers = append(cfg.Servers, topology.HostSpec{ID: node.ID(s.ID), Neighbors: toNodeIDs(s.ConnectedDroneIDs)})
	}
	return cfg
}

func toNodeIDs(raw []uint8) []node.ID {
	out := make([]node.ID, len(raw))
	for i, v := range raw {
		out[i] = node.ID(v)
	}
	return out
}

// WriteTopologyFile serializes cfg back to the declarative file format
// and writes it to path, used by the history store on every successful
// start().
func WriteTopologyFile(path string, cfg topology.Config) error {
	var raw topologyFile
	for _, d := range cfg.Drones {
		raw.Drone = append(raw.Drone, droneFile{
			ID:               uint8(d.ID),
			ConnectedNodeIDs: fromNodeIDs(d.Neighbors),
			PDR:              float64(d.PDR),
			Group:            d.Group,
		})
	}
	for _, c := range cfg.Clients {
		raw.Client = append(raw.Client, hostFile{ID: uint8(c.ID), ConnectedDroneIDs: fromNodeIDs(c.Neighbors)})
	}
	for _, s := range cfg.Servers {
		raw.Server = append(raw.Server, hostFile{ID: uint8(s.ID), ConnectedDroneIDs: fromNodeIDs(s.Neighbors)})
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("config: encode topology file: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: write topology file: %w", err)
	}
	return nil
}

func fromNodeIDs(ids []node.ID) []uint8 {
	out := make([]uint8, len(ids))
	for i, id := range ids {
		out[i] = uint8(id)
	}
	return out
}
