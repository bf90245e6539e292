package controller

import (
	"github.com/dronemesh/meshsim/internal/buildinfo"
	"github.com/dronemesh/meshsim/internal/metrics"
	"github.com/dronemesh/meshsim/internal/node"
	"github.com/dronemesh/meshsim/internal/topology"
)

// GraphSnapshot is the read-only projection of the current topology's
// shape, the {nodes, edges} view operators inspect after a mutation.
type GraphSnapshot struct {
	NodeCount int
	EdgeCount int
	Config    topology.Config
}

// GraphSnapshot returns the current topology's shape and full config.
func (c *Controller) GraphSnapshot() GraphSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg := c.topo.Snapshot()
	return GraphSnapshot{
		NodeCount: len(c.topo.Nodes()),
		EdgeCount: c.topo.EdgeCount(),
		Config:    cfg,
	}
}

// Status reports the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// NetworkOverview computes the current network-wide traffic summary.
// Returns zero-value overview if the simulation has never run.
func (c *Controller) NetworkOverview() metrics.NetworkOverview {
	c.mu.Lock()
	met := c.met
	c.mu.Unlock()
	if met == nil {
		return metrics.NetworkOverview{ByType: make(map[node.PacketTypeLabel]uint64)}
	}
	return met.NetworkOverview()
}

// NodeInfo returns id's drone or host metrics view, or ok=false if id
// has no registered metrics entry (never started, or crashed).
func (c *Controller) NodeInfo(id node.ID) (*metrics.DroneInfo, *metrics.HostInfo, bool) {
	c.mu.Lock()
	met := c.met
	c.mu.Unlock()
	if met == nil {
		return nil, nil, false
	}
	return met.NodeInfo(id)
}

// BuildInfo reports the ldflags-injected version identity of the
// running binary, for a startup log line or a diagnostics endpoint.
// It does not depend on controller state and needs no lock.
func (c *Controller) BuildInfo() (version, gitCommit, buildTime string) {
	return buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime
}

// NewMessages returns the tail of the recorded event log after lastID,
// capped at max entries.
func (c *Controller) NewMessages(lastID uint64, max int) []metrics.Record {
	c.mu.Lock()
	log := c.eventLog
	c.mu.Unlock()
	if log == nil {
		return nil
	}
	return log.Tail(lastID, max)
}
