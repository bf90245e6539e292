// Package metrics bundles per-node drone/host metrics and the global
// heatmap, and the event listener task that projects node events onto
// them. All aggregation is read on demand through the read-projection
// helpers in read.go.
package metrics

import (
	"sync"
	"time"

	"github.com/dronemesh/meshsim/internal/node"
)

// rollingWindowSize is the fixed length N of a drone's PDR rolling
// window.
const rollingWindowSize = 100

// TimeSeriesPoint is one sample appended to a metrics time series.
type TimeSeriesPoint struct {
	Timestamp time.Time
	Sent      uint64
	Secondary uint64 // Dropped for drones, Acked for hosts
}

// DroneMetrics accumulates one drone's counters.
type DroneMetrics struct {
	Drops             uint64
	PacketsSentByType map[node.PacketTypeLabel]uint64
	Shortcuts         uint64
	TimeSeries        []TimeSeriesPoint

	window    [rollingWindowSize]bool
	windowLen int
	windowPos int
	windowOK  int // count of true entries currently in the window
}

func newDroneMetrics() *DroneMetrics {
	return &DroneMetrics{PacketsSentByType: make(map[node.PacketTypeLabel]uint64)}
}

// pushOutcome records one fragment-forward outcome (true = forwarded
// successfully, false = dropped) into the rolling window.
func (d *DroneMetrics) pushOutcome(ok bool) {
	if d.windowLen == rollingWindowSize {
		if d.window[d.windowPos] {
			d.windowOK--
		}
	} else {
		d.windowLen++
	}
	d.window[d.windowPos] = ok
	if ok {
		d.windowOK++
	}
	d.windowPos = (d.windowPos + 1) % rollingWindowSize
}

// CurrentPDR is the proportion of false entries in the rolling window,
// 0 when the window is empty.
func (d *DroneMetrics) CurrentPDR() float64 {
	if d.windowLen == 0 {
		return 0
	}
	failures := d.windowLen - d.windowOK
	return float64(failures) / float64(d.windowLen)
}

// DestStat is a per-destination (sent, acked) pair tracked by a host.
type DestStat struct {
	Sent  uint64
	Acked uint64
}

// HostMetrics accumulates one host's counters.
type HostMetrics struct {
	DestStats         map[node.ID]*DestStat
	Shortcuts         uint64
	PacketsSentByType map[node.PacketTypeLabel]uint64
	Latencies         []time.Duration
	TimeSeries        []TimeSeriesPoint
}

func newHostMetrics() *HostMetrics {
	return &HostMetrics{
		DestStats:         make(map[node.ID]*DestStat),
		PacketsSentByType: make(map[node.PacketTypeLabel]uint64),
	}
}

func (h *HostMetrics) destStat(id node.ID) *DestStat {
	s, ok := h.DestStats[id]
	if !ok {
		s = &DestStat{}
		h.DestStats[id] = s
	}
	return s
}

// edgeKey is an ordered (src, dst) heatmap key.
type edgeKey struct {
	Src, Dst node.ID
}

// Metrics is the mutex-guarded bundle of every node's metrics plus the
// global heatmap. One global mutex guards it, matching the simulation's
// single coarse shared-state discipline.
type Metrics struct {
	mu      sync.RWMutex
	drones  map[node.ID]*DroneMetrics
	hosts   map[node.ID]*HostMetrics
	heatmap map[edgeKey]uint64
}

// New returns an empty Metrics bundle.
func New() *Metrics {
	return &Metrics{
		drones:  make(map[node.ID]*DroneMetrics),
		hosts:   make(map[node.ID]*HostMetrics),
		heatmap: make(map[edgeKey]uint64),
	}
}

// Reset clears every counter, used when a fresh simulation starts.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drones = make(map[node.ID]*DroneMetrics)
	m.hosts = make(map[node.ID]*HostMetrics)
	m.heatmap = make(map[edgeKey]uint64)
}

// RegisterDrone ensures id has a metrics entry, used when the node is
// spawned so node_info never returns None for a live node.
func (m *Metrics) RegisterDrone(id node.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drones[id]; !ok {
		m.drones[id] = newDroneMetrics()
	}
}

// RegisterHost ensures id has a host metrics entry.
func (m *Metrics) RegisterHost(id node.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hosts[id]; !ok {
		m.hosts[id] = newHostMetrics()
	}
}

// Forget drops id's metrics entirely, e.g. after crash_drone.
func (m *Metrics) Forget(id node.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drones, id)
	delete(m.hosts, id)
}

func (m *Metrics) bumpHeatmap(src, dst node.ID) {
	m.heatmap[edgeKey{Src: src, Dst: dst}]++
}
