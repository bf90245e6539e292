package metrics

import "github.com/dronemesh/meshsim/internal/node"

// HeatmapEntry is one (src,dst) -> count projection.
type HeatmapEntry struct {
	Src, Dst node.ID
	Count    uint64
}

// NetworkOverview is the computed-on-demand summary of the whole
// simulation's traffic.
type NetworkOverview struct {
	TotalMessages uint64
	TotalPackets  uint64
	ByType        map[node.PacketTypeLabel]uint64
	Heatmap       []HeatmapEntry
}

// NetworkOverview computes the current network-wide summary.
func (m *Metrics) NetworkOverview() NetworkOverview {
	m.mu.RLock()
	defer m.mu.RUnlock()

	overview := NetworkOverview{ByType: make(map[node.PacketTypeLabel]uint64)}
	for _, dm := range m.drones {
		for label, count := range dm.PacketsSentByType {
			overview.ByType[label] += count
			overview.TotalPackets += count
		}
	}
	for _, hm := range m.hosts {
		for label, count := range hm.PacketsSentByType {
			overview.ByType[label] += count
			overview.TotalPackets += count
		}
		overview.TotalMessages += uint64(len(hm.Latencies))
	}
	for key, count := range m.heatmap {
		overview.Heatmap = append(overview.Heatmap, HeatmapEntry{Src: key.Src, Dst: key.Dst, Count: count})
	}
	return overview
}

// DroneInfo is the read-projected view of one drone's metrics.
type DroneInfo struct {
	ID                node.ID
	Drops             uint64
	PacketsSentByType map[node.PacketTypeLabel]uint64
	CurrentPDR        float64
	Shortcuts         uint64
}

// HostInfo is the read-projected view of one host's metrics.
type HostInfo struct {
	ID                node.ID
	DestStats         map[node.ID]DestStat
	PacketsSentByType map[node.PacketTypeLabel]uint64
	Shortcuts         uint64
	PacketsSent       uint64
	PacketsAcked      uint64
}

// NodeInfo returns a drone's metrics view, a host's metrics view, or
// (nil, nil, false) if id has no registered metrics entry.
func (m *Metrics) NodeInfo(id node.ID) (*DroneInfo, *HostInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if dm, ok := m.drones[id]; ok {
		byType := make(map[node.PacketTypeLabel]uint64, len(dm.PacketsSentByType))
		for k, v := range dm.PacketsSentByType {
			byType[k] = v
		}
		return &DroneInfo{
			ID:                id,
			Drops:             dm.Drops,
			PacketsSentByType: byType,
			CurrentPDR:        dm.CurrentPDR(),
			Shortcuts:         dm.Shortcuts,
		}, nil, true
	}
	if hm, ok := m.hosts[id]; ok {
		destStats := make(map[node.ID]DestStat, len(hm.DestStats))
		var sent, acked uint64
		for dst, stat := range hm.DestStats {
			destStats[dst] = *stat
			sent += stat.Sent
			acked += stat.Acked
		}
		byType := make(map[node.PacketTypeLabel]uint64, len(hm.PacketsSentByType))
		for k, v := range hm.PacketsSentByType {
			byType[k] = v
		}
		return nil, &HostInfo{
			ID:                id,
			DestStats:         destStats,
			PacketsSentByType: byType,
			Shortcuts:         hm.Shortcuts,
			PacketsSent:       sent,
			PacketsAcked:      acked,
		}, true
	}
	return nil, nil, false
}
