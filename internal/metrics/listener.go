package metrics

import (
	"context"
	"log"
	"time"

	"github.com/dronemesh/meshsim/internal/fabric"
	"github.com/dronemesh/meshsim/internal/node"
)

// pollInterval bounds how long the listener waits before re-checking
// every node's event queue when a pass finds nothing to drain.
const pollInterval = 10 * time.Millisecond

// NodeKindLookup answers "is id a drone or a host, and if a host is it
// gone" — the listener needs it to know which channel to poll and to
// resolve ControllerShortcut deliveries without locking the topology
// itself.
type NodeKindLookup func(id node.ID) (node.Kind, bool)

// EventListener drains every per-node event queue fairly and projects
// each event onto Metrics exactly once, run on its own goroutine for the
// lifetime of a running simulation.
type EventListener struct {
	fab     *fabric.Fabric
	metrics *Metrics
	log     *RecentEventLog
	kindOf  NodeKindLookup
}

// NewEventListener returns a listener bound to fab/metrics/log. kindOf
// resolves a node id to its NodeKind for shortcut delivery and metrics
// bucket selection.
func NewEventListener(fab *fabric.Fabric, m *Metrics, recentLog *RecentEventLog, kindOf NodeKindLookup) *EventListener {
	return &EventListener{fab: fab, metrics: m, log: recentLog, kindOf: kindOf}
}

// Run blocks until ctx is cancelled, draining events each pass in
// per-node fairness order and sleeping pollInterval between passes that
// found nothing.
func (l *EventListener) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for l.drainPass() {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// drainPass makes one fairness round across every node, processing at
// most one event per node's queue(s), and reports whether it processed
// anything (so the caller can immediately re-pass instead of waiting
// out the next tick).
func (l *EventListener) drainPass() bool {
	processedAny := false
	for _, id := range l.fab.NodeIDs() {
		kind, ok := l.kindOf(id)
		if !ok {
			continue
		}
		switch kind {
		case node.KindDrone:
			if events, ok := l.fab.DroneEvents(id); ok {
				select {
				case ev := <-events:
					l.handleDroneEvent(ev)
					processedAny = true
				default:
				}
			}
		case node.KindClient, node.KindServer:
			if events, ok := l.fab.HostEvents(id); ok {
				select {
				case ev := <-events:
					l.handleHostEvent(ev)
					processedAny = true
				default:
				}
			}
		}
	}
	return processedAny
}

func (l *EventListener) handleDroneEvent(ev node.DroneEvent) {
	l.metrics.mu.Lock()
	dm, ok := l.metrics.drones[ev.Source]
	if !ok {
		dm = newDroneMetrics()
		l.metrics.drones[ev.Source] = dm
	}

	switch ev.Kind {
	case node.EventPacketSent:
		label := ev.Packet.Payload.Label()
		dm.PacketsSentByType[label]++
		if label == node.LabelMsgFragment {
			dm.pushOutcome(true)
			if next, ok := ev.Packet.RoutingHeader.NextHop(); ok {
				l.metrics.bumpHeatmap(ev.Source, next)
			}
		}
		if label == node.LabelAck {
			// "At last hop": this forward delivers straight to the
			// ack's final destination. The ack's header is the
			// reverse of the original fragment's, so its Source() is
			// the host that acknowledged (the fragment's logical
			// destination) and its Destination() is the host that
			// will receive the ack (the fragment's original sender).
			if next, ok := ev.Packet.RoutingHeader.NextHop(); ok {
				if dest, ok := ev.Packet.RoutingHeader.Destination(); ok && next == dest {
					if acker, ok := ev.Packet.RoutingHeader.Source(); ok {
						if hm := l.metrics.hosts[acker]; hm != nil {
							hm.destStat(dest).Acked++
						}
					}
				}
			}
		}
		dm.TimeSeries = append(dm.TimeSeries, TimeSeriesPoint{Timestamp: time.Now(), Sent: 1})
	case node.EventPacketDropped:
		dm.Drops++
		dm.pushOutcome(false)
		dm.TimeSeries = append(dm.TimeSeries, TimeSeriesPoint{Timestamp: time.Now(), Secondary: 1})
	case node.EventControllerShortcut:
		dm.Shortcuts++
		l.deliverShortcut(ev.Packet)
	}
	l.metrics.mu.Unlock()

	l.log.Append(Record{NodeID: ev.Source, Kind: RecordDroneEvent, DroneEventKind: ev.Kind, Packet: ev.Packet})
}

func (l *EventListener) handleHostEvent(ev node.HostEvent) {
	l.metrics.mu.Lock()
	hm, ok := l.metrics.hosts[ev.Source]
	if !ok {
		hm = newHostMetrics()
		l.metrics.hosts[ev.Source] = hm
	}

	switch ev.Kind {
	case node.HostEventPacketSent:
		hm.PacketsSentByType[ev.Header.Label]++
		if dst, ok := ev.Header.RoutingHeader.Destination(); ok {
			hm.destStat(dst).Sent++
		}
		if next, ok := ev.Header.RoutingHeader.NextHop(); ok && ev.Header.Label == node.LabelMsgFragment {
			l.metrics.bumpHeatmap(ev.Source, next)
		}
	case node.HostEventMessageSent:
		hm.Latencies = append(hm.Latencies, time.Duration(ev.LatencyNanos))
		hm.TimeSeries = append(hm.TimeSeries, TimeSeriesPoint{Timestamp: time.Now(), Sent: 1})
	case node.HostEventControllerShortcut:
		hm.Shortcuts++
		l.deliverShortcut(ev.Packet)
	}
	l.metrics.mu.Unlock()

	l.log.Append(Record{NodeID: ev.Source, Kind: RecordHostEvent, HostEventKind: ev.Kind})
}

// deliverShortcut implements the ControllerShortcut reliability escape
// hatch: it asserts the payload is one of the non-droppable kinds and,
// if so, pushes the packet directly onto the destination's inbound
// queue. A malformed payload kind or a vanished destination is logged
// and discarded; no error surfaces to operators.
func (l *EventListener) deliverShortcut(pkt node.Packet) {
	switch pkt.Payload.Kind {
	case node.PayloadAck, node.PayloadNack, node.PayloadFloodResponse:
	default:
		log.Printf("metrics: controller shortcut with unexpected payload kind %v, discarding", pkt.Payload.Kind)
		return
	}
	dst, ok := pkt.RoutingHeader.Destination()
	if !ok {
		log.Printf("metrics: controller shortcut with empty route, discarding")
		return
	}
	inbound, ok := l.fab.Inbound(dst)
	if !ok {
		log.Printf("metrics: controller shortcut destination %d has no fabric entry, discarding", dst)
		return
	}
	select {
	case inbound <- pkt:
	default:
		log.Printf("metrics: controller shortcut destination %d inbound queue full, discarding", dst)
	}
}
