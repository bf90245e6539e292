package metrics

import (
	"testing"
	"time"

	"github.com/dronemesh/meshsim/internal/fabric"
	"github.com/dronemesh/meshsim/internal/node"
)

func testListener(fab *fabric.Fabric, m *Metrics) *EventListener {
	kindOf := func(id node.ID) (node.Kind, bool) {
		switch id {
		case 1, 2:
			return node.KindDrone, true
		case 10:
			return node.KindClient, true
		case 20:
			return node.KindServer, true
		default:
			return node.KindInvalid, false
		}
	}
	return NewEventListener(fab, m, NewRecentEventLog(100), kindOf)
}

func TestPacketSentFragmentBumpsHeatmapAndPDR(t *testing.T) {
	m := New()
	m.RegisterDrone(1)
	l := testListener(fabric.New(), m)

	l.handleDroneEvent(node.DroneEvent{
		Kind:   node.EventPacketSent,
		Source: 1,
		Packet: node.Packet{
			RoutingHeader: node.RoutingHeader{Hops: []node.ID{1, 2}, HopIndex: 0},
			Payload:       node.Payload{Kind: node.PayloadMsgFragment},
		},
	})

	dm, _, ok := m.NodeInfo(1)
	if !ok {
		t.Fatal("expected node info for drone 1")
	}
	if dm.PacketsSentByType[node.LabelMsgFragment] != 1 {
		t.Errorf("expected one fragment sent, got %d", dm.PacketsSentByType[node.LabelMsgFragment])
	}
	if dm.CurrentPDR != 0 {
		t.Errorf("expected PDR 0 after a single successful forward, got %v", dm.CurrentPDR)
	}

	overview := m.NetworkOverview()
	if len(overview.Heatmap) != 1 || overview.Heatmap[0].Src != 1 || overview.Heatmap[0].Dst != 2 {
		t.Errorf("expected heatmap entry (1,2)=1, got %+v", overview.Heatmap)
	}
}

func TestPacketDroppedIncrementsDropsAndPushesFailure(t *testing.T) {
	m := New()
	m.RegisterDrone(1)
	l := testListener(fabric.New(), m)

	l.handleDroneEvent(node.DroneEvent{Kind: node.EventPacketDropped, Source: 1, Packet: node.Packet{Payload: node.Payload{Kind: node.PayloadMsgFragment}}})

	dm, _, _ := m.NodeInfo(1)
	if dm.Drops != 1 {
		t.Errorf("expected 1 drop, got %d", dm.Drops)
	}
	if dm.CurrentPDR != 1.0 {
		t.Errorf("expected PDR 1.0 after a single drop, got %v", dm.CurrentPDR)
	}
}

// TestAckAtLastHopBumpsAckingHostDestStat exercises the "last hop"
// accounting: an ack's header is the reverse of the original fragment's,
// so its Source() is the host that acknowledged and its Destination() is
// the host that will receive the ack.
func TestAckAtLastHopBumpsAckingHostDestStat(t *testing.T) {
	m := New()
	m.RegisterHost(20)
	m.RegisterHost(10)
	l := testListener(fabric.New(), m)

	l.handleDroneEvent(node.DroneEvent{
		Kind:   node.EventPacketSent,
		Source: 1,
		Packet: node.Packet{
			RoutingHeader: node.RoutingHeader{Hops: []node.ID{20, 1, 10}, HopIndex: 1},
			Payload:       node.Payload{Kind: node.PayloadAck},
		},
	})

	_, hm, ok := m.NodeInfo(20)
	if !ok {
		t.Fatal("expected node info for host 20")
	}
	if hm.DestStats[10].Acked != 1 {
		t.Errorf("expected host 20's dest-stat for 10 to record one ack, got %+v", hm.DestStats[10])
	}
}

func TestHostEventPacketSentBumpsDestStatAndHeatmapForFragments(t *testing.T) {
	m := New()
	m.RegisterHost(10)
	l := testListener(fabric.New(), m)

	l.handleHostEvent(node.HostEvent{
		Kind:   node.HostEventPacketSent,
		Source: 10,
		Header: node.PacketHeader{RoutingHeader: node.RoutingHeader{Hops: []node.ID{10, 1}, HopIndex: 0}, Label: node.LabelMsgFragment},
	})

	_, hm, ok := m.NodeInfo(10)
	if !ok {
		t.Fatal("expected node info for host 10")
	}
	if hm.DestStats[1].Sent != 1 {
		t.Errorf("expected dest-stat for 1 to record one send, got %+v", hm.DestStats[1])
	}
	overview := m.NetworkOverview()
	if len(overview.Heatmap) != 1 || overview.Heatmap[0].Src != 10 || overview.Heatmap[0].Dst != 1 {
		t.Errorf("expected heatmap entry (10,1)=1, got %+v", overview.Heatmap)
	}
}

func TestControllerShortcutDeliversToDestinationInbound(t *testing.T) {
	fab := fabric.New()
	fab.CreateNode(5)
	m := New()
	l := testListener(fab, m)

	l.deliverShortcut(node.Packet{
		RoutingHeader: node.RoutingHeader{Hops: []node.ID{9, 5}, HopIndex: 1},
		Payload:       node.Payload{Kind: node.PayloadAck},
	})

	inbound, _ := fab.Inbound(5)
	select {
	case pkt := <-inbound:
		if pkt.Payload.Kind != node.PayloadAck {
			t.Errorf("expected delivered packet to retain its Ack payload")
		}
	case <-time.After(time.Second):
		t.Fatal("expected the shortcut packet to land in node 5's inbound queue")
	}
}

func TestControllerShortcutDiscardsMalformedPayload(t *testing.T) {
	fab := fabric.New()
	fab.CreateNode(5)
	m := New()
	l := testListener(fab, m)

	l.deliverShortcut(node.Packet{
		RoutingHeader: node.RoutingHeader{Hops: []node.ID{9, 5}, HopIndex: 1},
		Payload:       node.Payload{Kind: node.PayloadMsgFragment},
	})

	inbound, _ := fab.Inbound(5)
	select {
	case <-inbound:
		t.Fatal("a fragment payload must never be delivered through the controller shortcut")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecentEventLogTailReturnsGaplessWindowAfterEviction(t *testing.T) {
	log := NewRecentEventLog(3)
	for i := 0; i < 5; i++ {
		log.Append(Record{NodeID: node.ID(i)})
	}

	recs := log.Tail(0, 10)
	if len(recs) != 3 {
		t.Fatalf("expected 3 surviving records after eviction, got %d", len(recs))
	}
	if recs[0].NodeID != 2 || recs[2].NodeID != 4 {
		t.Errorf("expected surviving ids to be the last 3 appended, got %+v", recs)
	}
}
