package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/dronemesh/meshsim/internal/fabric"
	"github.com/dronemesh/meshsim/internal/node"
)

func newTestHost(t *testing.T, fab *fabric.Fabric, id node.ID, kind node.Kind) chan node.HostEvent {
	t.Helper()
	fab.CreateNode(id)
	events, _ := fab.HostEvents(id)
	ctx, cancel := context.WithCancel(context.Background())
	cfg := HostConfig{ID: id, Kind: kind, Fabric: fab, Events: events}
	var h Runnable
	if kind == node.KindServer {
		h = NewServer(cfg)
	} else {
		h = NewClient(cfg)
	}
	go h.Run(ctx)
	t.Cleanup(cancel)
	return events
}

func addHostSender(t *testing.T, fab *fabric.Fabric, holder, target node.ID) {
	t.Helper()
	ep, ok := fab.Endpoint(target)
	if !ok {
		t.Fatalf("no fabric entry for target %d", target)
	}
	cmds, _ := fab.HostCommands(holder)
	cmds <- node.HostCommand{Kind: node.HostAddSender, SenderID: target, SenderEnd: ep}
	time.Sleep(20 * time.Millisecond)
}

func recvHostEvent(t *testing.T, ch chan node.HostEvent) node.HostEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for host event")
		return node.HostEvent{}
	}
}

// TestHostRelaysOwnFirstHop covers the send_packet hops[0]==sender case:
// a client originates a fragment addressed to itself at hop 0, and must
// relay it onward to the next hop rather than treating it as arrived.
func TestHostRelaysOwnFirstHop(t *testing.T) {
	fab := fabric.New()
	fab.CreateNode(1)
	events := newTestHost(t, fab, 10, node.KindClient)
	addHostSender(t, fab, 10, 1)

	inbound10, _ := fab.Inbound(10)
	inbound10 <- node.Packet{
		SessionID:     7,
		RoutingHeader: node.RoutingHeader{Hops: []node.ID{10, 1, 20}, HopIndex: 0},
		Payload:       node.Payload{Kind: node.PayloadMsgFragment, MsgFragment: node.MsgFragment{TotalFragments: 1}},
	}

	inbound1, _ := fab.Inbound(1)
	forwarded := recvPacket(t, inbound1)
	if forwarded.RoutingHeader.HopIndex != 1 {
		t.Errorf("expected relayed hop index 1, got %d", forwarded.RoutingHeader.HopIndex)
	}

	ev := recvHostEvent(t, events)
	if ev.Kind != node.HostEventPacketSent {
		t.Fatalf("expected HostEventPacketSent, got %v", ev.Kind)
	}
	if next, ok := ev.Header.RoutingHeader.NextHop(); !ok || next != 1 {
		t.Errorf("expected packet-sent header to point at next hop 1")
	}
}

// TestHostAcksArrivedFragmentAndReportsMessageSent covers the receiving
// side: a fragment whose route is exhausted at this host is acknowledged
// immediately, and once every fragment of the message has arrived the
// host reports a completed message back to the original sender.
func TestHostAcksArrivedFragmentAndReportsMessageSent(t *testing.T) {
	fab := fabric.New()
	fab.CreateNode(1)
	events := newTestHost(t, fab, 20, node.KindServer)
	addHostSender(t, fab, 20, 1)

	inbound20, _ := fab.Inbound(20)
	inbound20 <- node.Packet{
		SessionID:     7,
		RoutingHeader: node.RoutingHeader{Hops: []node.ID{10, 1, 20}, HopIndex: 2},
		Payload:       node.Payload{Kind: node.PayloadMsgFragment, MsgFragment: node.MsgFragment{FragmentIndex: 0, TotalFragments: 1}},
	}

	inbound1, _ := fab.Inbound(1)
	ack := recvPacket(t, inbound1)
	if ack.Payload.Kind != node.PayloadAck {
		t.Fatalf("expected an Ack packet, got %v", ack.Payload.Kind)
	}
	if next, ok := ack.RoutingHeader.CurrentHop(); !ok || next != 1 {
		t.Errorf("expected ack's first forwarded hop to be 1, got %v ok=%v", next, ok)
	}

	var sawSent, sawMessage bool
	for i := 0; i < 2; i++ {
		ev := recvHostEvent(t, events)
		switch ev.Kind {
		case node.HostEventPacketSent:
			sawSent = true
		case node.HostEventMessageSent:
			sawMessage = true
			if ev.Destination != 10 {
				t.Errorf("expected message-sent destination 10, got %d", ev.Destination)
			}
		}
	}
	if !sawSent || !sawMessage {
		t.Fatalf("expected both PacketSent and MessageSent events, got sent=%v message=%v", sawSent, sawMessage)
	}
}

func TestHostControllerShortcutWhenSenderMissing(t *testing.T) {
	fab := fabric.New()
	events := newTestHost(t, fab, 20, node.KindServer)

	inbound20, _ := fab.Inbound(20)
	inbound20 <- node.Packet{
		SessionID:     7,
		RoutingHeader: node.RoutingHeader{Hops: []node.ID{10, 1, 20}, HopIndex: 2},
		Payload:       node.Payload{Kind: node.PayloadMsgFragment, MsgFragment: node.MsgFragment{TotalFragments: 1}},
	}

	ev := recvHostEvent(t, events)
	if ev.Kind != node.HostEventControllerShortcut {
		t.Fatalf("expected HostEventControllerShortcut, got %v", ev.Kind)
	}
}

func TestHostRespondsToFloodRequestWithResponse(t *testing.T) {
	fab := fabric.New()
	fab.CreateNode(1)
	_ = newTestHost(t, fab, 20, node.KindServer)
	addHostSender(t, fab, 20, 1)

	inbound20, _ := fab.Inbound(20)
	inbound20 <- node.Packet{
		RoutingHeader: node.RoutingHeader{Hops: []node.ID{1, 20}, HopIndex: 1},
		Payload: node.Payload{
			Kind:         node.PayloadFloodRequest,
			FloodRequest: node.FloodRequest{FloodID: 5, PathTrace: []node.PathEntry{{Node: 1, Kind: node.KindDrone}}, OriginKind: node.KindDrone},
		},
	}

	inbound1, _ := fab.Inbound(1)
	resp := recvPacket(t, inbound1)
	if resp.Payload.Kind != node.PayloadFloodResponse {
		t.Fatalf("expected a FloodResponse, got %v", resp.Payload.Kind)
	}
}
