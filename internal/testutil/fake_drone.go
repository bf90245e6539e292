// Package testutil provides fake runtime implementations for tests
// elsewhere in the module, standing in for a real pluggable drone the
// way the teacher package's stub outbound builder stands in for a real
// dialer.
package testutil

import (
	"context"

	"github.com/dronemesh/meshsim/internal/node"
	"github.com/dronemesh/meshsim/internal/runtime"
)

// FakeFactory produces a FakeDrone: a minimal Runnable that forwards
// every fragment it is not the destination of and never drops,
// regardless of its configured PDR. Useful for controller-level tests
// that want deterministic forwarding without depending on the real
// packet-handling policy under test elsewhere.
type FakeFactory struct{}

func (FakeFactory) Name() string { return "fake" }

func (FakeFactory) NewDrone(cfg runtime.DroneConfig) runtime.Runnable {
	return &fakeDrone{cfg: cfg}
}

type fakeDrone struct {
	cfg     runtime.DroneConfig
	senders map[node.ID]node.OutboundPacketEndpoint
}

func (d *fakeDrone) Run(ctx context.Context) {
	d.senders = make(map[node.ID]node.OutboundPacketEndpoint)
	inbound, _ := d.cfg.Fabric.Inbound(d.cfg.ID)
	commands, _ := d.cfg.Fabric.DroneCommands(d.cfg.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-commands:
			switch cmd.Kind {
			case node.DroneCrash:
				return
			case node.DroneAddSender:
				d.senders[cmd.SenderID] = cmd.SenderEnd
			case node.DroneRemoveSender:
				delete(d.senders, cmd.SenderID)
			}
		case pkt := <-inbound:
			d.forward(pkt)
		}
	}
}

func (d *fakeDrone) forward(pkt node.Packet) {
	next, ok := pkt.RoutingHeader.NextHop()
	if !ok {
		return
	}
	sender, ok := d.senders[next]
	if !ok {
		select {
		case d.cfg.Events <- node.DroneEvent{Kind: node.EventControllerShortcut, Source: d.cfg.ID, Packet: pkt}:
		default:
		}
		return
	}
	forwarded := pkt
	forwarded.RoutingHeader = pkt.RoutingHeader.Advanced()
	if err := sender.Send(forwarded); err != nil {
		select {
		case d.cfg.Events <- node.DroneEvent{Kind: node.EventPacketDropped, Source: d.cfg.ID, Packet: pkt}:
		default:
		}
		return
	}
	select {
	case d.cfg.Events <- node.DroneEvent{Kind: node.EventPacketSent, Source: d.cfg.ID, Packet: pkt}:
	default:
	}
}
