package runtime

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"github.com/maypok86/otter"
	"github.com/robfig/cron/v3"

	"github.com/dronemesh/meshsim/internal/node"
)

const floodCacheSize = 4096

// defaultRand adapts math/rand/v2's package-level source to RandSource.
type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

// StandardFactory is the reference drone implementation: it follows the
// packet-handling policy exactly (PDR-gated fragment drop with a Nack,
// never-drop forwarding of Ack/Nack/FloodResponse with a controller
// shortcut on a missing link, and flood propagation with loop
// suppression).
type StandardFactory struct{}

func (StandardFactory) Name() string { return "standard" }

func (StandardFactory) NewDrone(cfg DroneConfig) Runnable {
	rnd := cfg.RandSource
	if rnd == nil {
		rnd = defaultRand{}
	}
	cache, err := otter.MustBuilder[uint64, struct{}](floodCacheSize).Build()
	if err != nil {
		panic("runtime: failed to build flood dedupe cache: " + err.Error())
	}
	return &drone{cfg: cfg, rnd: rnd, seenFloods: cache}
}

type drone struct {
	cfg        DroneConfig
	rnd        RandSource
	seenFloods otter.Cache[uint64, struct{}]

	senders map[node.ID]node.OutboundPacketEndpoint
}

// Run implements Runnable. It fairly multiplexes the command queue, the
// inbound packet queue, and (if configured) a periodic discovery timer
// via select, until a DroneCrash command or ctx cancellation arrives.
func (d *drone) Run(ctx context.Context) {
	d.senders = make(map[node.ID]node.OutboundPacketEndpoint)

	inbound, _ := d.cfg.Fabric.Inbound(d.cfg.ID)
	commands, _ := d.cfg.Fabric.DroneCommands(d.cfg.ID)

	var discoveryC <-chan time.Time
	var discoveryTicker *time.Ticker
	if d.cfg.DiscoveryInterval != "" {
		if sched, err := cron.ParseStandard(d.cfg.DiscoveryInterval); err == nil {
			interval := nextDelta(sched)
			if interval > 0 {
				discoveryTicker = time.NewTicker(interval)
				discoveryC = discoveryTicker.C
			}
		} else {
			log.Printf("runtime: drone %d: invalid discovery schedule %q: %v", d.cfg.ID, d.cfg.DiscoveryInterval, err)
		}
	}
	if discoveryTicker != nil {
		defer discoveryTicker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-commands:
			if d.handleCommand(cmd) {
				return
			}
		case pkt := <-inbound:
			d.handlePacket(pkt)
		case <-discoveryC:
			d.originateFlood()
		}
	}
}

// nextDelta derives a fixed polling interval from an @every-style cron
// schedule by measuring the gap between its next two firings.
func nextDelta(sched cron.Schedule) time.Duration {
	now := time.Now()
	next := sched.Next(now)
	nextNext := sched.Next(next)
	return nextNext.Sub(next)
}

func (d *drone) handleCommand(cmd node.DroneCommand) (terminate bool) {
	switch cmd.Kind {
	case node.DroneCrash:
		return true
	case node.DroneSetPacketDropRate:
		d.cfg.PDR = cmd.PDR
	case node.DroneAddSender:
		if _, exists := d.senders[cmd.SenderID]; exists {
			return false // idempotent no-op
		}
		d.senders[cmd.SenderID] = cmd.SenderEnd
	case node.DroneRemoveSender:
		delete(d.senders, cmd.SenderID)
	}
	return false
}

func (d *drone) emit(kind node.DroneEventKind, pkt node.Packet) {
	select {
	case d.cfg.Events <- node.DroneEvent{Kind: kind, Source: d.cfg.ID, Packet: pkt}:
	default:
		// Event queue backed up beyond its buffer; drop rather than
		// block the node's single select loop indefinitely.
	}
}

func (d *drone) handlePacket(pkt node.Packet) {
	switch pkt.Payload.Kind {
	case node.PayloadMsgFragment:
		d.handleFragment(pkt)
	case node.PayloadFloodRequest:
		d.handleFloodRequest(pkt)
	default:
		d.forwardNonDroppable(pkt)
	}
}

func (d *drone) handleFragment(pkt node.Packet) {
	if d.rnd.Float64() < float64(d.cfg.PDR) {
		d.emit(node.EventPacketDropped, pkt)

		nack := node.Packet{
			SessionID:     pkt.SessionID,
			RoutingHeader: pkt.RoutingHeader.Reversed(),
			Payload: node.Payload{
				Kind: node.PayloadNack,
				Nack: node.Nack{FragmentIndex: pkt.Payload.MsgFragment.FragmentIndex, Reason: node.NackDropped},
			},
		}
		d.forwardNonDroppable(nack)
		return
	}

	next, ok := pkt.RoutingHeader.NextHop()
	if !ok {
		// A fragment's route ends at this drone: drones are never a
		// valid fragment destination.
		nack := node.Packet{
			SessionID:     pkt.SessionID,
			RoutingHeader: pkt.RoutingHeader.Reversed(),
			Payload: node.Payload{
				Kind: node.PayloadNack,
				Nack: node.Nack{FragmentIndex: pkt.Payload.MsgFragment.FragmentIndex, Reason: node.NackDestinationIsDrone, OffendingNode: d.cfg.ID},
			},
		}
		d.forwardNonDroppable(nack)
		return
	}
	sender, ok := d.senders[next]
	if !ok {
		d.emit(node.EventControllerShortcut, pkt)
		return
	}
	forwarded := pkt
	forwarded.RoutingHeader = pkt.RoutingHeader.Advanced()
	if err := sender.Send(forwarded); err != nil {
		d.emit(node.EventPacketDropped, pkt)
		return
	}
	d.emit(node.EventPacketSent, pkt)
}

// forwardNonDroppable implements the shared Ack/Nack/FloodResponse
// policy: never dropped; forwarded along the routing header's next hop
// when the link exists, otherwise surfaced as a ControllerShortcut.
// Reaching the end of the route (no next hop at all) means this packet
// has arrived at its destination and is simply consumed.
func (d *drone) forwardNonDroppable(pkt node.Packet) {
	next, ok := pkt.RoutingHeader.NextHop()
	if !ok {
		return // route exhausted: we are the destination
	}
	sender, ok := d.senders[next]
	if !ok {
		d.emit(node.EventControllerShortcut, pkt)
		return
	}
	forwarded := pkt
	forwarded.RoutingHeader = pkt.RoutingHeader.Advanced()
	if err := sender.Send(forwarded); err != nil {
		d.emit(node.EventControllerShortcut, pkt)
		return
	}
	d.emit(node.EventPacketSent, pkt)
}

func (d *drone) handleFloodRequest(pkt node.Packet) {
	req := pkt.Payload.FloodRequest
	key := node.FloodKey(req.FloodID, d.cfg.ID)
	if _, seen := d.seenFloods.Get(key); seen {
		return
	}
	d.seenFloods.Set(key, struct{}{})

	sender, hasSender := floodSender(req.PathTrace)
	newTrace := appendPathEntry(req.PathTrace, d.cfg.ID, node.KindDrone)

	forwardedTo := 0
	for neighbor, ep := range d.senders {
		if hasSender && neighbor == sender {
			continue
		}
		copyPkt := node.Packet{
			SessionID: pkt.SessionID,
			RoutingHeader: node.RoutingHeader{
				Hops:     []node.ID{d.cfg.ID},
				HopIndex: 0,
			},
			Payload: node.Payload{
				Kind: node.PayloadFloodRequest,
				FloodRequest: node.FloodRequest{
					FloodID:    req.FloodID,
					PathTrace:  newTrace,
					OriginKind: req.OriginKind,
				},
			},
		}
		if err := ep.Send(copyPkt); err == nil {
			forwardedTo++
		}
	}

	if forwardedTo == 0 {
		response := buildFloodResponse(pkt.SessionID, req.FloodID, newTrace)
		d.forwardNonDroppable(response)
	}
	d.emit(node.EventPacketSent, pkt)
}

// originateFlood is fired by the periodic discovery timer: the drone
// starts its own network-discovery flood, carrying its true kind per
// FloodRequest.OriginKind.
func (d *drone) originateFlood() {
	floodID := rand.Uint64()
	trace := []node.PathEntry{{Node: d.cfg.ID, Kind: node.KindDrone}}
	for _, ep := range d.senders {
		pkt := node.Packet{
			RoutingHeader: node.RoutingHeader{Hops: []node.ID{d.cfg.ID}, HopIndex: 0},
			Payload: node.Payload{
				Kind: node.PayloadFloodRequest,
				FloodRequest: node.FloodRequest{
					FloodID:    floodID,
					PathTrace:  trace,
					OriginKind: node.KindDrone,
				},
			},
		}
		_ = ep.Send(pkt)
	}
}
