package runtime

import (
	"context"
	"log"
	"time"

	"github.com/dronemesh/meshsim/internal/node"
)

// sessionProgress tracks one in-flight message's fragment reassembly at
// the receiving host, so a HostEventMessageSent can be emitted exactly
// once, when the last fragment of the message has been acknowledged.
type sessionProgress struct {
	startedAt      time.Time
	totalFragments uint64
	received       map[uint64]struct{}
}

// host is the fixed (non-pluggable) Client/Server runtime. Both roles
// share the same obligations; Kind only affects the PathEntry tag they
// stamp on flood traffic.
type host struct {
	cfg      HostConfig
	senders  map[node.ID]node.OutboundPacketEndpoint
	sessions map[uint64]*sessionProgress
}

// NewClient returns the fixed Client Runnable.
func NewClient(cfg HostConfig) Runnable {
	cfg.Kind = node.KindClient
	return &host{cfg: cfg}
}

// NewServer returns the fixed Server Runnable.
func NewServer(cfg HostConfig) Runnable {
	cfg.Kind = node.KindServer
	return &host{cfg: cfg}
}

func (h *host) Run(ctx context.Context) {
	h.senders = make(map[node.ID]node.OutboundPacketEndpoint)
	h.sessions = make(map[uint64]*sessionProgress)

	if h.cfg.Kind == node.KindServer && h.cfg.PublicEndpoint != "" {
		log.Printf("runtime: server %d notional endpoint %s", h.cfg.ID, h.cfg.PublicEndpoint)
	}

	inbound, _ := h.cfg.Fabric.Inbound(h.cfg.ID)
	commands, _ := h.cfg.Fabric.HostCommands(h.cfg.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-commands:
			if h.handleCommand(cmd) {
				return
			}
		case pkt := <-inbound:
			h.handlePacket(pkt)
		}
	}
}

func (h *host) handleCommand(cmd node.HostCommand) (terminate bool) {
	switch cmd.Kind {
	case node.HostStop:
		return true
	case node.HostAddSender:
		if _, exists := h.senders[cmd.SenderID]; exists {
			return false
		}
		h.senders[cmd.SenderID] = cmd.SenderEnd
	case node.HostRemoveSender:
		delete(h.senders, cmd.SenderID)
	case node.HostApplication:
		// Opaque application-level command: the core never interprets it.
	}
	return false
}

func (h *host) emit(ev node.HostEvent) {
	select {
	case h.cfg.Events <- ev:
	default:
	}
}

func (h *host) handlePacket(pkt node.Packet) {
	switch pkt.Payload.Kind {
	case node.PayloadMsgFragment:
		h.handleFragment(pkt)
	case node.PayloadAck:
		h.handleAck(pkt)
	case node.PayloadNack:
		h.handleNack(pkt)
	case node.PayloadFloodRequest:
		h.handleFloodRequest(pkt)
	case node.PayloadFloodResponse:
		h.handleFloodResponse(pkt)
	}
}

// handleFragment covers two cases a controller's send_packet command can
// produce: a fragment addressed with this host still at the front of its
// own route (the host is the logical sender and must relay its first hop
// onward itself, the hops[0]==sender case), and a fragment that has
// actually arrived for this host (route exhausted), which is acknowledged
// immediately and, once every fragment of the message has been seen,
// reported as a completed message.
func (h *host) handleFragment(pkt node.Packet) {
	if _, ok := pkt.RoutingHeader.NextHop(); ok {
		h.route(pkt)
		return
	}

	frag := pkt.Payload.MsgFragment
	sp, ok := h.sessions[pkt.SessionID]
	if !ok {
		sp = &sessionProgress{startedAt: time.Now(), totalFragments: frag.TotalFragments, received: make(map[uint64]struct{})}
		h.sessions[pkt.SessionID] = sp
	}
	sp.received[frag.FragmentIndex] = struct{}{}

	ack := node.Packet{
		SessionID:     pkt.SessionID,
		RoutingHeader: pkt.RoutingHeader.Reversed(),
		Payload:       node.Payload{Kind: node.PayloadAck, Ack: node.Ack{FragmentIndex: frag.FragmentIndex}},
	}
	h.route(ack)

	if sp.totalFragments == 0 || uint64(len(sp.received)) < sp.totalFragments {
		return
	}
	delete(h.sessions, pkt.SessionID)
	origin, ok := pkt.RoutingHeader.Source()
	if !ok {
		return
	}
	h.emit(node.HostEvent{
		Kind:         node.HostEventMessageSent,
		Source:       h.cfg.ID,
		Destination:  origin,
		LatencyNanos: int64(time.Since(sp.startedAt)),
	})
}

func (h *host) handleAck(pkt node.Packet) {
	if _, ok := pkt.RoutingHeader.NextHop(); ok {
		h.route(pkt)
	}
	// Route exhausted: the ack reached the fragment's original sender.
	// Nothing further to track here; message completion is reported by
	// the acknowledging host in handleFragment.
}

func (h *host) handleNack(pkt node.Packet) {
	if _, ok := pkt.RoutingHeader.NextHop(); ok {
		h.route(pkt)
	}
}

func (h *host) handleFloodRequest(pkt node.Packet) {
	req := pkt.Payload.FloodRequest
	trace := appendPathEntry(req.PathTrace, h.cfg.ID, h.cfg.Kind)
	response := buildFloodResponse(pkt.SessionID, req.FloodID, trace)
	h.route(response)
}

func (h *host) handleFloodResponse(pkt node.Packet) {
	if _, ok := pkt.RoutingHeader.NextHop(); ok {
		h.emit(node.HostEvent{Kind: node.HostEventControllerShortcut, Source: h.cfg.ID, Packet: pkt})
	}
	// Route exhausted: this host originated the flood; nothing further
	// to do with the completed discovery trace.
}

// route forwards a non-droppable packet (Ack/Nack/FloodResponse) along
// its routing header, falling back to ControllerShortcut when the
// expected next hop has no registered sender.
func (h *host) route(pkt node.Packet) {
	next, ok := pkt.RoutingHeader.NextHop()
	if !ok {
		return
	}
	sender, ok := h.senders[next]
	if !ok {
		h.emit(node.HostEvent{Kind: node.HostEventControllerShortcut, Source: h.cfg.ID, Packet: pkt})
		return
	}
	forwarded := pkt
	forwarded.RoutingHeader = pkt.RoutingHeader.Advanced()
	if err := sender.Send(forwarded); err != nil {
		h.emit(node.HostEvent{Kind: node.HostEventControllerShortcut, Source: h.cfg.ID, Packet: pkt})
		return
	}
	h.emit(node.HostEvent{Kind: node.HostEventPacketSent, Source: h.cfg.ID, Header: pkt.Header()})
}
