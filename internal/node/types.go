// Package node defines the identities and wire contract shared by every
// participant in the mesh: node ids and kinds, the packet envelope and its
// payload variants, and the command/event types a node's runtime exchanges
// with the simulation controller.
package node

import "fmt"

// ID is a small unsigned integer, unique per simulation, assigned at
// topology build time and at runtime when new nodes are added.
type ID uint8

// Kind discriminates the three node roles. Only Drone carries payload
// (Ratio, Group); Client and Server are marker values.
type Kind int

const (
	KindInvalid Kind = iota
	KindDrone
	KindClient
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindDrone:
		return "drone"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	default:
		return "invalid"
	}
}

// Ratio is a stochastic probability in [0,1], used for a drone's
// packet-drop rate.
type Ratio float64

// Validate reports whether r is a well-formed ratio.
func (r Ratio) Validate() error {
	if r < 0 || r > 1 {
		return fmt.Errorf("node: ratio %v out of range [0,1]", float64(r))
	}
	return nil
}

// DroneAttrs holds the Drone-kind-specific fields.
type DroneAttrs struct {
	PDR   Ratio
	Group string // optional; empty means unset
}

// PacketTypeLabel names a payload variant for counters and read APIs.
type PacketTypeLabel string

const (
	LabelMsgFragment   PacketTypeLabel = "msg_fragment"
	LabelAck           PacketTypeLabel = "ack"
	LabelNack          PacketTypeLabel = "nack"
	LabelFloodRequest  PacketTypeLabel = "flood_request"
	LabelFloodResponse PacketTypeLabel = "flood_response"
)

// FragmentSize is the fixed payload size, in bytes, of a MsgFragment.
const FragmentSize = 128

// NackReason enumerates why a fragment or flood produced a Nack.
type NackReason int

const (
	NackDropped NackReason = iota
	NackErrorInRouting
	NackUnexpectedRecipient
	NackDestinationIsDrone
)

func (r NackReason) String() string {
	switch r {
	case NackDropped:
		return "dropped"
	case NackErrorInRouting:
		return "error_in_routing"
	case NackUnexpectedRecipient:
		return "unexpected_recipient"
	case NackDestinationIsDrone:
		return "destination_is_drone"
	default:
		return "unknown"
	}
}

// Nack carries an optional offending node id for ErrorInRouting/
// UnexpectedRecipient reasons.
type Nack struct {
	FragmentIndex uint64
	Reason        NackReason
	OffendingNode ID // only meaningful for ErrorInRouting/UnexpectedRecipient
}

// Ack acknowledges successful delivery of one fragment.
type Ack struct {
	FragmentIndex uint64
}

// MsgFragment carries one fragment of an application message.
type MsgFragment struct {
	FragmentIndex  uint64
	TotalFragments uint64
	Length         uint8
	Data           [FragmentSize]byte
}

// PathEntry is one hop recorded in a flood's path_trace.
type PathEntry struct {
	Node ID
	Kind Kind
}

// FloodRequest propagates through the mesh, growing PathTrace as it goes.
type FloodRequest struct {
	FloodID    uint64
	PathTrace  []PathEntry
	OriginKind Kind // true kind of the node that originated this flood
}

// FloodResponse retraces a FloodRequest's path back to its originator.
type FloodResponse struct {
	FloodID   uint64
	PathTrace []PathEntry
}

// PayloadKind discriminates which field of Payload is populated.
type PayloadKind int

const (
	PayloadMsgFragment PayloadKind = iota
	PayloadAck
	PayloadNack
	PayloadFloodRequest
	PayloadFloodResponse
)

// Payload is a tagged union over the five packet payload variants. Exactly
// one field matching Kind is meaningful.
type Payload struct {
	Kind          PayloadKind
	MsgFragment   MsgFragment
	Ack           Ack
	Nack          Nack
	FloodRequest  FloodRequest
	FloodResponse FloodResponse
}

// Label returns the PacketTypeLabel for this payload's variant.
func (p Payload) Label() PacketTypeLabel {
	switch p.Kind {
	case PayloadMsgFragment:
		return LabelMsgFragment
	case PayloadAck:
		return LabelAck
	case PayloadNack:
		return LabelNack
	case PayloadFloodRequest:
		return LabelFloodRequest
	case PayloadFloodResponse:
		return LabelFloodResponse
	default:
		return ""
	}
}

// Droppable reports whether this payload variant is subject to PDR. Only
// MsgFragment packets can be dropped; Ack/Nack/FloodRequest/FloodResponse
// are never dropped by a forwarding drone.
func (p Payload) Droppable() bool {
	return p.Kind == PayloadMsgFragment
}

// RoutingHeader carries the source-routed hop sequence and a cursor into
// it.
type RoutingHeader struct {
	Hops     []ID
	HopIndex int
}

// CurrentHop returns the node id this packet is currently addressed to.
func (h RoutingHeader) CurrentHop() (ID, bool) {
	if h.HopIndex < 0 || h.HopIndex >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[h.HopIndex], true
}

// NextHop returns the node id the packet should be forwarded to next.
func (h RoutingHeader) NextHop() (ID, bool) {
	next := h.HopIndex + 1
	if next < 0 || next >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[next], true
}

// Destination returns the final hop in the route, if any.
func (h RoutingHeader) Destination() (ID, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[len(h.Hops)-1], true
}

// Source returns the first hop in the route, if any.
func (h RoutingHeader) Source() (ID, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[0], true
}

// Advanced returns a copy of h with HopIndex incremented by one.
func (h RoutingHeader) Advanced() RoutingHeader {
	return RoutingHeader{Hops: h.Hops, HopIndex: h.HopIndex + 1}
}

// Reversed returns the routing header for the return trip: hops reversed,
// cursor parked on the current position from the far end.
func (h RoutingHeader) Reversed() RoutingHeader {
	rev := make([]ID, len(h.Hops))
	for i, id := range h.Hops {
		rev[len(h.Hops)-1-i] = id
	}
	return RoutingHeader{Hops: rev, HopIndex: len(rev) - 1 - h.HopIndex}
}

// Packet is the envelope exchanged between nodes.
type Packet struct {
	SessionID     uint64
	RoutingHeader RoutingHeader
	Payload       Payload
}

// PacketHeader is the header-only projection of a Packet, used by Host
// events that don't need to echo the full payload.
type PacketHeader struct {
	SessionID     uint64
	RoutingHeader RoutingHeader
	Label         PacketTypeLabel
}

// Header projects p to its PacketHeader.
func (p Packet) Header() PacketHeader {
	return PacketHeader{SessionID: p.SessionID, RoutingHeader: p.RoutingHeader, Label: p.Payload.Label()}
}
