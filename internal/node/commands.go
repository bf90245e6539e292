package node

// OutboundPacketEndpoint is the cloneable handle a node holds for sending
// packets to one neighbor's inbound queue. It is a value, not a pointer
// back into the fabric or topology, so that nodes never dereference
// shared simulation state directly (see spec §9 "cyclic ownership").
type OutboundPacketEndpoint interface {
	Send(Packet) error
}

// DroneCommandKind discriminates the DroneCommand union.
type DroneCommandKind int

const (
	DroneCrash DroneCommandKind = iota
	DroneSetPacketDropRate
	DroneAddSender
	DroneRemoveSender
)

// DroneCommand is a controller-to-drone instruction.
type DroneCommand struct {
	Kind      DroneCommandKind
	PDR       Ratio                  // DroneSetPacketDropRate
	SenderID  ID                     // DroneAddSender / DroneRemoveSender
	SenderEnd OutboundPacketEndpoint // DroneAddSender
}

// HostCommandKind discriminates the HostCommand union.
type HostCommandKind int

const (
	HostStop HostCommandKind = iota
	HostAddSender
	HostRemoveSender
	HostApplication // opaque application-level command, core treats as inert
)

// HostCommand is a controller-to-host instruction. Application-level
// commands are carried opaquely in Opaque and never interpreted by the
// core.
type HostCommand struct {
	Kind      HostCommandKind
	SenderID  ID
	SenderEnd OutboundPacketEndpoint
	Opaque    any
}

// DroneEventKind discriminates the DroneEvent union.
type DroneEventKind int

const (
	EventPacketSent DroneEventKind = iota
	EventPacketDropped
	EventControllerShortcut
)

// DroneEvent is a drone-to-controller notification.
type DroneEvent struct {
	Kind   DroneEventKind
	Source ID
	Packet Packet
}

// HostEventKind discriminates the HostEvent union.
type HostEventKind int

const (
	HostEventPacketSent HostEventKind = iota
	HostEventMessageSent
	HostEventControllerShortcut
)

// HostEvent is a host-to-controller notification.
type HostEvent struct {
	Kind            HostEventKind
	Source          ID
	Header          PacketHeader // HostEventPacketSent
	Packet          Packet       // HostEventControllerShortcut
	Destination     ID           // HostEventMessageSent
	MessageDescript string       // HostEventMessageSent, opaque descriptor
	LatencyNanos    int64        // HostEventMessageSent
}
