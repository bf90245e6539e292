// Package fabric owns the three per-node channels (inbound packets,
// commands, events) that make up the live simulation's channel fabric.
// It is the concurrent registry a running simulation consults to look
// nodes up by id; nodes themselves never hold a reference to it.
package fabric

import (
	"errors"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/dronemesh/meshsim/internal/node"
)

// ErrNodeNotFound is returned when an operation names an id with no
// fabric entry.
var ErrNodeNotFound = errors.New("fabric: node not found")

// Endpoint is the concrete OutboundPacketEndpoint handed out when a node
// is wired to a neighbor: sending on it enqueues onto that neighbor's
// inbound queue.
type Endpoint struct {
	target  node.ID
	inbound chan node.Packet
}

// Send implements node.OutboundPacketEndpoint.
func (e Endpoint) Send(p node.Packet) error {
	select {
	case e.inbound <- p:
		return nil
	default:
		// Inbound queues are buffered channels of fixed capacity
		// (inboundCapacity); a full buffered channel here means the
		// receiving node's task has exited.
		return errNodeGone(e.target)
	}
}

func errNodeGone(id node.ID) error {
	return &SendError{Target: id}
}

// SendError reports a failed inbound enqueue (e.g. because the
// destination node's task has already exited).
type SendError struct {
	Target node.ID
}

func (e *SendError) Error() string {
	return "fabric: send to node failed, receiver gone"
}

// inboundCapacity bounds the buffered channel backing each node's inbound
// queue. It is generous rather than truly unbounded so that a node whose
// task has exited fails sends instead of blocking forever; live nodes
// drain far faster than this fills under any test workload.
const inboundCapacity = 4096

// entry bundles one node's three channels plus the senders it currently
// holds out to neighbors, so AddSender/RemoveSender can be idempotent.
type entry struct {
	inbound  chan node.Packet
	commands chan node.DroneCommand
	hostCmds chan node.HostCommand
	events   chan node.DroneEvent
	hostEvts chan node.HostEvent

	mu      sync.Mutex
	senders map[node.ID]node.OutboundPacketEndpoint
}

// Fabric is the concurrent registry of per-node channel sets for one
// running simulation.
type Fabric struct {
	entries *xsync.Map[node.ID, *entry]
}

// New returns an empty fabric.
func New() *Fabric {
	return &Fabric{entries: xsync.NewMap[node.ID, *entry]()}
}

// CreateNode allocates the three channels for id. Calling it twice for
// the same id replaces the previous entry.
func (f *Fabric) CreateNode(id node.ID) {
	f.entries.Store(id, &entry{
		inbound:  make(chan node.Packet, inboundCapacity),
		commands: make(chan node.DroneCommand, 16),
		hostCmds: make(chan node.HostCommand, 16),
		events:   make(chan node.DroneEvent, 256),
		hostEvts: make(chan node.HostEvent, 256),
		senders:  make(map[node.ID]node.OutboundPacketEndpoint),
	})
}

// RemoveNode drops every channel owned by id. Callers must ensure the
// node's task has already exited or will exit on its own (closing a
// channel a task still reads from is not attempted here).
func (f *Fabric) RemoveNode(id node.ID) {
	f.entries.Delete(id)
}

// Has reports whether id currently has fabric entries.
func (f *Fabric) Has(id node.ID) bool {
	_, ok := f.entries.Load(id)
	return ok
}

// Inbound returns id's inbound packet channel.
func (f *Fabric) Inbound(id node.ID) (chan node.Packet, bool) {
	e, ok := f.entries.Load(id)
	if !ok {
		return nil, false
	}
	return e.inbound, true
}

// DroneCommands returns id's drone command channel.
func (f *Fabric) DroneCommands(id node.ID) (chan node.DroneCommand, bool) {
	e, ok := f.entries.Load(id)
	if !ok {
		return nil, false
	}
	return e.commands, true
}

// HostCommands returns id's host command channel.
func (f *Fabric) HostCommands(id node.ID) (chan node.HostCommand, bool) {
	e, ok := f.entries.Load(id)
	if !ok {
		return nil, false
	}
	return e.hostCmds, true
}

// DroneEvents returns id's drone event channel.
func (f *Fabric) DroneEvents(id node.ID) (chan node.DroneEvent, bool) {
	e, ok := f.entries.Load(id)
	if !ok {
		return nil, false
	}
	return e.events, true
}

// HostEvents returns id's host event channel.
func (f *Fabric) HostEvents(id node.ID) (chan node.HostEvent, bool) {
	e, ok := f.entries.Load(id)
	if !ok {
		return nil, false
	}
	return e.hostEvts, true
}

// Endpoint builds an OutboundPacketEndpoint targeting id's inbound queue.
func (f *Fabric) Endpoint(id node.ID) (node.OutboundPacketEndpoint, bool) {
	e, ok := f.entries.Load(id)
	if !ok {
		return nil, false
	}
	return Endpoint{target: id, inbound: e.inbound}, true
}

// NodeIDs returns every id currently registered in the fabric, in no
// particular order.
func (f *Fabric) NodeIDs() []node.ID {
	ids := make([]node.ID, 0, f.entries.Size())
	f.entries.Range(func(id node.ID, _ *entry) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// RecordSender remembers that holder now holds an endpoint for target,
// returning false if it already did (a no-op repeat).
func (f *Fabric) RecordSender(holder, target node.ID, ep node.OutboundPacketEndpoint) bool {
	e, ok := f.entries.Load(holder)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.senders[target]; exists {
		return false
	}
	e.senders[target] = ep
	return true
}

// ForgetSender removes the remembered sender endpoint for target on
// holder, returning false if none was recorded (a no-op repeat).
func (f *Fabric) ForgetSender(holder, target node.ID) bool {
	e, ok := f.entries.Load(holder)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.senders[target]; !exists {
		return false
	}
	delete(e.senders, target)
	return true
}
