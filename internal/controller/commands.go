package controller

import (
	"github.com/dronemesh/meshsim/internal/node"
)

// SetPDR pushes a new packet-drop rate to a live drone and records it in
// the topology. pdr is a percentage (0-100 inclusive).
func (c *Controller) SetPDR(id node.ID, pdrPercent uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return networkNotRunning()
	}
	if pdrPercent > 100 {
		return invalidPdr(pdrPercent)
	}
	kind, ok := c.topo.Kind(id)
	if !ok {
		return nodeNotFound(id)
	}
	if kind != node.KindDrone {
		return nodeIsNotDrone(id)
	}

	ratio := node.Ratio(float64(pdrPercent) / 100)
	if err := c.topo.SetPDR(id, ratio); err != nil {
		return validation(err)
	}
	if ch, ok := c.fab.DroneCommands(id); ok {
		select {
		case ch <- node.DroneCommand{Kind: node.DroneSetPacketDropRate, PDR: ratio}:
		default:
			return commandSend(nil, "drone command queue full")
		}
	}
	return nil
}

// CrashDrone removes id from the topology (after validating the graph
// without it), tears down its senders on both sides, tells it to
// terminate, drops its fabric entries, and joins its task.
func (c *Controller) CrashDrone(id node.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return networkNotRunning()
	}
	kind, ok := c.topo.Kind(id)
	if !ok {
		return nodeNotFound(id)
	}
	if kind != node.KindDrone {
		return nodeIsNotDrone(id)
	}

	neighbors, _ := c.topo.Neighbors(id)
	if err := c.topo.RemoveNode(id); err != nil {
		return validation(err)
	}

	for _, n := range neighbors {
		c.removeSenderCommand(n, id)
		c.removeSenderCommand(id, n)
	}
	if ch, ok := c.fab.DroneCommands(id); ok {
		select {
		case ch <- node.DroneCommand{Kind: node.DroneCrash}:
		default:
		}
	}

	joined := c.joinTask(id)
	c.fab.RemoveNode(id)
	c.met.Forget(id)

	if !joined {
		return threadJoin(id)
	}
	return nil
}

// AddEdge validates the proposed graph with the new edge, commits it,
// and (while Running) wires paired AddSender commands on both ends.
func (c *Controller) AddEdge(a, b node.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.topo.AddEdge(a, b); err != nil {
		return validation(err)
	}
	if c.status == StatusRunning {
		c.wireSenders(a, b)
	}
	return nil
}

// RemoveEdge mirrors AddEdge: validates the graph with the edge
// removed, commits it, and (while Running) tears down paired senders.
func (c *Controller) RemoveEdge(a, b node.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.topo.RemoveEdge(a, b); err != nil {
		return validation(err)
	}
	if c.status == StatusRunning {
		c.removeSenderCommand(a, b)
		c.removeSenderCommand(b, a)
	}
	return nil
}

// AddDrone allocates a new drone id, validates the proposed graph, and
// (while Running) spawns it using a uniformly-random factory and wires
// paired senders to every listed neighbor.
func (c *Controller) AddDrone(neighbors []node.ID, pdrPercent uint8) (node.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pdrPercent > 100 {
		return 0, invalidPdr(pdrPercent)
	}
	ratio := node.Ratio(float64(pdrPercent) / 100)
	id, err := c.topo.AddDrone(neighbors, ratio)
	if err != nil {
		return 0, validation(err)
	}

	if c.status == StatusRunning {
		c.met.RegisterDrone(id)
		c.fab.CreateNode(id)
		factory, ok := c.registry.Random(c.rnd)
		if !ok {
			return 0, invalidOperation("no drone factories registered")
		}
		c.spawnDrone(id, ratio, factory)
		for _, n := range neighbors {
			c.wireSenders(id, n)
		}
	}
	return id, nil
}

// buildRoutingHeader implements the send_packet hops[0] convention
// (spec.md §9 open question 2 / boundary test): when the caller already
// lists sender as hops[0], the packet is injected at hop_index 0 (the
// sender's own inbound queue, which it relays onward itself); otherwise
// sender is prepended and the packet is injected directly at the first
// real hop, hop_index 1.
func buildRoutingHeader(sender node.ID, hops []node.ID) node.RoutingHeader {
	if len(hops) > 0 && hops[0] == sender {
		return node.RoutingHeader{Hops: hops, HopIndex: 0}
	}
	newHops := make([]node.ID, 0, len(hops)+1)
	newHops = append(newHops, sender)
	newHops = append(newHops, hops...)
	return node.RoutingHeader{Hops: newHops, HopIndex: 1}
}

// SendPacket synthesizes a packet envelope from the caller-supplied
// payload and hop list and injects it directly into the current hop's
// inbound queue, bypassing the sender's own outbound path.
func (c *Controller) SendPacket(sender node.ID, sessionID uint64, payload node.Payload, hops []node.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return networkNotRunning()
	}
	if !c.fab.Has(sender) {
		return nodeNotFound(sender)
	}
	if len(hops) == 0 {
		return invalidOperation("send_packet: hops must not be empty")
	}
	if payload.Kind == node.PayloadFloodRequest {
		if kind, ok := c.topo.Kind(sender); ok {
			payload.FloodRequest.OriginKind = kind
		}
	}

	header := buildRoutingHeader(sender, hops)
	current, ok := header.CurrentHop()
	if !ok {
		return invalidOperation("send_packet: empty routing header after prepending sender")
	}
	pkt := node.Packet{SessionID: sessionID, RoutingHeader: header, Payload: payload}

	ep, ok := c.fab.Endpoint(current)
	if !ok {
		return channelNotFound(current)
	}
	if err := ep.Send(pkt); err != nil {
		return sendErr(err, "send_packet: inbound queue full or receiver gone")
	}
	return nil
}
