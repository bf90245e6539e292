package runtime

import "github.com/dronemesh/meshsim/internal/node"

// appendPathEntry returns a copy of trace with (id, kind) appended; the
// incoming FloodRequest's slice is never mutated in place since copies
// of it fan out to multiple neighbors.
func appendPathEntry(trace []node.PathEntry, id node.ID, kind node.Kind) []node.PathEntry {
	out := make([]node.PathEntry, len(trace), len(trace)+1)
	copy(out, trace)
	return append(out, node.PathEntry{Node: id, Kind: kind})
}

// floodSender returns the node that forwarded this flood to us: the
// last entry of the trace recorded so far, before we append ourselves.
// An empty trace means there is no sender to exclude.
func floodSender(trace []node.PathEntry) (node.ID, bool) {
	if len(trace) == 0 {
		return 0, false
	}
	return trace[len(trace)-1].Node, true
}

// buildFloodResponse turns a completed path trace into the routed
// Packet carrying a FloodResponse back to the flood's originator: hops
// are the trace's node ids in reverse, with the cursor parked on our
// own position (index 0, since we are retracing from the leaf end).
func buildFloodResponse(sessionID, floodID uint64, trace []node.PathEntry) node.Packet {
	hops := make([]node.ID, len(trace))
	for i, entry := range trace {
		hops[len(trace)-1-i] = entry.Node
	}
	return node.Packet{
		SessionID: sessionID,
		RoutingHeader: node.RoutingHeader{
			Hops:     hops,
			HopIndex: 0,
		},
		Payload: node.Payload{
			Kind: node.PayloadFloodResponse,
			FloodResponse: node.FloodResponse{
				FloodID:   floodID,
				PathTrace: trace,
			},
		},
	}
}
