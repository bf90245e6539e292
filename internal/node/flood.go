package node

import "github.com/zeebo/xxh3"

// FloodKey returns a stable dedupe key for "has this node already
// retransmitted this flood" bookkeeping. Two (floodID, node) pairs that
// are equal always hash to the same key; this lets a drone's bounded
// flood-dedupe cache (see internal/runtime) use a cheap fixed-size key
// instead of a string.
func FloodKey(floodID uint64, n ID) uint64 {
	var buf [9]byte
	buf[0] = byte(n)
	buf[1] = byte(floodID)
	buf[2] = byte(floodID >> 8)
	buf[3] = byte(floodID >> 16)
	buf[4] = byte(floodID >> 24)
	buf[5] = byte(floodID >> 32)
	buf[6] = byte(floodID >> 40)
	buf[7] = byte(floodID >> 48)
	buf[8] = byte(floodID >> 56)
	return xxh3.Hash(buf[:])
}
