package metrics

import (
	"sync"

	"github.com/maypok86/otter"

	"github.com/dronemesh/meshsim/internal/node"
)

// RecordKind discriminates whether a log Record came from a drone or a
// host event stream.
type RecordKind int

const (
	RecordDroneEvent RecordKind = iota
	RecordHostEvent
)

// Record is one entry of the recorded event log, tagged with the
// monotonic id new_messages uses as its cursor.
type Record struct {
	ID             uint64
	NodeID         node.ID
	Kind           RecordKind
	DroneEventKind node.DroneEventKind
	HostEventKind  node.HostEventKind
	Packet         node.Packet
}

// RecentEventLog is a bounded, append-only view over the event history:
// a monotonic id is assigned to every appended record, and the oldest
// records fall off once the log exceeds its capacity. Backed by an
// otter cache keyed by id; capacity is enforced explicitly (by deleting
// the record that just fell out of the window) rather than left to
// otter's own eviction policy, since new_messages needs a precise,
// gapless tail rather than an approximate LRU set.
type RecentEventLog struct {
	mu       sync.Mutex
	cache    otter.Cache[uint64, Record]
	capacity int
	nextID   uint64
}

// NewRecentEventLog returns a log retaining at most capacity records.
func NewRecentEventLog(capacity int) *RecentEventLog {
	if capacity <= 0 {
		capacity = 1000
	}
	cache, err := otter.MustBuilder[uint64, Record](capacity).Build()
	if err != nil {
		panic("metrics: failed to build recent event log: " + err.Error())
	}
	return &RecentEventLog{cache: cache, capacity: capacity}
}

// Append assigns the next monotonic id to rec and stores it, evicting
// the oldest record once the log is at capacity.
func (l *RecentEventLog) Append(rec Record) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	rec.ID = id
	l.cache.Set(id, rec)

	if id >= uint64(l.capacity) {
		l.cache.Delete(id - uint64(l.capacity))
	}
	return id
}

// Tail returns every record with id > lastID, oldest first, capped at
// max entries.
func (l *RecentEventLog) Tail(lastID uint64, max int) []Record {
	l.mu.Lock()
	next := l.nextID
	l.mu.Unlock()

	if max <= 0 || next == 0 {
		return nil
	}
	start := lastID + 1
	if start > next {
		return nil
	}

	out := make([]Record, 0, max)
	for id := start; id < next && len(out) < max; id++ {
		if rec, ok := l.cache.Get(id); ok {
			out = append(out, rec)
		}
	}
	return out
}
