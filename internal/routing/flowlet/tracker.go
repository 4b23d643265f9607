package flowlet

import (
	"hash/fnv"
	"sync"
	"time"

	"FlowVane/internal/model"
)

const defaultShardCount = 256

type entry struct {
	lastSeen time.Time
	path     model.PathID
}

type shard struct {
	entries map[model.FlowKey]*entry
	mu      sync.Mutex
}

// Tracker maintains per-flow flowlet state in a sharded table. A flow idle
// longer than the timeout starts a new flowlet eligible for re-routing; the
// assigned path is immutable for the flowlet's duration, so packet order
// within a burst is preserved.
type Tracker struct {
	timeout    time.Duration
	grace      time.Duration
	shards     []*shard
	shardCount uint32
}

// NewTracker creates a tracker. Entries idle beyond timeout+grace become
// eligible for eviction by Sweep.
func NewTracker(timeout, grace time.Duration, numShards uint32) *Tracker {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	t := &Tracker{
		timeout:    timeout,
		grace:      grace,
		shards:     make([]*shard, numShards),
		shardCount: numShards,
	}
	for i := range t.shards {
		t.shards[i] = &shard{entries: make(map[model.FlowKey]*entry)}
	}
	return t
}

func (t *Tracker) getShard(key model.FlowKey) *shard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key.String()))
	return t.shards[hasher.Sum32()%t.shardCount]
}

// Route returns the path for this arrival. Within a live flowlet the stored
// assignment is refreshed and returned; at a flowlet boundary selectPath is
// invoked and its result recorded. The whole classify-then-assign step runs
// under the key's shard lock, so concurrent arrivals of one key can never
// both observe a boundary and record different paths. selectPath must not
// block on I/O.
func (t *Tracker) Route(key model.FlowKey, now time.Time, selectPath func() (model.PathID, error)) (model.PathID, bool, error) {
	s := t.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && now.Sub(e.lastSeen) < t.timeout {
		if now.After(e.lastSeen) {
			e.lastSeen = now
		}
		return e.path, false, nil
	}

	path, err := selectPath()
	if err != nil {
		return 0, true, err
	}
	s.entries[key] = &entry{lastSeen: now, path: path}
	return path, true, nil
}

// Lookup reports the current assignment for a key, if its flowlet is still
// live at now. For inspection; it does not refresh lastSeen.
func (t *Tracker) Lookup(key model.FlowKey, now time.Time) (model.PathID, bool) {
	s := t.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || now.Sub(e.lastSeen) >= t.timeout {
		return 0, false
	}
	return e.path, true
}

// Sweep evicts entries idle beyond timeout+grace and returns how many were
// removed. Expired entries are logically absent already; the sweep only
// bounds memory.
func (t *Tracker) Sweep(now time.Time) int {
	cutoff := t.timeout + t.grace
	removed := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if now.Sub(e.lastSeen) >= cutoff {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked entries, live or expired-but-unswept.
func (t *Tracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
