package model

import (
	"fmt"
	"time"
)

// FlowKey is the identity of a transport flow. It is immutable once observed
// and uniquely identifies flowlet state.
type FlowKey struct {
	SrcIP    string `json:"src_ip"`
	DstIP    string `json:"dst_ip"`
	SrcPort  uint16 `json:"src_port"`
	DstPort  uint16 `json:"dst_port"`
	Protocol uint8  `json:"protocol"`
}

// String renders the key in a stable form, suitable for sharding and hashing.
func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%d", k.SrcIP, k.SrcPort, k.DstIP, k.DstPort, k.Protocol)
}

// FlowEvent is a single "packet/flow seen" observation signaled by the
// external traffic source.
type FlowEvent struct {
	Timestamp time.Time `json:"timestamp"`
	FlowKey   FlowKey   `json:"flow_key"`
	Length    int       `json:"length"`
}

// LinkID identifies a directed link, e.g. "leaf1->spine2". The set of links
// is fixed for the lifetime of a run.
type LinkID string

// Link describes one directed link of the fabric.
type Link struct {
	ID          LinkID
	From        string
	To          string
	CapacityBps float64
}

// EndpointPair is an ordered (source leaf, destination leaf) pair.
type EndpointPair struct {
	SrcLeaf string `json:"src_leaf"`
	DstLeaf string `json:"dst_leaf"`
}

func (p EndpointPair) String() string {
	return p.SrcLeaf + "->" + p.DstLeaf
}

// PathID is the index of a path within an endpoint pair's candidate set.
// The candidate sets are static; only their ranking is dynamic.
type PathID int

// Path is an ordered sequence of links connecting an endpoint pair.
type Path struct {
	ID    PathID
	Via   string // spine carrying this path
	Links []LinkID
}

// LinkCounters are cumulative counters for one link as reported by the stats
// source. Totals are since switch boot; consumers differentiate between
// consecutive samples.
type LinkCounters struct {
	TxBytes    uint64
	RxBytes    uint64
	TxPackets  uint64
	RxPackets  uint64
	TxDrops    uint64
	RxDrops    uint64
	QueueDepth int
}

// LinkStats is the monitor's smoothed view of one link. One entry per LinkID,
// created at monitor start and overwritten every probe cycle, never deleted
// mid-run.
type LinkStats struct {
	Utilization  float64   `json:"utilization"` // EWMA estimate in [0,1]
	DropCount    uint64    `json:"drop_count"`
	QueueDepth   int       `json:"queue_depth"`
	LastUpdated  time.Time `json:"last_updated"`
	MissedCycles int       `json:"missed_cycles"`
	Stale        bool      `json:"stale"`
}

// Snapshot is an immutable view of all link stats published by the monitor.
// It must never be mutated after publication.
type Snapshot struct {
	Taken time.Time            `json:"taken"`
	Stats map[LinkID]LinkStats `json:"stats"`
}

// Get returns the stats for a link, if the snapshot carries them.
func (s *Snapshot) Get(id LinkID) (LinkStats, bool) {
	if s == nil {
		return LinkStats{}, false
	}
	st, ok := s.Stats[id]
	return st, ok
}

// PathDecision records one routing decision made by a strategy.
type PathDecision struct {
	Timestamp  time.Time    `json:"timestamp"`
	FlowKey    FlowKey      `json:"flow_key"`
	Pair       EndpointPair `json:"pair"`
	Path       PathID       `json:"path"`
	Via        string       `json:"via"`
	Strategy   string       `json:"strategy"`
	NewFlowlet bool         `json:"new_flowlet"`
}

// LinkSample is one persisted observation of a link's state, derived from a
// monitor snapshot.
type LinkSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Link        LinkID    `json:"link"`
	Utilization float64   `json:"utilization"`
	DropCount   uint64    `json:"drop_count"`
	QueueDepth  int       `json:"queue_depth"`
	Stale       bool      `json:"stale"`
}
