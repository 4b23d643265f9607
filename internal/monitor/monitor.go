package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"FlowVane/internal/model"
)

// Monitor periodically samples per-link counters from a stats source,
// smooths a utilization estimate per link, and publishes an immutable
// snapshot for routing decisions. Only the monitor's own loop mutates the
// working stats; readers see whole snapshots or nothing.
type Monitor struct {
	source     model.StatsSource
	interval   time.Duration
	alpha      float64
	staleAfter int

	capacities map[model.LinkID]float64
	stats      map[model.LinkID]model.LinkStats
	prev       map[model.LinkID]model.LinkCounters
	lastSample time.Time

	snap atomic.Pointer[model.Snapshot]
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a monitor over a fixed link set. Every link gets a LinkStats
// entry at start; entries are overwritten each cycle and never deleted
// mid-run.
func New(source model.StatsSource, links []model.Link, interval time.Duration, alpha float64, staleAfter int) *Monitor {
	m := &Monitor{
		source:     source,
		interval:   interval,
		alpha:      alpha,
		staleAfter: staleAfter,
		capacities: make(map[model.LinkID]float64, len(links)),
		stats:      make(map[model.LinkID]model.LinkStats, len(links)),
		prev:       make(map[model.LinkID]model.LinkCounters, len(links)),
		done:       make(chan struct{}),
	}
	for _, link := range links {
		m.capacities[link.ID] = link.CapacityBps
		m.stats[link.ID] = model.LinkStats{}
	}
	m.publish(time.Time{})
	return m
}

// Start launches the probe loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
	log.Printf("Link state monitor started with interval %s over %d links.", m.interval, len(m.stats))
}

// Stop terminates the probe loop. The last published snapshot stays
// available to in-flight readers.
func (m *Monitor) Stop() {
	close(m.done)
	m.wg.Wait()
	log.Println("Link state monitor stopped.")
}

func (m *Monitor) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(time.Now())
		case <-m.done:
			return
		}
	}
}

// Refresh performs one probe cycle: pull counters, fold them into the
// per-link estimates, and publish a new snapshot. Exported so callers with
// their own scheduling (and tests) can drive cycles directly.
func (m *Monitor) Refresh(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	counters, err := m.source.Counters(ctx)
	cancel()
	if err != nil {
		log.Printf("Stats source failed this cycle, retaining previous link state: %v", err)
		counters = nil
	}

	elapsed := now.Sub(m.lastSample)
	first := m.lastSample.IsZero()
	m.lastSample = now

	for id, st := range m.stats {
		c, ok := counters[id]
		if !ok {
			st.MissedCycles++
			st.Stale = st.MissedCycles >= m.staleAfter
			m.stats[id] = st
			continue
		}

		if prev, seen := m.prev[id]; seen && !first && elapsed > 0 {
			delta := counterDelta(c.TxBytes, prev.TxBytes)
			inst := float64(delta*8) / (elapsed.Seconds() * m.capacities[id])
			if inst > 1 {
				inst = 1
			}
			st.Utilization = m.alpha*inst + (1-m.alpha)*st.Utilization
		}
		st.DropCount = c.TxDrops + c.RxDrops
		st.QueueDepth = c.QueueDepth
		st.LastUpdated = now
		st.MissedCycles = 0
		st.Stale = false
		m.stats[id] = st
		m.prev[id] = c
	}

	m.publish(now)
}

// counterDelta handles counter resets (switch restart) by treating a
// backwards step as zero traffic.
func counterDelta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

// publish swaps in a fresh immutable snapshot. Readers in flight keep the
// snapshot they already loaded.
func (m *Monitor) publish(now time.Time) {
	stats := make(map[model.LinkID]model.LinkStats, len(m.stats))
	for id, st := range m.stats {
		stats[id] = st
	}
	m.snap.Store(&model.Snapshot{Taken: now, Stats: stats})
}

// Snapshot returns the most recently published snapshot. O(1) and safe to
// call concurrently with Refresh.
func (m *Monitor) Snapshot() *model.Snapshot {
	return m.snap.Load()
}
