package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/model"
	"FlowVane/internal/monitor"
	"FlowVane/internal/topology"
)

// flowletRouter is implemented by strategies that track flowlets. It routes
// like model.Strategy.Route and additionally reports whether the arrival
// opened a new flowlet, decided under the same lock as the assignment.
type flowletRouter interface {
	RouteFlowlet(key model.FlowKey, pair model.EndpointPair, now time.Time) (model.PathID, bool, error)
}

// sweeper is implemented by strategies that keep per-flow state and need
// periodic eviction of idle entries.
type sweeper interface {
	Sweep(now time.Time) int
}

// flowCounter is implemented by strategies that can report how many flowlet
// entries they currently track.
type flowCounter interface {
	FlowCount() int
}

// Engine drives the routing pipeline: flow events come in on the input
// channel, workers map them onto leaf pairs and route them through the
// configured strategy, and the resulting decisions are installed, published,
// and buffered for the writers.
type Engine struct {
	cfg       *config.Config
	fabric    *topology.Fabric
	strategy  model.Strategy
	monitor   *monitor.Monitor
	installer model.Installer

	// onDecision, when set, sees every decision as it is made. The NATS
	// publisher hangs off this hook.
	onDecision func(*model.PathDecision)

	eventChannel chan *model.FlowEvent
	numWorkers   int
	workerWg     sync.WaitGroup

	writers     []writerState
	writerWg    sync.WaitGroup
	sweepPeriod time.Duration
	sweeperWg   sync.WaitGroup
	done        chan struct{}

	mu      sync.Mutex
	routed  uint64
	skipped uint64
	errors  uint64
}

// writerState pairs a writer with its private decision buffer so writers on
// different intervals never contend over one queue.
type writerState struct {
	writer model.Writer

	mu      *sync.Mutex
	pending *[]*model.PathDecision
}

// New assembles an engine. The strategy must already be built (via the
// factory) against the same fabric and monitor snapshot.
func New(cfg *config.Config, fabric *topology.Fabric, strategy model.Strategy, mon *monitor.Monitor, inst model.Installer, writers []model.Writer) (*Engine, error) {
	sweep, err := cfg.SweepInterval()
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	e := &Engine{
		cfg:          cfg,
		fabric:       fabric,
		strategy:     strategy,
		monitor:      mon,
		installer:    inst,
		eventChannel: make(chan *model.FlowEvent, cfg.Engine.SizeOfEventChannel),
		numWorkers:   cfg.Engine.NumWorkers,
		sweepPeriod:  sweep,
		done:         make(chan struct{}),
	}
	for _, w := range writers {
		e.writers = append(e.writers, writerState{writer: w, mu: &sync.Mutex{}, pending: &[]*model.PathDecision{}})
	}
	return e, nil
}

// OnDecision registers a hook invoked synchronously from the routing workers
// for every decision. Must be called before Start.
func (e *Engine) OnDecision(fn func(*model.PathDecision)) {
	e.onDecision = fn
}

// InputChannel is where flow events are submitted for routing.
func (e *Engine) InputChannel() chan<- *model.FlowEvent {
	return e.eventChannel
}

// Start launches the monitor, the routing workers, the per-writer flush
// loops, and the flowlet sweeper.
func (e *Engine) Start() {
	if e.monitor != nil {
		e.monitor.Start()
	}

	for _, ws := range e.writers {
		e.writerWg.Add(1)
		go e.runFlusher(ws)
		log.Printf("Started decision flusher with interval %s.", ws.writer.GetInterval())
	}

	if _, ok := e.strategy.(sweeper); ok {
		e.sweeperWg.Add(1)
		go e.runSweeper()
		log.Printf("Started flowlet sweeper with period %s.", e.sweepPeriod)
	}

	e.workerWg.Add(e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker()
	}
	log.Printf("Engine started with %d workers, strategy %q.", e.numWorkers, e.strategy.Name())
}

// Stop drains the pipeline in order: stop accepting events, let workers
// finish the backlog, stop the background loops, then flush once more so no
// buffered decisions are lost.
func (e *Engine) Stop() {
	log.Println("Engine stopping...")
	close(e.eventChannel)
	e.workerWg.Wait()

	close(e.done)
	e.sweeperWg.Wait()
	e.writerWg.Wait()

	if e.monitor != nil {
		e.monitor.Stop()
	}
	routed, skipped, errs := e.Counters()
	log.Printf("Engine stopped: %d routed, %d skipped, %d errors.", routed, skipped, errs)
}

// Counters reports how many events were routed, skipped as intra-leaf, or
// failed.
func (e *Engine) Counters() (routed, skipped, errs uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.routed, e.skipped, e.errors
}

// FlowCount reports the strategy's tracked flowlet entries, 0 for stateless
// strategies.
func (e *Engine) FlowCount() int {
	if fc, ok := e.strategy.(flowCounter); ok {
		return fc.FlowCount()
	}
	return 0
}

func (e *Engine) worker() {
	defer e.workerWg.Done()
	for ev := range e.eventChannel {
		e.handle(ev)
	}
}

func (e *Engine) handle(ev *model.FlowEvent) {
	pair, err := e.fabric.PairForFlow(ev.FlowKey)
	if err != nil {
		e.count(&e.errors)
		log.Printf("Dropping event for %s: %v", ev.FlowKey, err)
		return
	}
	if pair.SrcLeaf == pair.DstLeaf {
		// Intra-leaf traffic never crosses the spine layer.
		e.count(&e.skipped)
		return
	}

	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	var (
		pathID     model.PathID
		newFlowlet bool
	)
	if fr, ok := e.strategy.(flowletRouter); ok {
		pathID, newFlowlet, err = fr.RouteFlowlet(ev.FlowKey, pair, now)
	} else {
		pathID, err = e.strategy.Route(ev.FlowKey, pair, now)
	}
	if err != nil {
		e.count(&e.errors)
		log.Printf("Routing %s failed: %v", ev.FlowKey, err)
		return
	}

	path, ok := e.pathByID(pair, pathID)
	if !ok {
		e.count(&e.errors)
		log.Printf("Strategy %q returned unknown path %d for %s", e.strategy.Name(), pathID, pair)
		return
	}

	if e.installer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := e.installer.Install(ctx, pair, path)
		cancel()
		if err != nil {
			e.count(&e.errors)
			log.Printf("Install for %s failed: %v", pair, err)
			return
		}
	}

	dec := &model.PathDecision{
		Timestamp:  now,
		FlowKey:    ev.FlowKey,
		Pair:       pair,
		Path:       path.ID,
		Via:        path.Via,
		Strategy:   e.strategy.Name(),
		NewFlowlet: newFlowlet,
	}
	e.count(&e.routed)

	for _, ws := range e.writers {
		ws.mu.Lock()
		*ws.pending = append(*ws.pending, dec)
		ws.mu.Unlock()
	}
	if e.onDecision != nil {
		e.onDecision(dec)
	}
}

func (e *Engine) pathByID(pair model.EndpointPair, id model.PathID) (model.Path, bool) {
	for _, p := range e.fabric.Paths(pair) {
		if p.ID == id {
			return p, true
		}
	}
	return model.Path{}, false
}

func (e *Engine) count(c *uint64) {
	e.mu.Lock()
	*c++
	e.mu.Unlock()
}

// runFlusher periodically hands the writer its buffered decisions plus a
// sample of the current link stats. A final flush runs on shutdown.
func (e *Engine) runFlusher(ws writerState) {
	defer e.writerWg.Done()
	interval := ws.writer.GetInterval()
	if interval <= 0 {
		log.Printf("Invalid interval %s for writer, flusher will not run.", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flush(ws)
		case <-e.done:
			e.flush(ws)
			return
		}
	}
}

func (e *Engine) flush(ws writerState) {
	ws.mu.Lock()
	decisions := *ws.pending
	*ws.pending = nil
	ws.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	if len(decisions) > 0 {
		if err := ws.writer.Write(decisions, timestamp); err != nil {
			log.Printf("Error writing %d decisions: %v", len(decisions), err)
		}
	}

	if e.monitor == nil {
		return
	}
	snap := e.monitor.Snapshot()
	if snap == nil || len(snap.Stats) == 0 {
		return
	}
	samples := make([]model.LinkSample, 0, len(snap.Stats))
	for id, st := range snap.Stats {
		samples = append(samples, model.LinkSample{
			Timestamp:   snap.Taken,
			Link:        id,
			Utilization: st.Utilization,
			DropCount:   st.DropCount,
			QueueDepth:  st.QueueDepth,
			Stale:       st.Stale,
		})
	}
	if err := ws.writer.Write(samples, timestamp); err != nil {
		log.Printf("Error writing %d link samples: %v", len(samples), err)
	}
}

func (e *Engine) runSweeper() {
	defer e.sweeperWg.Done()
	sw := e.strategy.(sweeper)
	ticker := time.NewTicker(e.sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := sw.Sweep(time.Now()); n > 0 {
				log.Printf("Swept %d idle flowlet entries.", n)
			}
		case <-e.done:
			return
		}
	}
}
