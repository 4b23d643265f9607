package adaptive

import (
	"time"

	"FlowVane/internal/factory"
	"FlowVane/internal/model"
	"FlowVane/internal/routing/flowlet"
	"FlowVane/internal/routing/impl/ecmp"
	"FlowVane/internal/routing/scorer"
)

func init() {
	factory.RegisterStrategy("adaptive", func(deps factory.Deps) (model.Strategy, error) {
		cfg := deps.Config
		timeout, err := cfg.FlowletTimeout()
		if err != nil {
			return nil, err
		}
		grace, err := cfg.FlowletGrace()
		if err != nil {
			return nil, err
		}
		return &Strategy{
			tracker:  flowlet.NewTracker(timeout, grace, cfg.Engine.NumShards),
			paths:    deps.Paths,
			snapshot: deps.Snapshot,
			opts: scorer.Options{
				Weights: scorer.Weights{
					Utilization:   cfg.Monitor.Weights.Utilization,
					QueueDepth:    cfg.Monitor.Weights.QueueDepth,
					MaxQueueDepth: cfg.Monitor.MaxQueueDepth,
				},
				Policy: scorer.StalePolicy(cfg.Monitor.StalePolicy),
			},
		}, nil
	})
}

// Strategy is the adaptive router: flowlet-boundary detection combined with
// congestion-aware path scoring over the monitor's latest snapshot. Within a
// flowlet the assignment never changes; at a boundary the least congested
// candidate wins. When no candidate has fresh stats the choice degrades to
// the baseline hash, so behavior under a dead monitor matches ecmp rather
// than becoming arbitrary.
type Strategy struct {
	tracker  *flowlet.Tracker
	paths    model.PathProvider
	snapshot func() *model.Snapshot
	opts     scorer.Options
}

func (s *Strategy) Name() string { return "adaptive" }

// Route implements model.Strategy.
func (s *Strategy) Route(key model.FlowKey, pair model.EndpointPair, now time.Time) (model.PathID, error) {
	path, _, err := s.RouteFlowlet(key, pair, now)
	return path, err
}

// RouteFlowlet routes like Route and additionally reports whether this
// arrival opened a new flowlet. The bool comes from the tracker's shard
// lock, so it is exact even when arrivals for one key race.
func (s *Strategy) RouteFlowlet(key model.FlowKey, pair model.EndpointPair, now time.Time) (model.PathID, bool, error) {
	candidates := s.paths.Paths(pair)
	if len(candidates) == 0 {
		return 0, false, model.ErrNoPathAvailable
	}

	return s.tracker.Route(key, now, func() (model.PathID, error) {
		snap := s.snapshot()
		best, fresh, err := scorer.Select(candidates, snap, s.opts)
		if err != nil {
			return 0, err
		}
		if !fresh {
			return candidates[ecmp.PathIndex(key, len(candidates))].ID, nil
		}
		return best, nil
	})
}

// Sweep evicts tracker entries idle beyond timeout+grace; the engine calls
// it on its sweep ticker.
func (s *Strategy) Sweep(now time.Time) int {
	return s.tracker.Sweep(now)
}

// FlowCount returns the number of tracked flowlet entries.
func (s *Strategy) FlowCount() int {
	return s.tracker.Len()
}
