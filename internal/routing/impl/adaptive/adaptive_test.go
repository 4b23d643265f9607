package adaptive

import (
	"fmt"
	"testing"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/factory"
	"FlowVane/internal/model"
	"FlowVane/internal/routing/flowlet"
	"FlowVane/internal/routing/impl/ecmp"
	"FlowVane/internal/routing/scorer"
)

type staticPaths struct {
	sets map[model.EndpointPair][]model.Path
}

func (s *staticPaths) Paths(pair model.EndpointPair) []model.Path {
	return s.sets[pair]
}

func testFabric() (*staticPaths, model.EndpointPair) {
	pair := model.EndpointPair{SrcLeaf: "leaf1", DstLeaf: "leaf2"}
	paths := make([]model.Path, 4)
	for i := range paths {
		spine := fmt.Sprintf("spine%d", i+1)
		paths[i] = model.Path{
			ID:  model.PathID(i),
			Via: spine,
			Links: []model.LinkID{
				model.LinkID("leaf1->" + spine),
				model.LinkID(spine + "->leaf2"),
			},
		}
	}
	return &staticPaths{sets: map[model.EndpointPair][]model.Path{pair: paths}}, pair
}

func skewedSnapshot(paths []model.Path, hot model.PathID) *model.Snapshot {
	stats := make(map[model.LinkID]model.LinkStats)
	for _, p := range paths {
		u := 0.05
		if p.ID == hot {
			u = 0.95
		}
		for _, l := range p.Links {
			stats[l] = model.LinkStats{Utilization: u, LastUpdated: time.Now()}
		}
	}
	return &model.Snapshot{Taken: time.Now(), Stats: stats}
}

func staleSnapshot(paths []model.Path) *model.Snapshot {
	stats := make(map[model.LinkID]model.LinkStats)
	for _, p := range paths {
		for _, l := range p.Links {
			stats[l] = model.LinkStats{Stale: true}
		}
	}
	return &model.Snapshot{Taken: time.Now(), Stats: stats}
}

func newStrategy(provider model.PathProvider, snap func() *model.Snapshot) *Strategy {
	return &Strategy{
		tracker:  flowlet.NewTracker(50*time.Millisecond, 100*time.Millisecond, 16),
		paths:    provider,
		snapshot: snap,
		opts: scorer.Options{
			Weights: scorer.Weights{Utilization: 1.0, QueueDepth: 0.5, MaxQueueDepth: 1000},
			Policy:  scorer.StaleWorst,
		},
	}
}

func TestStrategy_AvoidsCongestedPath(t *testing.T) {
	provider, pair := testFabric()
	paths := provider.Paths(pair)

	// Path 1 driven hot: no new flowlet may land on it.
	snap := skewedSnapshot(paths, 1)
	s := newStrategy(provider, func() *model.Snapshot { return snap })

	now := time.Now()
	for i := 0; i < 200; i++ {
		key := model.FlowKey{SrcIP: "10.0.1.1", DstIP: "10.0.2.1", SrcPort: uint16(i), DstPort: 5001, Protocol: 6}
		got, err := s.Route(key, pair, now)
		if err != nil {
			t.Fatal(err)
		}
		if got == 1 {
			t.Fatalf("flow %d landed on the congested path", i)
		}
	}
}

func TestStrategy_FlowletStabilityAcrossSnapshotChanges(t *testing.T) {
	provider, pair := testFabric()
	paths := provider.Paths(pair)

	current := skewedSnapshot(paths, 0)
	s := newStrategy(provider, func() *model.Snapshot { return current })

	key := model.FlowKey{SrcIP: "10.0.1.1", DstIP: "10.0.2.1", SrcPort: 40001, DstPort: 5001, Protocol: 6}
	base := time.Now()

	first, err := s.Route(key, pair, base)
	if err != nil {
		t.Fatal(err)
	}

	// Congestion flips mid-flowlet; the assignment must not move.
	current = skewedSnapshot(paths, first)
	for _, gap := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond} {
		got, err := s.Route(key, pair, base.Add(gap))
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Fatalf("path moved from %d to %d inside a flowlet", first, got)
		}
	}

	// After the idle gap the flow may (and here, must) escape the now-hot path.
	got, err := s.Route(key, pair, base.Add(30*time.Millisecond+120*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if got == first {
		t.Errorf("new flowlet stayed on the congested path %d", first)
	}
}

func TestStrategy_AllStaleFallsBackToHash(t *testing.T) {
	provider, pair := testFabric()
	paths := provider.Paths(pair)

	snap := staleSnapshot(paths)
	s := newStrategy(provider, func() *model.Snapshot { return snap })

	now := time.Now()
	for i := 0; i < 50; i++ {
		key := model.FlowKey{SrcIP: "10.0.1.2", DstIP: "10.0.2.2", SrcPort: uint16(50000 + i), DstPort: 5001, Protocol: 6}
		got, err := s.Route(key, pair, now)
		if err != nil {
			t.Fatal(err)
		}
		want := paths[ecmp.PathIndex(key, len(paths))].ID
		if got != want {
			t.Fatalf("flow %d: stale fallback chose %d, baseline hash says %d", i, got, want)
		}
	}
}

func TestStrategy_NoPath(t *testing.T) {
	provider, _ := testFabric()
	s := newStrategy(provider, func() *model.Snapshot { return &model.Snapshot{} })

	key := model.FlowKey{SrcIP: "10.0.1.1", DstIP: "10.0.9.1"}
	_, err := s.Route(key, model.EndpointPair{SrcLeaf: "leaf1", DstLeaf: "leaf9"}, time.Now())
	if err != model.ErrNoPathAvailable {
		t.Fatalf("expected ErrNoPathAvailable, got %v", err)
	}
	if s.FlowCount() != 0 {
		t.Errorf("failed routing left %d tracker entries", s.FlowCount())
	}
}

func TestStrategy_SweepEvictsIdleFlows(t *testing.T) {
	provider, pair := testFabric()
	snap := skewedSnapshot(provider.Paths(pair), 0)
	s := newStrategy(provider, func() *model.Snapshot { return snap })

	base := time.Now()
	for i := 0; i < 100; i++ {
		key := model.FlowKey{SrcIP: "10.0.1.1", DstIP: "10.0.2.1", SrcPort: uint16(i), DstPort: 5001, Protocol: 6}
		if _, err := s.Route(key, pair, base); err != nil {
			t.Fatal(err)
		}
	}
	if s.FlowCount() != 100 {
		t.Fatalf("expected 100 tracked flows, got %d", s.FlowCount())
	}
	if removed := s.Sweep(base.Add(200 * time.Millisecond)); removed != 100 {
		t.Errorf("sweep removed %d, want 100", removed)
	}
}

func TestFactory_BuildsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.FlowletTimeout = "50ms"
	cfg.Engine.FlowletGrace = "100ms"
	cfg.Monitor.Weights = config.WeightsConfig{Utilization: 1.0, QueueDepth: 0.5}
	cfg.Monitor.MaxQueueDepth = 1000
	cfg.Monitor.StalePolicy = "worst"

	provider, pair := testFabric()
	s, err := factory.Create("adaptive", factory.Deps{
		Config:   cfg,
		Paths:    provider,
		Snapshot: func() *model.Snapshot { return &model.Snapshot{} },
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "adaptive" {
		t.Errorf("unexpected strategy name %q", s.Name())
	}
	if _, err := s.Route(model.FlowKey{SrcIP: "10.0.1.1", DstIP: "10.0.2.1"}, pair, time.Now()); err != nil {
		t.Fatal(err)
	}
}
