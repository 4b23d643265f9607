package ecmp

import (
	"hash/fnv"
	"time"

	"FlowVane/internal/factory"
	"FlowVane/internal/model"
)

func init() {
	factory.RegisterStrategy("ecmp", func(deps factory.Deps) (model.Strategy, error) {
		return &Strategy{paths: deps.Paths}, nil
	})
}

// Strategy is the baseline equal-cost multi-path router: a deterministic
// hash of the flow identity modulo the candidate count. It is stateless and
// needs no monitoring, which makes it the comparison baseline for the
// adaptive strategy and the fallback when congestion state is unusable.
type Strategy struct {
	paths model.PathProvider
}

func (s *Strategy) Name() string { return "ecmp" }

// Route implements model.Strategy. Same flow, same path, always.
func (s *Strategy) Route(key model.FlowKey, pair model.EndpointPair, _ time.Time) (model.PathID, error) {
	candidates := s.paths.Paths(pair)
	if len(candidates) == 0 {
		return 0, model.ErrNoPathAvailable
	}
	return candidates[PathIndex(key, len(candidates))].ID, nil
}

// PathIndex hashes a flow key onto one of n path slots. fnv-1a over the
// canonical key string keeps the mapping reproducible across runs and
// processes.
func PathIndex(key model.FlowKey, n int) int {
	hasher := fnv.New64a()
	hasher.Write([]byte(key.String()))
	return int(hasher.Sum64() % uint64(n))
}
