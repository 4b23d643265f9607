package factory

import (
	"fmt"

	"FlowVane/internal/config"
	"FlowVane/internal/model"
)

// Deps are the collaborators a strategy may draw on. Snapshot returns the
// monitor's latest published view; baseline strategies ignore it.
type Deps struct {
	Config   *config.Config
	Paths    model.PathProvider
	Snapshot func() *model.Snapshot
}

// StrategyFactory builds a routing strategy from its dependencies.
type StrategyFactory func(deps Deps) (model.Strategy, error)

// registry holds the mapping of strategy names to their factory functions.
var registry = make(map[string]StrategyFactory)

// RegisterStrategy registers a new strategy variant with its factory function.
func RegisterStrategy(name string, factory StrategyFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("strategy '%s' already registered", name))
	}
	registry[name] = factory
}

// Create builds the strategy named in the config.
func Create(name string, deps Deps) (model.Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: '%s'", name)
	}
	strategy, err := factory(deps)
	if err != nil {
		return nil, fmt.Errorf("error creating strategy '%s': %w", name, err)
	}
	return strategy, nil
}
