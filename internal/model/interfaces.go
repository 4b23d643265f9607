package model

import (
	"context"
	"errors"
	"time"
)

// ErrNoPathAvailable reports an empty candidate path set for an endpoint
// pair. It is fatal for that flow's routing decision only; callers decide
// whether to drop the flow, the process keeps running.
var ErrNoPathAvailable = errors.New("no candidate path for endpoint pair")

// ErrStatsUnavailable reports that a link's counters could not be read this
// cycle. The monitor recovers locally by retaining the last known value and
// incrementing the link's staleness counter.
var ErrStatsUnavailable = errors.New("link counters unavailable")

// StatsSource pulls current counters from the switches, once per monitor
// cycle. Links absent from the returned map are treated as unavailable for
// that cycle. Counters are cumulative.
type StatsSource interface {
	Counters(ctx context.Context) (map[LinkID]LinkCounters, error)
}

// Strategy picks a path for a flow at a point in time. Implementations form
// a closed set ({ecmp, adaptive}) behind this one contract.
type Strategy interface {
	Name() string
	Route(key FlowKey, pair EndpointPair, now time.Time) (PathID, error)
}

// PathProvider exposes the static candidate path set per endpoint pair.
type PathProvider interface {
	Paths(pair EndpointPair) []Path
}

// Installer programs the forwarding behavior realizing a decision. Installs
// must be idempotent: the engine may reselect the same path repeatedly.
type Installer interface {
	Install(ctx context.Context, pair EndpointPair, path Path) error
}

// Writer persists engine output. Payloads are []*PathDecision or
// []LinkSample; implementations type-switch on what they support.
type Writer interface {
	Write(payload interface{}, timestamp string) error
	GetInterval() time.Duration
}
