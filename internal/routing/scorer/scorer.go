package scorer

import (
	"FlowVane/internal/model"
)

// StalePolicy decides how links without fresh stats enter a path's score.
type StalePolicy string

const (
	// StaleWorst treats a stale link as maximally congested, biasing traffic
	// away from it.
	StaleWorst StalePolicy = "worst"
	// StaleSkip leaves stale links out of the score; a path whose links are
	// all stale counts as unknown.
	StaleSkip StalePolicy = "skip"
)

// Weights are the relative contributions of utilization and queue depth to a
// path's congestion score. Calibration is an explicit configuration concern.
type Weights struct {
	Utilization float64
	QueueDepth  float64
	// MaxQueueDepth normalizes queue depth into [0,1].
	MaxQueueDepth int
}

// Options parameterize Select. Zero MaxQueueDepth disables the queue term.
type Options struct {
	Weights Weights
	Policy  StalePolicy
}

// Score computes the congestion score of one path under a snapshot: the sum
// over its links of w_util*utilization + w_queue*queueDepth/maxQueue. Lower
// is better. The second result is false when every constituent link was
// stale or unknown, i.e. the score carries no fresh information.
func Score(path model.Path, snap *model.Snapshot, opts Options) (float64, bool) {
	total := 0.0
	fresh := false
	for _, id := range path.Links {
		st, ok := snap.Get(id)
		if !ok || st.Stale {
			if opts.Policy == StaleWorst {
				total += opts.Weights.Utilization + opts.Weights.QueueDepth
			}
			continue
		}
		fresh = true
		total += opts.Weights.Utilization * st.Utilization
		if opts.Weights.QueueDepth > 0 && opts.Weights.MaxQueueDepth > 0 {
			q := float64(st.QueueDepth) / float64(opts.Weights.MaxQueueDepth)
			if q > 1 {
				q = 1
			}
			total += opts.Weights.QueueDepth * q
		}
	}
	return total, fresh
}

// Select deterministically ranks the candidate paths under the snapshot and
// returns the best one. Ties break to the lowest path index, so identical
// inputs always yield the identical choice. Under StaleSkip a path with no
// fresh link stats is unknown, not cheap: it is excluded from the ranking
// rather than winning with a zero score. The second result is false when no
// candidate could be ranked on fresh stats; the caller then applies its
// documented fallback (baseline hashing) instead of trusting the ranking.
// Select is a pure function of its inputs.
func Select(candidates []model.Path, snap *model.Snapshot, opts Options) (model.PathID, bool, error) {
	if len(candidates) == 0 {
		return 0, false, model.ErrNoPathAvailable
	}

	best := candidates[0].ID
	bestScore := 0.0
	ranked := false
	anyFresh := false
	for _, path := range candidates {
		score, fresh := Score(path, snap, opts)
		if opts.Policy == StaleSkip && !fresh {
			continue
		}
		anyFresh = anyFresh || fresh
		if !ranked || score < bestScore {
			best = path.ID
			bestScore = score
			ranked = true
		}
	}
	if !ranked {
		// Every candidate was unknown. Deterministic placeholder; the false
		// flag tells the caller to fall back.
		return candidates[0].ID, false, nil
	}
	return best, anyFresh, nil
}
