package installer

import (
	"context"
	"fmt"
	"log"
	"sync"

	"FlowVane/internal/model"
)

// LogInstaller records decisions without touching any switch. Useful for
// dry runs and experiments where forwarding is programmed out of band.
type LogInstaller struct{}

func (LogInstaller) Install(_ context.Context, pair model.EndpointPair, path model.Path) error {
	log.Printf("install: %s via %s (path %d)", pair, path.Via, path.ID)
	return nil
}

// Cached wraps an installer and suppresses repeat installs of an unchanged
// (pair, path) assignment, making the downstream collaborator's idempotence
// requirement cheap to honor. The engine may reselect the same path
// repeatedly; only changes reach the wrapped installer.
type Cached struct {
	inner model.Installer

	mu      sync.Mutex
	current map[model.EndpointPair]model.PathID
}

// NewCached wraps inner with install deduplication.
func NewCached(inner model.Installer) *Cached {
	return &Cached{inner: inner, current: make(map[model.EndpointPair]model.PathID)}
}

// Install forwards the decision only when it changes the pair's active path.
// A failed install is not recorded, so the next decision retries it.
func (c *Cached) Install(ctx context.Context, pair model.EndpointPair, path model.Path) error {
	c.mu.Lock()
	cur, known := c.current[pair]
	if known && cur == path.ID {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.inner.Install(ctx, pair, path); err != nil {
		return fmt.Errorf("install %s via %s: %w", pair, path.Via, err)
	}

	c.mu.Lock()
	c.current[pair] = path.ID
	c.mu.Unlock()
	return nil
}

// Installed reports the currently installed path for a pair.
func (c *Cached) Installed(pair model.EndpointPair) (model.PathID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.current[pair]
	return id, ok
}
