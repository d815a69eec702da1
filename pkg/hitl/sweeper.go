package hitl

import (
	"context"
	"time"

	"github.com/auralabs/aura/pkg/logging"
)

// Sweeper periodically runs the store cleanup so stale pending operations
// get flipped to expired even when nobody is reading them, and resolved
// operations do not accumulate forever.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *logging.Logger
}

// NewSweeper creates a sweeper. Interval <= 0 defaults to five minutes.
func NewSweeper(store *Store, interval time.Duration, logger *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.store.CleanupExpired(0)
			if removed > 0 {
				s.logger.Info(logging.CategoryHITL, "cleanup", "removed stale operations", map[string]any{
					"removed": removed,
				})
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
