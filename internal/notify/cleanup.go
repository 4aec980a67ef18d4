package notify

import (
	"context"
	"log"
	"time"

	"babylog-backend/internal/store"
)

// FailureThreshold is the failure count at which a subscription is pruned.
const FailureThreshold = 5

// DefaultRetentionDays is the audit log retention window applied when the
// configuration does not set one.
const DefaultRetentionDays = 30

// Cleanup prunes dead subscriptions and expired audit rows. Both sweeps are
// independent and safe to run concurrently with a notification cycle.
type Cleanup struct {
	store     store.Store
	retention time.Duration
	now       func() time.Time
}

// NewCleanup creates a cleanup with the given log retention in days.
func NewCleanup(s store.Store, retentionDays int) *Cleanup {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Cleanup{
		store:     s,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Run executes both sweeps and returns the rows deleted by each. A failed
// sweep is logged and reported as zero; cleanup never fails its caller.
func (c *Cleanup) Run(ctx context.Context) (subscriptions, logs int64) {
	subscriptions, err := c.store.DeleteFailedSubscriptions(ctx, FailureThreshold)
	if err != nil {
		log.Printf("subscription cleanup failed: %v", err)
		subscriptions = 0
	}

	logs, err = c.store.DeleteLogsBefore(ctx, c.now().Add(-c.retention))
	if err != nil {
		log.Printf("notification log cleanup failed: %v", err)
		logs = 0
	}

	return subscriptions, logs
}
