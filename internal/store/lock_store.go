package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSyncInProgress is returned when acquiring a tenant lock that another
// holder currently owns.
var ErrSyncInProgress = errors.New("sync already in progress for tenant")

// LockStore provides per-tenant mutual exclusion for sync runs. Locks carry a
// TTL so a lock left behind by a crashed process expires and becomes
// claimable instead of wedging the tenant.
type LockStore interface {
	// Acquire claims the tenant lock for the given holder. A lock held by
	// another holder and not yet expired yields ErrSyncInProgress. Acquiring
	// a lock the same holder already owns refreshes its expiry.
	Acquire(ctx context.Context, tenantID uuid.UUID, holder string, ttl time.Duration) error

	// Release drops the tenant lock if the holder owns it. Releasing a lock
	// owned by someone else (or no one) is a no-op.
	Release(ctx context.Context, tenantID uuid.UUID, holder string) error

	// Held reports whether an unexpired lock exists for the tenant.
	Held(ctx context.Context, tenantID uuid.UUID) (bool, error)
}
