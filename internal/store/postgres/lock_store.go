package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/store"
)

// LockStore implements store.LockStore using a sync_locks table. The claim is
// a single upsert whose WHERE clause only steals rows held by the same holder
// or already expired, so it is correct across multiple service instances.
type LockStore struct {
	pool *pgxpool.Pool
}

// NewLockStore creates a new PostgreSQL-backed lock store.
func NewLockStore(pool *pgxpool.Pool) *LockStore {
	return &LockStore{pool: pool}
}

// Acquire claims the tenant lock for the given holder.
func (s *LockStore) Acquire(ctx context.Context, tenantID uuid.UUID, holder string, ttl time.Duration) error {
	query := `
		INSERT INTO sync_locks (tenant_id, holder, acquired_at, expires_at)
		VALUES ($1, $2, NOW(), NOW() + $3 * INTERVAL '1 second')
		ON CONFLICT (tenant_id) DO UPDATE SET
			holder = EXCLUDED.holder,
			acquired_at = EXCLUDED.acquired_at,
			expires_at = EXCLUDED.expires_at
		WHERE sync_locks.holder = EXCLUDED.holder
		   OR sync_locks.expires_at < NOW()
	`

	result, err := s.pool.Exec(ctx, query, tenantID, holder, int64(ttl/time.Second))
	if err != nil {
		return fmt.Errorf("failed to acquire tenant lock: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrSyncInProgress
	}

	log.Debug().
		Str("tenant_id", tenantID.String()).
		Str("holder", holder).
		Msg("Acquired tenant lock")

	return nil
}

// Release drops the tenant lock if the holder owns it.
func (s *LockStore) Release(ctx context.Context, tenantID uuid.UUID, holder string) error {
	query := `DELETE FROM sync_locks WHERE tenant_id = $1 AND holder = $2`

	_, err := s.pool.Exec(ctx, query, tenantID, holder)
	if err != nil {
		return fmt.Errorf("failed to release tenant lock: %w", mapPostgresError(err))
	}
	return nil
}

// Held reports whether an unexpired lock exists for the tenant.
func (s *LockStore) Held(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var held bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM sync_locks
			WHERE tenant_id = $1 AND expires_at >= NOW()
		)
	`, tenantID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant lock: %w", mapPostgresError(err))
	}
	return held, nil
}
