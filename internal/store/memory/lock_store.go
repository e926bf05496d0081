package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stafflink/dirsync/internal/store"
)

type lockEntry struct {
	holder    string
	expiresAt time.Time
}

// LockStore implements store.LockStore using in-memory storage. Suitable for
// a single-process deployment; multi-instance deployments use the Postgres
// lock table.
type LockStore struct {
	mu    sync.Mutex
	locks map[uuid.UUID]lockEntry
}

// NewLockStore creates a new in-memory lock store.
func NewLockStore() *LockStore {
	return &LockStore{
		locks: make(map[uuid.UUID]lockEntry),
	}
}

// Acquire claims the tenant lock for the given holder.
func (s *LockStore) Acquire(ctx context.Context, tenantID uuid.UUID, holder string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if entry, ok := s.locks[tenantID]; ok {
		if entry.holder != holder && entry.expiresAt.After(now) {
			return store.ErrSyncInProgress
		}
	}

	s.locks[tenantID] = lockEntry{holder: holder, expiresAt: now.Add(ttl)}
	return nil
}

// Release drops the tenant lock if the holder owns it.
func (s *LockStore) Release(ctx context.Context, tenantID uuid.UUID, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.locks[tenantID]; ok && entry.holder == holder {
		delete(s.locks, tenantID)
	}
	return nil
}

// Held reports whether an unexpired lock exists for the tenant.
func (s *LockStore) Held(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[tenantID]
	return ok && entry.expiresAt.After(time.Now()), nil
}
