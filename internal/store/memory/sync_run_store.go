package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// SyncRunStore implements store.SyncRunStore using in-memory storage.
type SyncRunStore struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*models.SyncRun
	errors map[uuid.UUID][]*models.SyncError // run ID -> errors in record order
}

// NewSyncRunStore creates a new in-memory sync run store.
func NewSyncRunStore() *SyncRunStore {
	return &SyncRunStore{
		runs:   make(map[uuid.UUID]*models.SyncRun),
		errors: make(map[uuid.UUID][]*models.SyncError),
	}
}

// CreateRun persists a new run in RUNNING state.
func (s *SyncRunStore) CreateRun(ctx context.Context, run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := run.Clone()
	if clone.RunID == uuid.Nil {
		clone.RunID = uuid.Must(uuid.NewV7())
	}
	if clone.StartedAt.IsZero() {
		clone.StartedAt = time.Now()
	}
	clone.Status = models.RunRunning
	s.runs[clone.RunID] = clone

	run.RunID = clone.RunID
	run.StartedAt = clone.StartedAt
	run.Status = clone.Status
	return nil
}

// CompleteRun moves a RUNNING run to COMPLETED.
func (s *SyncRunStore) CompleteRun(ctx context.Context, runID uuid.UUID, counters models.SyncCounters, notes string) error {
	return s.finalize(runID, models.RunCompleted, counters, notes)
}

// FailRun moves a RUNNING run to FAILED.
func (s *SyncRunStore) FailRun(ctx context.Context, runID uuid.UUID, reason string) error {
	s.mu.RLock()
	run, ok := s.runs[runID]
	var counters models.SyncCounters
	if ok {
		counters = run.Counters
	}
	s.mu.RUnlock()
	if !ok {
		return store.ErrRunNotFound
	}
	return s.finalize(runID, models.RunFailed, counters, reason)
}

func (s *SyncRunStore) finalize(runID uuid.UUID, status models.RunStatus, counters models.SyncCounters, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return store.ErrRunNotFound
	}
	if run.Status != models.RunRunning {
		return store.ErrRunFinalized
	}

	now := time.Now()
	run.Status = status
	run.CompletedAt = &now
	run.Counters = counters
	run.Notes = notes
	return nil
}

// RecordError appends a per-record error to a run.
func (s *SyncRunStore) RecordError(ctx context.Context, syncErr *models.SyncError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[syncErr.RunID]; !ok {
		return store.ErrRunNotFound
	}

	clone := *syncErr
	if clone.ErrorID == uuid.Nil {
		clone.ErrorID = uuid.Must(uuid.NewV7())
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	s.errors[clone.RunID] = append(s.errors[clone.RunID], &clone)
	return nil
}

// GetRun retrieves a run by ID.
func (s *SyncRunStore) GetRun(ctx context.Context, runID uuid.UUID) (*models.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	return run.Clone(), nil
}

// LatestRun returns the most recently started run for a tenant.
func (s *SyncRunStore) LatestRun(ctx context.Context, tenantID uuid.UUID) (*models.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.SyncRun
	for _, run := range s.runs {
		if run.TenantID != tenantID {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, store.ErrRunNotFound
	}
	return latest.Clone(), nil
}

// ListRuns returns up to limit runs for a tenant, most recent first.
func (s *SyncRunStore) ListRuns(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*models.SyncRun
	for _, run := range s.runs {
		if run.TenantID == tenantID {
			runs = append(runs, run.Clone())
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListErrors returns the per-record errors captured during a run.
func (s *SyncRunStore) ListErrors(ctx context.Context, runID uuid.UUID) ([]*models.SyncError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	errs := s.errors[runID]
	out := make([]*models.SyncError, 0, len(errs))
	for _, e := range errs {
		clone := *e
		out = append(out, &clone)
	}
	return out, nil
}
