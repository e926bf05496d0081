package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stafflink/dirsync/internal/models"
)

// Sentinel errors for sync run store operations
var (
	ErrRunNotFound = errors.New("sync run not found")
	// ErrRunFinalized is returned when completing or failing a run that has
	// already reached a terminal status. Terminal status is set exactly once.
	ErrRunFinalized = errors.New("sync run already finalized")
)

// SyncRunStore defines the interface for sync run and sync error audit
// records.
type SyncRunStore interface {
	// CreateRun persists a new run in RUNNING state.
	CreateRun(ctx context.Context, run *models.SyncRun) error

	// CompleteRun moves a RUNNING run to COMPLETED with its counters and
	// notes. Returns ErrRunNotFound if the run doesn't exist and
	// ErrRunFinalized if it is no longer RUNNING.
	CompleteRun(ctx context.Context, runID uuid.UUID, counters models.SyncCounters, notes string) error

	// FailRun moves a RUNNING run to FAILED with the failure reason.
	// Returns ErrRunNotFound if the run doesn't exist and ErrRunFinalized if
	// it is no longer RUNNING.
	FailRun(ctx context.Context, runID uuid.UUID, reason string) error

	// RecordError appends a per-record error to a run. It never changes the
	// run's status.
	RecordError(ctx context.Context, syncErr *models.SyncError) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID uuid.UUID) (*models.SyncRun, error)

	// LatestRun returns the most recently started run for a tenant.
	// Returns ErrRunNotFound if the tenant has never synced.
	LatestRun(ctx context.Context, tenantID uuid.UUID) (*models.SyncRun, error)

	// ListRuns returns up to limit runs for a tenant, most recent first.
	ListRuns(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.SyncRun, error)

	// ListErrors returns the per-record errors captured during a run.
	ListErrors(ctx context.Context, runID uuid.UUID) ([]*models.SyncError, error)
}
