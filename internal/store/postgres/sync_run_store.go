package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// SyncRunStore implements store.SyncRunStore using PostgreSQL.
type SyncRunStore struct {
	pool *pgxpool.Pool
}

// NewSyncRunStore creates a new PostgreSQL-backed sync run store.
func NewSyncRunStore(pool *pgxpool.Pool) *SyncRunStore {
	return &SyncRunStore{pool: pool}
}

const runColumns = `
	run_id, tenant_id, trigger_type, triggered_by, status, started_at,
	completed_at, processed, created, updated, unchanged, deactivated,
	errors, notes
`

// CreateRun persists a new run in RUNNING state.
func (s *SyncRunStore) CreateRun(ctx context.Context, run *models.SyncRun) error {
	if run.RunID == uuid.Nil {
		run.RunID = uuid.Must(uuid.NewV7())
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = models.RunRunning

	query := `
		INSERT INTO sync_runs (
			run_id, tenant_id, trigger_type, triggered_by, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID,
		run.TenantID,
		string(run.Trigger),
		run.TriggeredBy,
		string(run.Status),
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("run_id", run.RunID.String()).
		Str("tenant_id", run.TenantID.String()).
		Str("trigger", string(run.Trigger)).
		Msg("Created sync run")

	return nil
}

// CompleteRun moves a RUNNING run to COMPLETED. The status guard in the WHERE
// clause makes the terminal transition happen exactly once.
func (s *SyncRunStore) CompleteRun(ctx context.Context, runID uuid.UUID, counters models.SyncCounters, notes string) error {
	query := `
		UPDATE sync_runs SET
			status = $2,
			completed_at = NOW(),
			processed = $3,
			created = $4,
			updated = $5,
			unchanged = $6,
			deactivated = $7,
			errors = $8,
			notes = $9
		WHERE run_id = $1 AND status = $10
	`

	result, err := s.pool.Exec(ctx, query,
		runID,
		string(models.RunCompleted),
		counters.Processed,
		counters.Created,
		counters.Updated,
		counters.Unchanged,
		counters.Deactivated,
		counters.Errors,
		notes,
		string(models.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync run: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return s.finalizeMiss(ctx, runID)
	}
	return nil
}

// FailRun moves a RUNNING run to FAILED with the failure reason.
func (s *SyncRunStore) FailRun(ctx context.Context, runID uuid.UUID, reason string) error {
	query := `
		UPDATE sync_runs SET
			status = $2,
			completed_at = NOW(),
			notes = $3
		WHERE run_id = $1 AND status = $4
	`

	result, err := s.pool.Exec(ctx, query,
		runID,
		string(models.RunFailed),
		reason,
		string(models.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to fail sync run: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return s.finalizeMiss(ctx, runID)
	}
	return nil
}

// finalizeMiss distinguishes a missing run from one already finalized.
func (s *SyncRunStore) finalizeMiss(ctx context.Context, runID uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sync_runs WHERE run_id = $1)`, runID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check sync run: %w", mapPostgresError(err))
	}
	if !exists {
		return store.ErrRunNotFound
	}
	return store.ErrRunFinalized
}

// RecordError appends a per-record error to a run.
func (s *SyncRunStore) RecordError(ctx context.Context, syncErr *models.SyncError) error {
	if syncErr.ErrorID == uuid.Nil {
		syncErr.ErrorID = uuid.Must(uuid.NewV7())
	}
	if syncErr.CreatedAt.IsZero() {
		syncErr.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sync_errors (error_id, run_id, email, kind, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		syncErr.ErrorID,
		syncErr.RunID,
		syncErr.Email,
		syncErr.Kind,
		syncErr.Message,
		syncErr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync error: %w", mapPostgresError(err))
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SyncRunStore) GetRun(ctx context.Context, runID uuid.UUID) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE run_id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get sync run: %w", mapPostgresError(err))
	}
	return run, nil
}

// LatestRun returns the most recently started run for a tenant.
func (s *SyncRunStore) LatestRun(ctx context.Context, tenantID uuid.UUID) (*models.SyncRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM sync_runs
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	run, err := scanRun(s.pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest sync run: %w", mapPostgresError(err))
	}
	return run, nil
}

// ListRuns returns up to limit runs for a tenant, most recent first.
func (s *SyncRunStore) ListRuns(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + runColumns + `
		FROM sync_runs
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}
	return runs, nil
}

// ListErrors returns the per-record errors captured during a run.
func (s *SyncRunStore) ListErrors(ctx context.Context, runID uuid.UUID) ([]*models.SyncError, error) {
	query := `
		SELECT error_id, run_id, email, kind, message, created_at
		FROM sync_errors
		WHERE run_id = $1
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync errors: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var errs []*models.SyncError
	for rows.Next() {
		var syncErr models.SyncError
		err := rows.Scan(
			&syncErr.ErrorID,
			&syncErr.RunID,
			&syncErr.Email,
			&syncErr.Kind,
			&syncErr.Message,
			&syncErr.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync error: %w", err)
		}
		errs = append(errs, &syncErr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync errors: %w", err)
	}
	return errs, nil
}

func scanRun(row pgx.Row) (*models.SyncRun, error) {
	var (
		run     models.SyncRun
		trigger string
		status  string
	)
	err := row.Scan(
		&run.RunID,
		&run.TenantID,
		&trigger,
		&run.TriggeredBy,
		&status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Counters.Processed,
		&run.Counters.Created,
		&run.Counters.Updated,
		&run.Counters.Unchanged,
		&run.Counters.Deactivated,
		&run.Counters.Errors,
		&run.Notes,
	)
	if err != nil {
		return nil, err
	}
	run.Trigger = models.SyncTrigger(trigger)
	run.Status = models.RunStatus(status)
	return &run, nil
}
