package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// Recorder manages the SyncRun audit lifecycle and mirrors each run's
// terminal status onto the owning tenant.
type Recorder struct {
	runs    store.SyncRunStore
	tenants store.TenantStore
}

// NewRecorder creates a run recorder.
func NewRecorder(runs store.SyncRunStore, tenants store.TenantStore) *Recorder {
	return &Recorder{runs: runs, tenants: tenants}
}

// Begin creates a RUNNING run for the tenant.
func (r *Recorder) Begin(ctx context.Context, tenant *models.Tenant, trigger models.SyncTrigger, triggeredBy string) (*models.SyncRun, error) {
	run := &models.SyncRun{
		TenantID:    tenant.TenantID,
		Trigger:     trigger,
		TriggeredBy: triggeredBy,
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", run.RunID.String()).
		Str("tenant_id", tenant.TenantID.String()).
		Str("trigger", string(trigger)).
		Msg("Sync run started")

	return run, nil
}

// Complete finalizes the run as COMPLETED and mirrors the status onto the
// tenant.
func (r *Recorder) Complete(ctx context.Context, run *models.SyncRun, counters models.SyncCounters, notes string) error {
	if err := r.runs.CompleteRun(ctx, run.RunID, counters, notes); err != nil {
		return err
	}
	run.Status = models.RunCompleted
	run.Counters = counters
	run.Notes = notes

	if err := r.tenants.SetSyncStatus(ctx, run.TenantID, models.RunCompleted, time.Now()); err != nil {
		log.Error().Err(err).
			Str("tenant_id", run.TenantID.String()).
			Msg("Failed to mirror sync status onto tenant")
	}

	log.Info().
		Str("run_id", run.RunID.String()).
		Int("processed", counters.Processed).
		Int("created", counters.Created).
		Int("updated", counters.Updated).
		Int("deactivated", counters.Deactivated).
		Int("errors", counters.Errors).
		Msg("Sync run completed")

	return nil
}

// Fail finalizes the run as FAILED and mirrors the status onto the tenant.
func (r *Recorder) Fail(ctx context.Context, run *models.SyncRun, reason string) error {
	if err := r.runs.FailRun(ctx, run.RunID, reason); err != nil {
		return err
	}
	run.Status = models.RunFailed
	run.Notes = reason

	if err := r.tenants.SetSyncStatus(ctx, run.TenantID, models.RunFailed, time.Now()); err != nil {
		log.Error().Err(err).
			Str("tenant_id", run.TenantID.String()).
			Msg("Failed to mirror sync status onto tenant")
	}

	log.Warn().
		Str("run_id", run.RunID.String()).
		Str("reason", reason).
		Msg("Sync run failed")

	return nil
}

// Sink returns an ErrorSink that writes per-record failures against the run.
// Recording failures are logged and swallowed so one bad record (or a broken
// audit write) never aborts the run.
func (r *Recorder) Sink(runID uuid.UUID) ErrorSink {
	return func(ctx context.Context, email, kind, message string) {
		err := r.runs.RecordError(ctx, &models.SyncError{
			RunID:   runID,
			Email:   email,
			Kind:    kind,
			Message: message,
		})
		if err != nil {
			log.Error().Err(err).
				Str("run_id", runID.String()).
				Str("email", email).
				Msg("Failed to record sync error")
		}
	}
}
