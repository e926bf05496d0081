package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/directory"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
	"github.com/stafflink/dirsync/internal/telemetry"
)

// OrchestratorConfig holds tuning for run orchestration.
type OrchestratorConfig struct {
	// LockTTL bounds how long a run may hold its tenant lock before a crashed
	// process's lock becomes claimable. Default: 15 minutes.
	LockTTL time.Duration

	// Workers is the number of tenants synced concurrently during a sweep.
	// Tenants are data-isolated, so values above one are safe; the default
	// of one keeps aggregate outbound API load predictable.
	Workers int

	Reconciler ReconcilerConfig
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *OrchestratorConfig) ApplyDefaults() {
	if c.LockTTL == 0 {
		c.LockTTL = 15 * time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	c.Reconciler.ApplyDefaults()
}

// Orchestrator drives sync runs: it fetches the remote listing per tenant,
// invokes the reconciler under a per-tenant lock, and records the outcome.
// SyncTenant, SyncAll and Status are the whole contract the surrounding
// application uses.
type Orchestrator struct {
	tenants  store.TenantStore
	locks    store.LockStore
	runs     store.SyncRunStore
	dir      directory.Directory
	rec      *Reconciler
	recorder *Recorder
	cfg      OrchestratorConfig

	// hostname prefixes lock holder ids so lock rows are attributable to a
	// service instance.
	hostname string
}

// NewOrchestrator wires the sync engine together.
func NewOrchestrator(
	tenants store.TenantStore,
	employees store.EmployeeStore,
	runs store.SyncRunStore,
	locks store.LockStore,
	dir directory.Directory,
	cfg OrchestratorConfig,
) *Orchestrator {
	cfg.ApplyDefaults()

	hostname, _ := os.Hostname()
	return &Orchestrator{
		tenants:  tenants,
		locks:    locks,
		runs:     runs,
		dir:      dir,
		rec:      NewReconciler(employees, cfg.Reconciler),
		recorder: NewRecorder(runs, tenants),
		cfg:      cfg,
		hostname: hostname,
	}
}

// SyncTenant runs one manual sync for the tenant. A run already in flight
// for the same tenant yields store.ErrSyncInProgress without creating a
// SyncRun.
func (o *Orchestrator) SyncTenant(ctx context.Context, tenantID uuid.UUID, triggeredBy string) (*models.SyncRun, error) {
	tenant, err := o.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return o.syncTenant(ctx, tenant, models.TriggerManual, triggeredBy)
}

// SyncAll sweeps every active, sync-enabled tenant and returns the run per
// primary domain. One tenant's failure never aborts the sweep; tenants whose
// lock is held are skipped and absent from the result.
func (o *Orchestrator) SyncAll(ctx context.Context, triggeredBy string) (map[string]*models.SyncRun, error) {
	return o.syncAll(ctx, models.TriggerManual, triggeredBy)
}

func (o *Orchestrator) syncAll(ctx context.Context, trigger models.SyncTrigger, triggeredBy string) (map[string]*models.SyncRun, error) {
	tenants, err := o.tenants.ListSyncable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*models.SyncRun, len(tenants))
		wg      sync.WaitGroup
		sem     = make(chan struct{}, o.cfg.Workers)
	)

	for _, tenant := range tenants {
		wg.Add(1)
		sem <- struct{}{}
		go func(tenant *models.Tenant) {
			defer wg.Done()
			defer func() { <-sem }()

			run, err := o.syncTenant(ctx, tenant, trigger, triggeredBy)
			if err != nil {
				if errors.Is(err, store.ErrSyncInProgress) {
					log.Info().
						Str("tenant_id", tenant.TenantID.String()).
						Msg("Skipping tenant, sync already in progress")
					return
				}
				log.Error().Err(err).
					Str("tenant_id", tenant.TenantID.String()).
					Str("domain", tenant.PrimaryDomain).
					Msg("Tenant sync failed")
			}
			if run != nil {
				mu.Lock()
				results[tenant.PrimaryDomain] = run
				mu.Unlock()
			}
		}(tenant)
	}
	wg.Wait()

	return results, nil
}

// syncTenant executes one run under the tenant lock. Exactly one SyncRun is
// persisted per executed run, and the lock is released on every exit path.
func (o *Orchestrator) syncTenant(ctx context.Context, tenant *models.Tenant, trigger models.SyncTrigger, triggeredBy string) (*models.SyncRun, error) {
	// Each acquisition gets its own holder id. A process-wide holder would
	// make concurrent runs within one process look re-entrant to the lock
	// store and let them both proceed.
	holder := fmt.Sprintf("%s/%s", o.hostname, uuid.Must(uuid.NewV7()))

	if err := o.locks.Acquire(ctx, tenant.TenantID, holder, o.cfg.LockTTL); err != nil {
		if errors.Is(err, store.ErrSyncInProgress) {
			telemetry.CountRejectedRun()
		}
		return nil, err
	}
	defer func() {
		if err := o.locks.Release(ctx, tenant.TenantID, holder); err != nil {
			log.Error().Err(err).
				Str("tenant_id", tenant.TenantID.String()).
				Msg("Failed to release tenant lock")
		}
	}()

	run, err := o.recorder.Begin(ctx, tenant, trigger, triggeredBy)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	started := time.Now()

	remote, err := o.dir.ListUsers(ctx, tenant)
	if err != nil {
		o.finalizeFailure(ctx, run, fmt.Sprintf("directory fetch failed: %v", err))
		telemetry.ObserveRun(string(models.RunFailed), time.Since(started))
		return run, err
	}

	counters, err := o.rec.Reconcile(ctx, tenant, remote, o.recorder.Sink(run.RunID))
	if err != nil {
		o.finalizeFailure(ctx, run, err.Error())
		telemetry.ObserveRun(string(models.RunFailed), time.Since(started))
		return run, err
	}

	notes := fmt.Sprintf("processed %d users: %d created, %d updated, %d deactivated, %d errors",
		counters.Processed, counters.Created, counters.Updated, counters.Deactivated, counters.Errors)
	if err := o.recorder.Complete(ctx, run, counters, notes); err != nil {
		return run, fmt.Errorf("failed to finalize sync run: %w", err)
	}

	telemetry.ObserveRun(string(models.RunCompleted), time.Since(started))
	telemetry.CountRecords(counters.Created, counters.Updated, counters.Unchanged, counters.Deactivated, counters.Errors)
	return run, nil
}

func (o *Orchestrator) finalizeFailure(ctx context.Context, run *models.SyncRun, reason string) {
	if err := o.recorder.Fail(ctx, run, reason); err != nil {
		log.Error().Err(err).
			Str("run_id", run.RunID.String()).
			Msg("Failed to finalize failed run")
	}
}

// TenantStatus is the per-tenant slice of the engine's status projection.
type TenantStatus struct {
	TenantID       uuid.UUID        `json:"tenant_id"`
	Name           string           `json:"name"`
	PrimaryDomain  string           `json:"primary_domain"`
	SyncEnabled    bool             `json:"sync_enabled"`
	Active         bool             `json:"active"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty"`
	LastSyncStatus models.RunStatus `json:"last_sync_status,omitempty"`
	Running        bool             `json:"running"`
	LatestRun      *models.SyncRun  `json:"latest_run,omitempty"`
}

// Status is a read-only projection over tenants and their runs, used to
// report and prevent overlapping work.
type Status struct {
	Running bool           `json:"running"`
	Tenants []TenantStatus `json:"tenants"`
}

// Status reports every tenant with its lock state and latest run.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	tenants, err := o.tenants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	status := &Status{Tenants: make([]TenantStatus, 0, len(tenants))}
	for _, tenant := range tenants {
		ts := TenantStatus{
			TenantID:       tenant.TenantID,
			Name:           tenant.Name,
			PrimaryDomain:  tenant.PrimaryDomain,
			SyncEnabled:    tenant.SyncEnabled,
			Active:         tenant.Active,
			LastSyncAt:     tenant.LastSyncAt,
			LastSyncStatus: tenant.LastSyncStatus,
		}

		held, err := o.locks.Held(ctx, tenant.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to check tenant lock: %w", err)
		}
		ts.Running = held
		if held {
			status.Running = true
		}

		run, err := o.runs.LatestRun(ctx, tenant.TenantID)
		if err != nil && !errors.Is(err, store.ErrRunNotFound) {
			return nil, fmt.Errorf("failed to load latest run: %w", err)
		}
		ts.LatestRun = run

		status.Tenants = append(status.Tenants, ts)
	}

	return status, nil
}
