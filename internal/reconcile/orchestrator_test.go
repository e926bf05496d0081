package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stafflink/dirsync/internal/directory"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
	memorystore "github.com/stafflink/dirsync/internal/store/memory"
)

type engineFixture struct {
	tenants   *memorystore.TenantStore
	employees *memorystore.EmployeeStore
	runs      *memorystore.SyncRunStore
	locks     *memorystore.LockStore
	dir       *directory.Static
	orch      *Orchestrator
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		tenants:   memorystore.NewTenantStore(),
		employees: memorystore.NewEmployeeStore(),
		runs:      memorystore.NewSyncRunStore(),
		locks:     memorystore.NewLockStore(),
		dir:       directory.NewStatic(),
	}
	f.orch = NewOrchestrator(f.tenants, f.employees, f.runs, f.locks, f.dir, OrchestratorConfig{})
	return f
}

func (f *engineFixture) addTenant(t *testing.T, domain string) *models.Tenant {
	t.Helper()

	tenant := testTenant()
	tenant.PrimaryDomain = domain
	require.NoError(t, f.tenants.Create(context.Background(), tenant))
	return tenant
}

func TestOrchestrator_SyncTenant(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	tenant := f.addTenant(t, "acme.com")

	f.dir.SetUsers("acme.com", []models.RemoteUser{
		{ID: "g-1", PrimaryEmail: "jane.doe@acme.com", GivenName: "Jane"},
		{ID: "g-2", PrimaryEmail: "bob@acme.com", GivenName: "Bob"},
	})

	run, err := f.orch.SyncTenant(ctx, tenant.TenantID, "tester")
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, models.RunCompleted, run.Status)
	require.Equal(t, models.TriggerManual, run.Trigger)
	require.Equal(t, "tester", run.TriggeredBy)
	require.Equal(t, 2, run.Counters.Created)

	// Terminal status persisted, not just mutated in memory.
	stored, err := f.runs.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	// Tenant bookkeeping mirrors the run outcome.
	updated, err := f.tenants.Get(ctx, tenant.TenantID)
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, updated.LastSyncStatus)
	require.NotNil(t, updated.LastSyncAt)

	// The lock was released.
	held, err := f.locks.Held(ctx, tenant.TenantID)
	require.NoError(t, err)
	require.False(t, held)
}

func TestOrchestrator_RejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	tenant := f.addTenant(t, "acme.com")

	// Another process holds the tenant lock.
	require.NoError(t, f.locks.Acquire(ctx, tenant.TenantID, "other-process", time.Minute))

	run, err := f.orch.SyncTenant(ctx, tenant.TenantID, "tester")
	require.ErrorIs(t, err, store.ErrSyncInProgress)
	require.Nil(t, run)

	// A rejected attempt leaves no run behind.
	_, err = f.runs.LatestRun(ctx, tenant.TenantID)
	require.ErrorIs(t, err, store.ErrRunNotFound)
}

// blockingDirectory parks ListUsers until released, so tests can hold a run
// open mid-fetch.
type blockingDirectory struct {
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDirectory) ListUsers(ctx context.Context, _ *models.Tenant) ([]models.RemoteUser, error) {
	d.entered <- struct{}{}
	select {
	case <-d.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestOrchestrator_ConcurrentSyncsSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	tenant := f.addTenant(t, "acme.com")

	dir := &blockingDirectory{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	orch := NewOrchestrator(f.tenants, f.employees, f.runs, f.locks, dir, OrchestratorConfig{})

	// Two triggers race through the same orchestrator, as with two operator
	// requests landing on one instance.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := orch.SyncTenant(ctx, tenant.TenantID, "tester")
			errs <- err
		}()
	}

	// The winner parks inside the fetch holding the lock; the loser must be
	// rejected, not run alongside it.
	<-dir.entered
	require.ErrorIs(t, <-errs, store.ErrSyncInProgress)

	close(dir.release)
	require.NoError(t, <-errs)

	// Exactly one run was persisted and the lock is free again.
	history, err := f.runs.ListRuns(ctx, tenant.TenantID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.RunCompleted, history[0].Status)

	held, err := f.locks.Held(ctx, tenant.TenantID)
	require.NoError(t, err)
	require.False(t, held)
}

func TestOrchestrator_FetchFailureFailsRun(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	tenant := f.addTenant(t, "acme.com")

	f.dir.SetError("acme.com", errors.New("token exchange rejected"))

	run, err := f.orch.SyncTenant(ctx, tenant.TenantID, "tester")
	require.Error(t, err)
	require.NotNil(t, run)
	require.Equal(t, models.RunFailed, run.Status)
	require.Contains(t, run.Notes, "directory fetch failed")

	updated, err := f.tenants.Get(ctx, tenant.TenantID)
	require.NoError(t, err)
	require.Equal(t, models.RunFailed, updated.LastSyncStatus)

	held, err := f.locks.Held(ctx, tenant.TenantID)
	require.NoError(t, err)
	require.False(t, held)
}

func TestOrchestrator_MassDeactivationFailsRun(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	tenant := f.addTenant(t, "acme.com")

	for _, email := range []string{"a@acme.com", "b@acme.com", "c@acme.com", "d@acme.com", "e@acme.com"} {
		require.NoError(t, f.employees.Upsert(ctx, &models.Employee{
			Email:     email,
			Status:    models.StatusActive,
			Synced:    true,
			TenantID:  tenant.TenantID,
			Overrides: models.NewFieldSet(),
		}))
	}

	// Remote returns nothing, which would wipe the whole tenant.
	run, err := f.orch.SyncTenant(ctx, tenant.TenantID, "tester")
	require.ErrorIs(t, err, ErrMassDeactivation)
	require.NotNil(t, run)
	require.Equal(t, models.RunFailed, run.Status)

	locals, err := f.employees.FindByDomains(ctx, []string{"acme.com"})
	require.NoError(t, err)
	for _, emp := range locals {
		require.Equal(t, models.StatusActive, emp.Status)
	}
}

func TestOrchestrator_SyncAllIsolatesTenantFailures(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	good := f.addTenant(t, "acme.com")
	bad := f.addTenant(t, "globex.com")

	f.dir.SetUsers("acme.com", []models.RemoteUser{
		{ID: "g-1", PrimaryEmail: "jane.doe@acme.com"},
	})
	f.dir.SetError("globex.com", errors.New("boom"))

	runs, err := f.orch.SyncAll(ctx, "tester")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, models.RunCompleted, runs[good.PrimaryDomain].Status)
	require.Equal(t, models.RunFailed, runs[bad.PrimaryDomain].Status)
}

func TestOrchestrator_SyncAllSkipsDisabledTenants(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.addTenant(t, "acme.com")

	disabled := testTenant()
	disabled.PrimaryDomain = "paused.com"
	disabled.SyncEnabled = false
	require.NoError(t, f.tenants.Create(ctx, disabled))

	runs, err := f.orch.SyncAll(ctx, "tester")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotContains(t, runs, "paused.com")
}

func TestOrchestrator_Status(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	tenant := f.addTenant(t, "acme.com")

	f.dir.SetUsers("acme.com", []models.RemoteUser{
		{ID: "g-1", PrimaryEmail: "jane.doe@acme.com"},
	})
	_, err := f.orch.SyncTenant(ctx, tenant.TenantID, "tester")
	require.NoError(t, err)

	status, err := f.orch.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.Running)
	require.Len(t, status.Tenants, 1)

	ts := status.Tenants[0]
	require.Equal(t, tenant.TenantID, ts.TenantID)
	require.False(t, ts.Running)
	require.NotNil(t, ts.LatestRun)
	require.Equal(t, models.RunCompleted, ts.LatestRun.Status)

	// A held lock shows as running.
	require.NoError(t, f.locks.Acquire(ctx, tenant.TenantID, "other", time.Minute))
	status, err = f.orch.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Running)
	require.True(t, status.Tenants[0].Running)
}
