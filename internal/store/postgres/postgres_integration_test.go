//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "dirsync",
				"POSTGRES_PASSWORD": "dirsync",
				"POSTGRES_DB":       "dirsync_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://dirsync:dirsync@%s:%s/dirsync_test?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPostgresStores_Integration(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)

	tenants := NewTenantStore(pool)
	employees := NewEmployeeStore(pool)
	runs := NewSyncRunStore(pool)
	locks := NewLockStore(pool)

	tenant := &models.Tenant{
		Name:               "Acme",
		PrimaryDomain:      "acme.com",
		AllowedDomains:     []string{"acme.io"},
		Credentials:        []byte(`{"type":"service_account"}`),
		AdminEmail:         "admin@acme.com",
		DefaultLegalEntity: "Acme Pty Ltd",
		SyncEnabled:        true,
		SyncInterval:       time.Hour,
		Active:             true,
	}

	t.Run("tenant round trip", func(t *testing.T) {
		require.NoError(t, tenants.Create(ctx, tenant))
		require.NotEqual(t, uuid.Nil, tenant.TenantID)

		err := tenants.Create(ctx, &models.Tenant{Name: "Dup", PrimaryDomain: "acme.com"})
		require.ErrorIs(t, err, store.ErrTenantAlreadyExists)

		got, err := tenants.GetByDomain(ctx, "acme.com")
		require.NoError(t, err)
		require.Equal(t, tenant.TenantID, got.TenantID)
		require.Equal(t, []string{"acme.io"}, got.AllowedDomains)
		require.Equal(t, time.Hour, got.SyncInterval)
		require.Equal(t, tenant.Credentials, got.Credentials)

		syncable, err := tenants.ListSyncable(ctx)
		require.NoError(t, err)
		require.Len(t, syncable, 1)

		require.NoError(t, tenants.SetSyncStatus(ctx, tenant.TenantID, models.RunCompleted, time.Now()))
		got, err = tenants.Get(ctx, tenant.TenantID)
		require.NoError(t, err)
		require.Equal(t, models.RunCompleted, got.LastSyncStatus)
		require.NotNil(t, got.LastSyncAt)
	})

	t.Run("employee round trip", func(t *testing.T) {
		emp := &models.Employee{
			Email:      "Jane.Doe@acme.com",
			ExternalID: "g-1",
			GivenName:  "Jane",
			Status:     models.StatusPending,
			Role:       models.DefaultRole,
			Synced:     true,
			TenantID:   tenant.TenantID,
			Overrides:  models.NewFieldSet(models.FieldPhone),
		}
		require.NoError(t, employees.Upsert(ctx, emp))
		require.NotEqual(t, uuid.Nil, emp.EmployeeID)

		got, err := employees.GetByEmail(ctx, "jane.doe@acme.com")
		require.NoError(t, err)
		require.Equal(t, "jane.doe@acme.com", got.Email)
		require.True(t, got.Overrides.Has(models.FieldPhone))

		// Upsert by email keeps the id.
		update := got.Clone()
		update.GivenName = "Janet"
		require.NoError(t, employees.Upsert(ctx, update))
		require.Equal(t, emp.EmployeeID, update.EmployeeID)

		found, err := employees.FindByDomains(ctx, []string{"acme.com", "acme.io"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "Janet", found[0].GivenName)

		require.NoError(t, employees.SetOverrides(ctx, emp.EmployeeID, models.NewFieldSet(models.FieldLocation)))
		got, err = employees.GetByEmail(ctx, "jane.doe@acme.com")
		require.NoError(t, err)
		require.False(t, got.Overrides.Has(models.FieldPhone))
		require.True(t, got.Overrides.Has(models.FieldLocation))

		require.NoError(t, employees.Deactivate(ctx, emp.EmployeeID, time.Now()))
		got, err = employees.GetByEmail(ctx, "jane.doe@acme.com")
		require.NoError(t, err)
		require.Equal(t, models.StatusTerminated, got.Status)
		require.NotNil(t, got.TerminationDate)
	})

	t.Run("sync run lifecycle", func(t *testing.T) {
		run := &models.SyncRun{
			TenantID:    tenant.TenantID,
			Trigger:     models.TriggerManual,
			TriggeredBy: "integration",
		}
		require.NoError(t, runs.CreateRun(ctx, run))
		require.NotEqual(t, uuid.Nil, run.RunID)

		require.NoError(t, runs.RecordError(ctx, &models.SyncError{
			RunID:   run.RunID,
			Email:   "bad@acme.com",
			Kind:    "record",
			Message: "no primary email",
		}))

		counters := models.SyncCounters{Processed: 5, Created: 2, Updated: 1, Unchanged: 1, Errors: 1}
		require.NoError(t, runs.CompleteRun(ctx, run.RunID, counters, "done"))

		err := runs.CompleteRun(ctx, run.RunID, counters, "again")
		require.ErrorIs(t, err, store.ErrRunFinalized)
		err = runs.FailRun(ctx, run.RunID, "late")
		require.ErrorIs(t, err, store.ErrRunFinalized)

		got, err := runs.GetRun(ctx, run.RunID)
		require.NoError(t, err)
		require.Equal(t, models.RunCompleted, got.Status)
		require.Equal(t, counters, got.Counters)
		require.NotNil(t, got.CompletedAt)

		latest, err := runs.LatestRun(ctx, tenant.TenantID)
		require.NoError(t, err)
		require.Equal(t, run.RunID, latest.RunID)

		errs, err := runs.ListErrors(ctx, run.RunID)
		require.NoError(t, err)
		require.Len(t, errs, 1)
		require.Equal(t, "bad@acme.com", errs[0].Email)
	})

	t.Run("tenant locks", func(t *testing.T) {
		require.NoError(t, locks.Acquire(ctx, tenant.TenantID, "holder-a", time.Minute))

		err := locks.Acquire(ctx, tenant.TenantID, "holder-b", time.Minute)
		require.ErrorIs(t, err, store.ErrSyncInProgress)

		// Same holder refreshes.
		require.NoError(t, locks.Acquire(ctx, tenant.TenantID, "holder-a", time.Minute))

		held, err := locks.Held(ctx, tenant.TenantID)
		require.NoError(t, err)
		require.True(t, held)

		require.NoError(t, locks.Release(ctx, tenant.TenantID, "holder-a"))
		held, err = locks.Held(ctx, tenant.TenantID)
		require.NoError(t, err)
		require.False(t, held)

		// Expired locks are claimable.
		require.NoError(t, locks.Acquire(ctx, tenant.TenantID, "crashed", time.Millisecond))
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, locks.Acquire(ctx, tenant.TenantID, "holder-b", time.Minute))
		require.NoError(t, locks.Release(ctx, tenant.TenantID, "holder-b"))
	})
}
