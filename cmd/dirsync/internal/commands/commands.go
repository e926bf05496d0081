package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/directory"
	"github.com/stafflink/dirsync/internal/reconcile"
	"github.com/stafflink/dirsync/internal/store"
	memorystore "github.com/stafflink/dirsync/internal/store/memory"
	postgresstore "github.com/stafflink/dirsync/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

// StoreFlags selects and configures the persistence backend.
type StoreFlags struct {
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"DIRSYNC_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"DIRSYNC_POSTGRES_AUTO_MIGRATE"`
}

// SyncFlags tunes the reconciliation engine shared by serve, sync and
// sync-all.
type SyncFlags struct {
	LockTTL            time.Duration `help:"TTL on per-tenant sync locks" default:"15m" env:"DIRSYNC_LOCK_TTL"`
	Workers            int           `help:"tenants synced concurrently during a sweep" default:"1" env:"DIRSYNC_WORKERS"`
	MaxMissingFraction float64       `help:"largest share of a tenant's synced population allowed to disappear in one run" default:"0.5" env:"DIRSYNC_MAX_MISSING_FRACTION"`
	GuardMinPopulation int           `help:"population below which the mass-deactivation guard is disabled" default:"5" env:"DIRSYNC_GUARD_MIN_POPULATION"`
	PageSize           int64         `help:"directory page size" default:"200" env:"DIRSYNC_PAGE_SIZE"`
	FetchTimeout       time.Duration `help:"timeout for one full directory fetch" default:"5m" env:"DIRSYNC_FETCH_TIMEOUT"`
}

// Stores bundles the four store interfaces plus backend cleanup.
type Stores struct {
	Tenants   store.TenantStore
	Employees store.EmployeeStore
	Runs      store.SyncRunStore
	Locks     store.LockStore

	pool *pgxpool.Pool
}

// Close releases backend resources.
func (s *Stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildStores creates the store set for the selected backend, running
// migrations first when enabled.
func buildStores(ctx context.Context, flags StoreFlags) (*Stores, error) {
	switch flags.StoreType {
	case "postgres":
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      flags.PostgresStore.ConnString,
			MaxConns:        flags.PostgresStore.MaxConns,
			MinConns:        flags.PostgresStore.MinConns,
			MaxConnLifetime: flags.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: flags.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if flags.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL stores with shared connection pool")
		return &Stores{
			Tenants:   postgresstore.NewTenantStore(pool),
			Employees: postgresstore.NewEmployeeStore(pool),
			Runs:      postgresstore.NewSyncRunStore(pool),
			Locks:     postgresstore.NewLockStore(pool),
			pool:      pool,
		}, nil

	default:
		log.Info().Msg("Using in-memory stores")
		return &Stores{
			Tenants:   memorystore.NewTenantStore(),
			Employees: memorystore.NewEmployeeStore(),
			Runs:      memorystore.NewSyncRunStore(),
			Locks:     memorystore.NewLockStore(),
		}, nil
	}
}

// buildOrchestrator wires the sync engine over the stores and the Google
// Workspace directory client.
func buildOrchestrator(stores *Stores, flags SyncFlags) *reconcile.Orchestrator {
	dir := directory.NewGoogleDirectory(directory.GoogleConfig{
		PageSize:     flags.PageSize,
		FetchTimeout: flags.FetchTimeout,
	})

	return reconcile.NewOrchestrator(
		stores.Tenants,
		stores.Employees,
		stores.Runs,
		stores.Locks,
		dir,
		reconcile.OrchestratorConfig{
			LockTTL: flags.LockTTL,
			Workers: flags.Workers,
			Reconciler: reconcile.ReconcilerConfig{
				MaxMissingFraction: flags.MaxMissingFraction,
				GuardMinPopulation: flags.GuardMinPopulation,
			},
		},
	)
}

// printJSON renders command output for the terminal.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
