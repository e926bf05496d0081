package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stafflink/dirsync/internal/logger"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// SyncCmd runs one sync for a single tenant, identified by primary domain or
// tenant id.
type SyncCmd struct {
	Tenant string `arg:"" help:"Tenant primary domain or id"`

	Store StoreFlags `embed:""`
	Sync  SyncFlags  `embed:""`
}

func (c *SyncCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	tenant, err := resolveTenant(ctx, stores.Tenants, c.Tenant)
	if err != nil {
		return err
	}

	orch := buildOrchestrator(stores, c.Sync)
	run, err := orch.SyncTenant(ctx, tenant.TenantID, "cli")
	if run != nil {
		// A failed run still carries its counters and failure notes.
		if printErr := printJSON(run); printErr != nil {
			return printErr
		}
	}
	return err
}

// SyncAllCmd sweeps every active, sync-enabled tenant.
type SyncAllCmd struct {
	Store StoreFlags `embed:""`
	Sync  SyncFlags  `embed:""`
}

func (c *SyncAllCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	orch := buildOrchestrator(stores, c.Sync)
	runs, err := orch.SyncAll(ctx, "cli")
	if err != nil {
		return err
	}
	return printJSON(runs)
}

// StatusCmd shows per-tenant sync status and the latest run.
type StatusCmd struct {
	Store StoreFlags `embed:""`
	Sync  SyncFlags  `embed:""`
}

func (c *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	orch := buildOrchestrator(stores, c.Sync)
	status, err := orch.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(status)
}

// resolveTenant accepts either a primary domain or a tenant id.
func resolveTenant(ctx context.Context, tenants store.TenantStore, ref string) (*models.Tenant, error) {
	if strings.Contains(ref, ".") {
		tenant, err := tenants.GetByDomain(ctx, strings.ToLower(ref))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tenant %q: %w", ref, err)
		}
		return tenant, nil
	}

	tenantID, err := uuid.Parse(ref)
	if err != nil {
		return nil, errors.New("tenant must be a primary domain or a tenant id")
	}
	tenant, err := tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant %q: %w", ref, err)
	}
	return tenant, nil
}
