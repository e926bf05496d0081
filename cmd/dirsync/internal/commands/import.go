package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/stafflink/dirsync/internal/importer"
	"github.com/stafflink/dirsync/internal/logger"
)

// ImportCmd loads employees from a CSV export. Imported values count as
// manual edits, so the directory sync will not overwrite them.
type ImportCmd struct {
	File   string `arg:"" help:"Path to the CSV file" type:"existingfile"`
	Tenant string `help:"Tenant primary domain or id to attach records to" required:""`

	Store StoreFlags `embed:""`
}

func (c *ImportCmd) Run(ctx context.Context, globals *Globals) error {
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

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	result, err := importer.New(stores.Employees).Import(ctx, f, tenant.TenantID)
	if err != nil {
		return err
	}
	return printJSON(result)
}
