package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/stafflink/dirsync/cmd/dirsync/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode."`
		Version kong.VersionFlag

		Serve     commands.ServeCmd     `cmd:"" help:"Start the sync service (API + scheduler)"`
		Sync      commands.SyncCmd      `cmd:"" help:"Run one sync for a tenant"`
		SyncAll   commands.SyncAllCmd   `cmd:"" help:"Run a sync sweep over every enabled tenant"`
		Status    commands.StatusCmd    `cmd:"" help:"Show per-tenant sync status"`
		Tenants   commands.TenantsCmd   `cmd:"" help:"Manage the tenant registry"`
		Employees commands.EmployeesCmd `cmd:"" help:"Inspect and adjust employee records"`
		Import    commands.ImportCmd    `cmd:"" help:"Import employees from a CSV file"`
		Migrate   commands.MigrateCmd   `cmd:"" help:"Run database migrations"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
