package commands

import (
	"context"
	"time"

	"github.com/stafflink/dirsync/internal/logger"
	"github.com/stafflink/dirsync/internal/models"
)

// EmployeesCmd manages employee records directly, outside of sync runs.
type EmployeesCmd struct {
	Show         EmployeesShowCmd         `cmd:"" help:"Show an employee record"`
	SetOverrides EmployeesSetOverridesCmd `cmd:"" help:"Replace an employee's manual override fields"`
}

// EmployeesShowCmd prints one employee record.
type EmployeesShowCmd struct {
	Email string `arg:"" help:"Employee email"`

	Store StoreFlags `embed:""`
}

func (c *EmployeesShowCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	emp, err := stores.Employees.GetByEmail(ctx, c.Email)
	if err != nil {
		return err
	}

	type view struct {
		EmployeeID  string     `json:"employee_id"`
		Email       string     `json:"email"`
		GivenName   string     `json:"given_name,omitempty"`
		FamilyName  string     `json:"family_name,omitempty"`
		DisplayName string     `json:"display_name,omitempty"`
		Phone       string     `json:"phone,omitempty"`
		Location    string     `json:"location,omitempty"`
		Status      string     `json:"status"`
		Synced      bool       `json:"synced"`
		LastSynced  *time.Time `json:"last_synced_at,omitempty"`
		Overrides   []string   `json:"overrides"`
	}
	return printJSON(view{
		EmployeeID:  emp.EmployeeID.String(),
		Email:       emp.Email,
		GivenName:   emp.GivenName,
		FamilyName:  emp.FamilyName,
		DisplayName: emp.DisplayName,
		Phone:       emp.Phone,
		Location:    emp.Location,
		Status:      string(emp.Status),
		Synced:      emp.Synced,
		LastSynced:  emp.LastSyncedAt,
		Overrides:   emp.Overrides.Slice(),
	})
}

// EmployeesSetOverridesCmd replaces the manual override set for an employee.
// Overridden fields are never written by sync until the override is cleared;
// passing no fields clears every override.
type EmployeesSetOverridesCmd struct {
	Email  string   `arg:"" help:"Employee email"`
	Fields []string `arg:"" optional:"" help:"Fields to protect (given_name, family_name, display_name, avatar_url, phone, location); none clears all"`

	Store StoreFlags `embed:""`
}

func (c *EmployeesSetOverridesCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	fields, err := models.ParseFieldSet(c.Fields)
	if err != nil {
		return err
	}

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	emp, err := stores.Employees.GetByEmail(ctx, c.Email)
	if err != nil {
		return err
	}
	if err := stores.Employees.SetOverrides(ctx, emp.EmployeeID, fields); err != nil {
		return err
	}
	return printJSON(map[string]any{
		"email":     emp.Email,
		"overrides": fields.Slice(),
	})
}
