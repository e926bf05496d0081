package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stafflink/dirsync/internal/models"
	memorystore "github.com/stafflink/dirsync/internal/store/memory"
)

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())

	t.Run("creates records and marks overrides", func(t *testing.T) {
		employees := memorystore.NewEmployeeStore()
		csv := strings.Join([]string{
			"email,given_name,family_name,phone,legal_entity",
			"Jane.Doe@acme.com,Jane,Doe,+61 400 000 001,Acme Pty Ltd",
			"bob@acme.com,Bob,,,",
		}, "\n")

		result, err := New(employees).Import(ctx, strings.NewReader(csv), tenantID)
		require.NoError(t, err)
		require.Equal(t, 2, result.Created)
		require.Zero(t, result.Updated)
		require.Empty(t, result.Errors)

		jane, err := employees.GetByEmail(ctx, "jane.doe@acme.com")
		require.NoError(t, err)
		require.Equal(t, "Jane", jane.GivenName)
		require.Equal(t, "Acme Pty Ltd", jane.LegalEntity)
		require.Equal(t, models.StatusActive, jane.Status)
		require.Equal(t, tenantID, jane.TenantID)

		// Populated syncable columns count as manual edits.
		require.True(t, jane.Overrides.Has(models.FieldGivenName))
		require.True(t, jane.Overrides.Has(models.FieldFamilyName))
		require.True(t, jane.Overrides.Has(models.FieldPhone))
		require.False(t, jane.Overrides.Has(models.FieldLocation))

		bob, err := employees.GetByEmail(ctx, "bob@acme.com")
		require.NoError(t, err)
		require.True(t, bob.Overrides.Has(models.FieldGivenName))
		require.False(t, bob.Overrides.Has(models.FieldPhone)) // empty cell, no override
	})

	t.Run("updates existing records without losing sync linkage", func(t *testing.T) {
		employees := memorystore.NewEmployeeStore()
		require.NoError(t, employees.Upsert(ctx, &models.Employee{
			Email:     "jane.doe@acme.com",
			GivenName: "Janet",
			Status:    models.StatusActive,
			Synced:    true,
			TenantID:  tenantID,
			Overrides: models.NewFieldSet(),
		}))

		csv := "email,phone\njane.doe@acme.com,+61 400 000 009\n"
		result, err := New(employees).Import(ctx, strings.NewReader(csv), tenantID)
		require.NoError(t, err)
		require.Equal(t, 1, result.Updated)
		require.Zero(t, result.Created)

		jane, err := employees.GetByEmail(ctx, "jane.doe@acme.com")
		require.NoError(t, err)
		require.Equal(t, "+61 400 000 009", jane.Phone)
		require.Equal(t, "Janet", jane.GivenName)
		require.True(t, jane.Synced)
		require.True(t, jane.Overrides.Has(models.FieldPhone))
	})

	t.Run("bad rows are collected and skipped", func(t *testing.T) {
		employees := memorystore.NewEmployeeStore()
		csv := strings.Join([]string{
			"email,status",
			",ACTIVE",
			"weird@acme.com,RETIRED",
			"ok@acme.com,on_leave",
		}, "\n")

		result, err := New(employees).Import(ctx, strings.NewReader(csv), tenantID)
		require.NoError(t, err)
		require.Equal(t, 1, result.Created)
		require.Len(t, result.Errors, 2)
		require.Equal(t, 2, result.Errors[0].Line)
		require.Equal(t, "weird@acme.com", result.Errors[1].Email)

		ok, err := employees.GetByEmail(ctx, "ok@acme.com")
		require.NoError(t, err)
		require.Equal(t, models.StatusOnLeave, ok.Status)
	})

	t.Run("missing email column", func(t *testing.T) {
		employees := memorystore.NewEmployeeStore()
		_, err := New(employees).Import(ctx, strings.NewReader("given_name\nJane\n"), tenantID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "email")
	})

	t.Run("unknown columns are ignored", func(t *testing.T) {
		employees := memorystore.NewEmployeeStore()
		csv := "email,shoe_size\njane.doe@acme.com,42\n"

		result, err := New(employees).Import(ctx, strings.NewReader(csv), tenantID)
		require.NoError(t, err)
		require.Equal(t, 1, result.Created)
	})
}
