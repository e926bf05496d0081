// Package importer loads employee records from administrator-provided CSV
// files. Imported values count as manual edits, so every populated syncable
// column is recorded as an override the directory sync must not overwrite.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// Result summarizes one import.
type Result struct {
	Created int
	Updated int
	Errors  []RowError
}

// RowError captures a rejected row; the import continues past it.
type RowError struct {
	Line  int
	Email string
	Err   error
}

// knownColumns maps header names to a setter on the employee record.
// Syncable columns double as override markers.
var knownColumns = map[string]func(*models.Employee, string){
	"email":        func(e *models.Employee, v string) { e.Email = strings.ToLower(v) },
	"given_name":   func(e *models.Employee, v string) { e.GivenName = v },
	"family_name":  func(e *models.Employee, v string) { e.FamilyName = v },
	"display_name": func(e *models.Employee, v string) { e.DisplayName = v },
	"avatar_url":   func(e *models.Employee, v string) { e.AvatarURL = v },
	"phone":        func(e *models.Employee, v string) { e.Phone = v },
	"location":     func(e *models.Employee, v string) { e.Location = v },
	"status":       func(e *models.Employee, v string) { e.Status = models.EmployeeStatus(strings.ToUpper(v)) },
	"legal_entity": func(e *models.Employee, v string) { e.LegalEntity = v },
	"role":         func(e *models.Employee, v string) { e.Role = v },
}

// Importer applies CSV rows to the employee store.
type Importer struct {
	employees store.EmployeeStore
}

// New creates an importer over the employee store.
func New(employees store.EmployeeStore) *Importer {
	return &Importer{employees: employees}
}

// Import reads header-mapped CSV rows and upserts each as an employee. The
// email column is required; unknown columns are ignored with a warning. Bad
// rows are collected in the result and never abort the import.
func (imp *Importer) Import(ctx context.Context, r io.Reader, tenantID uuid.UUID) (*Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	hasEmail := false
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := knownColumns[name]; !ok {
			log.Warn().Str("column", name).Msg("Ignoring unknown CSV column")
			continue
		}
		columns[i] = name
		if name == "email" {
			hasEmail = true
		}
	}
	if !hasEmail {
		return nil, errors.New("csv has no email column")
	}

	result := &Result{}
	line := 1
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Err: err})
			continue
		}

		created, err := imp.applyRow(ctx, columns, row, tenantID)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Email: rowEmail(columns, row), Err: err})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("errors", len(result.Errors)).
		Msg("CSV import finished")

	return result, nil
}

// applyRow merges one row into the store. Existing records keep their sync
// linkage; populated syncable columns become overrides either way.
func (imp *Importer) applyRow(ctx context.Context, columns []string, row []string, tenantID uuid.UUID) (created bool, err error) {
	email := rowEmail(columns, row)
	if email == "" {
		return false, errors.New("row has no email")
	}

	emp, err := imp.employees.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrEmployeeNotFound):
		created = true
		emp = &models.Employee{
			Email:     email,
			Status:    models.StatusActive,
			Role:      models.DefaultRole,
			TenantID:  tenantID,
			Overrides: models.NewFieldSet(),
		}
	case err != nil:
		return false, err
	}

	for i, name := range columns {
		if name == "" || i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		knownColumns[name](emp, value)

		if field := models.SyncField(name); field.Valid() {
			emp.Overrides.Add(field)
		}
	}

	if emp.Status != "" && !validStatus(emp.Status) {
		return false, fmt.Errorf("invalid status %q", emp.Status)
	}

	if err := imp.employees.Upsert(ctx, emp); err != nil {
		return false, err
	}
	return created, nil
}

func rowEmail(columns []string, row []string) string {
	for i, name := range columns {
		if name == "email" && i < len(row) {
			return strings.ToLower(strings.TrimSpace(row[i]))
		}
	}
	return ""
}

func validStatus(s models.EmployeeStatus) bool {
	switch s {
	case models.StatusActive, models.StatusPending, models.StatusOnLeave,
		models.StatusMaternity, models.StatusTerminated:
		return true
	}
	return false
}
