package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stafflink/dirsync/internal/models"
)

// Sentinel errors for employee store operations
var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrDuplicateEmail   = errors.New("employee email already exists")
)

// EmployeeStore defines the interface for employee record storage.
// Every write is a single atomic statement so a mid-run crash leaves each
// already-committed record consistent.
type EmployeeStore interface {
	// GetByEmail retrieves an employee by email (matched lowercased).
	// Returns ErrEmployeeNotFound if no record exists.
	GetByEmail(ctx context.Context, email string) (*models.Employee, error)

	// FindByDomains returns every employee whose email belongs to one of the
	// given domains, ordered by email.
	FindByDomains(ctx context.Context, domains []string) ([]*models.Employee, error)

	// Upsert creates or replaces the employee keyed by email. A zero
	// EmployeeID is assigned a new UUIDv7. Email is stored lowercased.
	Upsert(ctx context.Context, emp *models.Employee) error

	// Deactivate marks the employee TERMINATED with the given termination
	// date. Returns ErrEmployeeNotFound if the record doesn't exist.
	Deactivate(ctx context.Context, employeeID uuid.UUID, at time.Time) error

	// SetOverrides replaces the employee's manual override field set. Used by
	// admin tooling to protect or release fields.
	SetOverrides(ctx context.Context, employeeID uuid.UUID, fields models.FieldSet) error
}
