package models

import (
	"time"

	"github.com/google/uuid"
)

// EmployeeStatus is the lifecycle state of an employee record.
type EmployeeStatus string

const (
	StatusActive     EmployeeStatus = "ACTIVE"
	StatusPending    EmployeeStatus = "PENDING"
	StatusOnLeave    EmployeeStatus = "ON_LEAVE"
	StatusMaternity  EmployeeStatus = "MATERNITY"
	StatusTerminated EmployeeStatus = "TERMINATED"
)

// DefaultRole is assigned to employees materialized by the directory sync.
const DefaultRole = "employee"

// Employee is the persisted representation of a person. Email is the
// case-insensitive join key to directory records and is stored lowercased.
//
// Overrides lists fields an administrator has edited by hand; the sync engine
// never writes a field present in that set until the override is cleared.
type Employee struct {
	EmployeeID uuid.UUID // UUIDv7
	Email      string    // lowercase, globally unique
	ExternalID string    // id in the external directory

	GivenName   string
	FamilyName  string
	DisplayName string
	AvatarURL   string
	Phone       string
	Location    string

	Status          EmployeeStatus
	TerminationDate *time.Time

	LegalEntity string
	Role        string

	Synced       bool // record is fed by the directory sync
	LastSyncedAt *time.Time
	TenantID     uuid.UUID

	Overrides FieldSet

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the employee record.
func (e *Employee) Clone() *Employee {
	clone := *e
	if e.TerminationDate != nil {
		at := *e.TerminationDate
		clone.TerminationDate = &at
	}
	if e.LastSyncedAt != nil {
		at := *e.LastSyncedAt
		clone.LastSyncedAt = &at
	}
	clone.Overrides = e.Overrides.Clone()
	return &clone
}
