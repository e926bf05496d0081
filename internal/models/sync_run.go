package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncTrigger records what started a sync run.
type SyncTrigger string

const (
	TriggerManual    SyncTrigger = "MANUAL"
	TriggerScheduled SyncTrigger = "SCHEDULED"
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// SyncCounters aggregates per-run record outcomes.
// Updated counts material changes only; a record whose fields already match
// the remote payload counts as Unchanged.
type SyncCounters struct {
	Processed   int
	Created     int
	Updated     int
	Unchanged   int
	Deactivated int
	Errors      int
}

// Add accumulates counters from another run, used when aggregating a sweep.
func (c *SyncCounters) Add(other SyncCounters) {
	c.Processed += other.Processed
	c.Created += other.Created
	c.Updated += other.Updated
	c.Unchanged += other.Unchanged
	c.Deactivated += other.Deactivated
	c.Errors += other.Errors
}

// SyncRun is the audit record of one reconciliation execution for one tenant.
// Its terminal status is set exactly once.
type SyncRun struct {
	RunID       uuid.UUID // UUIDv7
	TenantID    uuid.UUID
	Trigger     SyncTrigger
	TriggeredBy string // optional actor, empty for scheduled runs
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Counters    SyncCounters
	Notes       string
}

// Clone returns a deep copy of the run.
func (r *SyncRun) Clone() *SyncRun {
	clone := *r
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		clone.CompletedAt = &at
	}
	return &clone
}

// SyncError records one failed record within a run. Per-record errors never
// move the owning run's terminal status away from COMPLETED.
type SyncError struct {
	ErrorID   uuid.UUID // UUIDv7
	RunID     uuid.UUID
	Email     string // offending record, when known
	Kind      string
	Message   string
	CreatedAt time.Time
}
