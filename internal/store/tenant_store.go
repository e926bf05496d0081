package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stafflink/dirsync/internal/models"
)

// Sentinel errors for tenant store operations
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantAlreadyExists = errors.New("tenant already exists")
)

// TenantStore defines the interface for tenant registry storage.
// The sync engine consumes tenants read-only apart from last-sync bookkeeping.
type TenantStore interface {
	// Create creates a new tenant.
	// Returns ErrTenantAlreadyExists if a tenant with the same ID or primary
	// domain already exists.
	Create(ctx context.Context, tenant *models.Tenant) error

	// Get retrieves a tenant by ID.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)

	// GetByDomain retrieves a tenant by its primary domain.
	// Returns ErrTenantNotFound if no tenant owns the domain.
	GetByDomain(ctx context.Context, domain string) (*models.Tenant, error)

	// List returns all tenants ordered by primary domain.
	List(ctx context.Context) ([]*models.Tenant, error)

	// ListSyncable returns tenants eligible for a sweep: active with sync
	// enabled, ordered by primary domain.
	ListSyncable(ctx context.Context) ([]*models.Tenant, error)

	// Update updates an existing tenant.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Update(ctx context.Context, tenant *models.Tenant) error

	// SetSyncStatus records the outcome of the tenant's most recent run.
	SetSyncStatus(ctx context.Context, tenantID uuid.UUID, status models.RunStatus, at time.Time) error
}
