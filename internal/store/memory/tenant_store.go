package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// TenantStore implements store.TenantStore using in-memory storage.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*models.Tenant
}

// NewTenantStore creates a new in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{
		tenants: make(map[uuid.UUID]*models.Tenant),
	}
}

// Create creates a new tenant.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.TenantID]; exists {
		return store.ErrTenantAlreadyExists
	}
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.PrimaryDomain, tenant.PrimaryDomain) {
			return store.ErrTenantAlreadyExists
		}
	}

	now := time.Now()
	clone := tenant.Clone()
	if clone.TenantID == uuid.Nil {
		clone.TenantID = uuid.Must(uuid.NewV7())
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	s.tenants[clone.TenantID] = clone
	tenant.TenantID = clone.TenantID

	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return tenant.Clone(), nil
}

// GetByDomain retrieves a tenant by primary domain.
func (s *TenantStore) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tenant := range s.tenants {
		if strings.EqualFold(tenant.PrimaryDomain, domain) {
			return tenant.Clone(), nil
		}
	}
	return nil, store.ErrTenantNotFound
}

// List returns all tenants ordered by primary domain.
func (s *TenantStore) List(ctx context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]*models.Tenant, 0, len(s.tenants))
	for _, tenant := range s.tenants {
		tenants = append(tenants, tenant.Clone())
	}
	sortTenants(tenants)
	return tenants, nil
}

// ListSyncable returns active tenants with sync enabled, ordered by primary
// domain.
func (s *TenantStore) ListSyncable(ctx context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tenants []*models.Tenant
	for _, tenant := range s.tenants {
		if tenant.Active && tenant.SyncEnabled {
			tenants = append(tenants, tenant.Clone())
		}
	}
	sortTenants(tenants)
	return tenants, nil
}

// Update updates an existing tenant.
func (s *TenantStore) Update(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenant.TenantID]; !ok {
		return store.ErrTenantNotFound
	}

	clone := tenant.Clone()
	clone.UpdatedAt = time.Now()
	s.tenants[clone.TenantID] = clone
	return nil
}

// SetSyncStatus records the outcome of the tenant's most recent run.
func (s *TenantStore) SetSyncStatus(ctx context.Context, tenantID uuid.UUID, status models.RunStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return store.ErrTenantNotFound
	}

	syncedAt := at
	tenant.LastSyncAt = &syncedAt
	tenant.LastSyncStatus = status
	tenant.UpdatedAt = time.Now()
	return nil
}

func sortTenants(tenants []*models.Tenant) {
	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].PrimaryDomain < tenants[j].PrimaryDomain
	})
}
