package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// TenantStore implements store.TenantStore using PostgreSQL.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a new PostgreSQL-backed tenant store. It shares the
// connection pool with the other stores.
func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

const tenantColumns = `
	tenant_id, name, primary_domain, allowed_domains, credentials,
	admin_email, customer_id, default_legal_entity, sync_enabled,
	sync_interval_secs, last_sync_at, last_sync_status, active,
	created_at, updated_at
`

// Create creates a new tenant.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.TenantID == uuid.Nil {
		tenant.TenantID = uuid.Must(uuid.NewV7())
	}
	now := time.Now()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		tenant.TenantID,
		tenant.Name,
		strings.ToLower(tenant.PrimaryDomain),
		tenant.AllowedDomains,
		tenant.Credentials,
		tenant.AdminEmail,
		tenant.CustomerID,
		tenant.DefaultLegalEntity,
		tenant.SyncEnabled,
		int64(tenant.SyncInterval/time.Second),
		tenant.LastSyncAt,
		string(tenant.LastSyncStatus),
		tenant.Active,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrTenantAlreadyExists
		}
		return fmt.Errorf("failed to create tenant: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("tenant_id", tenant.TenantID.String()).
		Str("domain", tenant.PrimaryDomain).
		Msg("Created tenant")

	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE tenant_id = $1`
	return s.queryOne(ctx, query, tenantID)
}

// GetByDomain retrieves a tenant by primary domain.
func (s *TenantStore) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE primary_domain = $1`
	return s.queryOne(ctx, query, strings.ToLower(domain))
}

// List returns all tenants ordered by primary domain.
func (s *TenantStore) List(ctx context.Context) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY primary_domain`
	return s.queryMany(ctx, query)
}

// ListSyncable returns active tenants with sync enabled.
func (s *TenantStore) ListSyncable(ctx context.Context) ([]*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE active AND sync_enabled
		ORDER BY primary_domain
	`
	return s.queryMany(ctx, query)
}

// Update updates an existing tenant.
func (s *TenantStore) Update(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()

	query := `
		UPDATE tenants SET
			name = $2,
			primary_domain = $3,
			allowed_domains = $4,
			credentials = $5,
			admin_email = $6,
			customer_id = $7,
			default_legal_entity = $8,
			sync_enabled = $9,
			sync_interval_secs = $10,
			active = $11,
			updated_at = $12
		WHERE tenant_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		tenant.TenantID,
		tenant.Name,
		strings.ToLower(tenant.PrimaryDomain),
		tenant.AllowedDomains,
		tenant.Credentials,
		tenant.AdminEmail,
		tenant.CustomerID,
		tenant.DefaultLegalEntity,
		tenant.SyncEnabled,
		int64(tenant.SyncInterval/time.Second),
		tenant.Active,
		tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}
	return nil
}

// SetSyncStatus records the outcome of the tenant's most recent run.
func (s *TenantStore) SetSyncStatus(ctx context.Context, tenantID uuid.UUID, status models.RunStatus, at time.Time) error {
	query := `
		UPDATE tenants SET
			last_sync_at = $2,
			last_sync_status = $3,
			updated_at = NOW()
		WHERE tenant_id = $1
	`

	result, err := s.pool.Exec(ctx, query, tenantID, at, string(status))
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}
	return nil
}

func (s *TenantStore) queryOne(ctx context.Context, query string, args ...any) (*models.Tenant, error) {
	tenant, err := scanTenant(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", mapPostgresError(err))
	}
	return tenant, nil
}

func (s *TenantStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Tenant, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}
	return tenants, nil
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var (
		tenant       models.Tenant
		intervalSecs int64
		status       string
	)
	err := row.Scan(
		&tenant.TenantID,
		&tenant.Name,
		&tenant.PrimaryDomain,
		&tenant.AllowedDomains,
		&tenant.Credentials,
		&tenant.AdminEmail,
		&tenant.CustomerID,
		&tenant.DefaultLegalEntity,
		&tenant.SyncEnabled,
		&intervalSecs,
		&tenant.LastSyncAt,
		&status,
		&tenant.Active,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tenant.SyncInterval = time.Duration(intervalSecs) * time.Second
	tenant.LastSyncStatus = models.RunStatus(status)
	return &tenant, nil
}
