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

// EmployeeStore implements store.EmployeeStore using PostgreSQL. Every write
// is a single statement, so each record commits atomically.
type EmployeeStore struct {
	pool *pgxpool.Pool
}

// NewEmployeeStore creates a new PostgreSQL-backed employee store.
func NewEmployeeStore(pool *pgxpool.Pool) *EmployeeStore {
	return &EmployeeStore{pool: pool}
}

const employeeColumns = `
	employee_id, email, external_id, given_name, family_name, display_name,
	avatar_url, phone, location, status, termination_date, legal_entity,
	role, synced, last_synced_at, tenant_id, overrides, created_at, updated_at
`

// GetByEmail retrieves an employee by email.
func (s *EmployeeStore) GetByEmail(ctx context.Context, email string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE email = $1`

	emp, err := scanEmployee(s.pool.QueryRow(ctx, query, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", mapPostgresError(err))
	}
	return emp, nil
}

// FindByDomains returns employees whose email belongs to one of the domains.
func (s *EmployeeStore) FindByDomains(ctx context.Context, domains []string) ([]*models.Employee, error) {
	lowered := make([]string, 0, len(domains))
	for _, d := range domains {
		lowered = append(lowered, strings.ToLower(d))
	}

	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE split_part(email, '@', 2) = ANY($1)
		ORDER BY email
	`

	rows, err := s.pool.Query(ctx, query, lowered)
	if err != nil {
		return nil, fmt.Errorf("failed to find employees: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}
	return employees, nil
}

// Upsert creates or replaces the employee keyed by email. The existing row's
// employee_id and created_at are preserved on conflict.
func (s *EmployeeStore) Upsert(ctx context.Context, emp *models.Employee) error {
	if emp.EmployeeID == uuid.Nil {
		emp.EmployeeID = uuid.Must(uuid.NewV7())
	}
	now := time.Now()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = now
	}
	emp.Email = strings.ToLower(emp.Email)

	var tenantID *uuid.UUID
	if emp.TenantID != uuid.Nil {
		tenantID = &emp.TenantID
	}

	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (email) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			given_name = EXCLUDED.given_name,
			family_name = EXCLUDED.family_name,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			phone = EXCLUDED.phone,
			location = EXCLUDED.location,
			status = EXCLUDED.status,
			termination_date = EXCLUDED.termination_date,
			legal_entity = EXCLUDED.legal_entity,
			role = EXCLUDED.role,
			synced = EXCLUDED.synced,
			last_synced_at = EXCLUDED.last_synced_at,
			tenant_id = EXCLUDED.tenant_id,
			overrides = EXCLUDED.overrides,
			updated_at = EXCLUDED.updated_at
		RETURNING employee_id
	`

	err := s.pool.QueryRow(ctx, query,
		emp.EmployeeID,
		emp.Email,
		emp.ExternalID,
		emp.GivenName,
		emp.FamilyName,
		emp.DisplayName,
		emp.AvatarURL,
		emp.Phone,
		emp.Location,
		string(emp.Status),
		emp.TerminationDate,
		emp.LegalEntity,
		emp.Role,
		emp.Synced,
		emp.LastSyncedAt,
		tenantID,
		emp.Overrides.Slice(),
		emp.CreatedAt,
		now,
	).Scan(&emp.EmployeeID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to upsert employee: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("employee_id", emp.EmployeeID.String()).
		Str("email", emp.Email).
		Msg("Upserted employee")

	return nil
}

// Deactivate marks the employee TERMINATED with the given termination date.
func (s *EmployeeStore) Deactivate(ctx context.Context, employeeID uuid.UUID, at time.Time) error {
	query := `
		UPDATE employees SET
			status = $2,
			termination_date = $3,
			updated_at = NOW()
		WHERE employee_id = $1
	`

	result, err := s.pool.Exec(ctx, query, employeeID, string(models.StatusTerminated), at)
	if err != nil {
		return fmt.Errorf("failed to deactivate employee: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrEmployeeNotFound
	}
	return nil
}

// SetOverrides replaces the employee's manual override field set.
func (s *EmployeeStore) SetOverrides(ctx context.Context, employeeID uuid.UUID, fields models.FieldSet) error {
	query := `
		UPDATE employees SET
			overrides = $2,
			updated_at = NOW()
		WHERE employee_id = $1
	`

	result, err := s.pool.Exec(ctx, query, employeeID, fields.Slice())
	if err != nil {
		return fmt.Errorf("failed to set overrides: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var (
		emp       models.Employee
		status    string
		tenantID  *uuid.UUID
		overrides []string
	)
	err := row.Scan(
		&emp.EmployeeID,
		&emp.Email,
		&emp.ExternalID,
		&emp.GivenName,
		&emp.FamilyName,
		&emp.DisplayName,
		&emp.AvatarURL,
		&emp.Phone,
		&emp.Location,
		&status,
		&emp.TerminationDate,
		&emp.LegalEntity,
		&emp.Role,
		&emp.Synced,
		&emp.LastSyncedAt,
		&tenantID,
		&overrides,
		&emp.CreatedAt,
		&emp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	emp.Status = models.EmployeeStatus(status)
	if tenantID != nil {
		emp.TenantID = *tenantID
	}
	set, err := models.ParseFieldSet(overrides)
	if err != nil {
		return nil, fmt.Errorf("invalid overrides for %s: %w", emp.Email, err)
	}
	emp.Overrides = set
	return &emp, nil
}
