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

// EmployeeStore implements store.EmployeeStore using in-memory storage.
type EmployeeStore struct {
	mu        sync.RWMutex
	byEmail   map[string]*models.Employee
	emailByID map[uuid.UUID]string
}

// NewEmployeeStore creates a new in-memory employee store.
func NewEmployeeStore() *EmployeeStore {
	return &EmployeeStore{
		byEmail:   make(map[string]*models.Employee),
		emailByID: make(map[uuid.UUID]string),
	}
}

// GetByEmail retrieves an employee by email.
func (s *EmployeeStore) GetByEmail(ctx context.Context, email string) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrEmployeeNotFound
	}
	return emp.Clone(), nil
}

// FindByDomains returns employees whose email belongs to one of the domains,
// ordered by email.
func (s *EmployeeStore) FindByDomains(ctx context.Context, domains []string) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suffixes := make([]string, 0, len(domains))
	for _, d := range domains {
		suffixes = append(suffixes, "@"+strings.ToLower(d))
	}

	var employees []*models.Employee
	for email, emp := range s.byEmail {
		for _, suffix := range suffixes {
			if strings.HasSuffix(email, suffix) {
				employees = append(employees, emp.Clone())
				break
			}
		}
	}

	sort.Slice(employees, func(i, j int) bool {
		return employees[i].Email < employees[j].Email
	})
	return employees, nil
}

// Upsert creates or replaces the employee keyed by email.
func (s *EmployeeStore) Upsert(ctx context.Context, emp *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	clone := emp.Clone()
	clone.Email = strings.ToLower(clone.Email)

	existing, ok := s.byEmail[clone.Email]
	if ok {
		clone.EmployeeID = existing.EmployeeID
		clone.CreatedAt = existing.CreatedAt
	} else {
		if clone.EmployeeID == uuid.Nil {
			clone.EmployeeID = uuid.Must(uuid.NewV7())
		}
		if clone.CreatedAt.IsZero() {
			clone.CreatedAt = now
		}
	}
	clone.UpdatedAt = now

	s.byEmail[clone.Email] = clone
	s.emailByID[clone.EmployeeID] = clone.Email

	emp.EmployeeID = clone.EmployeeID
	return nil
}

// Deactivate marks the employee TERMINATED with the given termination date.
func (s *EmployeeStore) Deactivate(ctx context.Context, employeeID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emailByID[employeeID]
	if !ok {
		return store.ErrEmployeeNotFound
	}

	emp := s.byEmail[email]
	terminated := at
	emp.Status = models.StatusTerminated
	emp.TerminationDate = &terminated
	emp.UpdatedAt = time.Now()
	return nil
}

// SetOverrides replaces the employee's manual override field set.
func (s *EmployeeStore) SetOverrides(ctx context.Context, employeeID uuid.UUID, fields models.FieldSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emailByID[employeeID]
	if !ok {
		return store.ErrEmployeeNotFound
	}

	emp := s.byEmail[email]
	emp.Overrides = fields.Clone()
	emp.UpdatedAt = time.Now()
	return nil
}
