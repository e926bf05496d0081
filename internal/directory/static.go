package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/stafflink/dirsync/internal/models"
)

// Static implements Directory over a fixed in-memory user list, keyed by the
// tenant's primary domain. It backs the memory store mode and tests.
type Static struct {
	mu    sync.RWMutex
	users map[string][]models.RemoteUser
	errs  map[string]error
}

// NewStatic creates an empty static directory.
func NewStatic() *Static {
	return &Static{
		users: make(map[string][]models.RemoteUser),
		errs:  make(map[string]error),
	}
}

// SetUsers replaces the user list for a domain.
func (s *Static) SetUsers(domain string, users []models.RemoteUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(domain)] = append([]models.RemoteUser(nil), users...)
}

// SetError makes subsequent fetches for a domain fail with err, or succeed
// again when err is nil.
func (s *Static) SetError(domain string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, strings.ToLower(domain))
		return
	}
	s.errs[strings.ToLower(domain)] = err
}

// ListUsers returns the configured users for the tenant's primary domain.
func (s *Static) ListUsers(ctx context.Context, tenant *models.Tenant) ([]models.RemoteUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domain := strings.ToLower(tenant.PrimaryDomain)
	if err, ok := s.errs[domain]; ok {
		return nil, err
	}
	return append([]models.RemoteUser(nil), s.users[domain]...), nil
}
