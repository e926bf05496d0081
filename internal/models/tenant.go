package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tenant represents one configured external directory organization.
// Tenants are owned by admin configuration; the sync engine only reads them
// and writes back last-sync bookkeeping.
type Tenant struct {
	TenantID       uuid.UUID // UUIDv7
	Name           string
	PrimaryDomain  string
	AllowedDomains []string // additional domains whose addresses belong to this tenant

	// Directory connection settings. Credentials is an opaque blob (for the
	// Google adapter, a service account key in JSON form) interpreted only by
	// the directory client. AdminEmail is the directory admin the service
	// account impersonates.
	Credentials []byte
	AdminEmail  string
	CustomerID  string

	DefaultLegalEntity string

	SyncEnabled  bool
	SyncInterval time.Duration

	LastSyncAt     *time.Time
	LastSyncStatus RunStatus

	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Domains returns the primary domain followed by any additional allowed
// domains, all lowercased.
func (t *Tenant) Domains() []string {
	domains := make([]string, 0, len(t.AllowedDomains)+1)
	domains = append(domains, strings.ToLower(t.PrimaryDomain))
	for _, d := range t.AllowedDomains {
		domains = append(domains, strings.ToLower(d))
	}
	return domains
}

// InDomains reports whether the email address belongs to one of the tenant's
// domains. Matching is case-insensitive on the domain part.
func (t *Tenant) InDomains(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range t.Domains() {
		if domain == d {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	clone := *t
	clone.AllowedDomains = append([]string(nil), t.AllowedDomains...)
	clone.Credentials = append([]byte(nil), t.Credentials...)
	if t.LastSyncAt != nil {
		at := *t.LastSyncAt
		clone.LastSyncAt = &at
	}
	return &clone
}
