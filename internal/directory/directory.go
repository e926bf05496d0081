// Package directory fetches and normalizes user records from external
// identity directories.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stafflink/dirsync/internal/models"
)

// Sentinel errors for directory fetch failures. Any error returned by
// ListUsers fails the whole fetch; a partially fetched page set is never
// handed to the reconciler, because an incomplete remote view is
// indistinguishable from mass removals.
var (
	// ErrAuthentication means the tenant's credentials were rejected.
	// Never retried.
	ErrAuthentication = errors.New("directory authentication failed")

	// ErrTransport covers network failures and remote server errors.
	ErrTransport = errors.New("directory transport error")
)

// RateLimitError is returned when the remote directory throttled the fetch
// past the adapter's retry budget. RetryAfter carries the remote's hint when
// one was provided.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("directory rate limited, retry after %s", e.RetryAfter)
	}
	return "directory rate limited"
}

// Directory lists the users of a tenant's external directory.
type Directory interface {
	// ListUsers fetches every user for the tenant, following pagination until
	// the remote reports no further pages, and normalizes each record.
	// Returns ErrAuthentication, *RateLimitError or ErrTransport on failure.
	ListUsers(ctx context.Context, tenant *models.Tenant) ([]models.RemoteUser, error)
}
