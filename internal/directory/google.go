package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/stafflink/dirsync/internal/models"
)

// GoogleConfig holds configuration for the Google Workspace directory client.
type GoogleConfig struct {
	// PageSize is the number of users requested per page. Default: 200,
	// capped at the API maximum of 500.
	PageSize int64

	// FetchTimeout bounds one whole ListUsers call, all pages included.
	// Default: 5 minutes.
	FetchTimeout time.Duration

	// MaxPageRetries bounds retries of a rate-limited or transiently failing
	// page request. Default: 4.
	MaxPageRetries uint

	// Endpoint overrides the API base URL. Used by tests.
	Endpoint string

	// HTTPClient overrides the impersonated OAuth client. Used by tests.
	HTTPClient *http.Client
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *GoogleConfig) ApplyDefaults() {
	if c.PageSize <= 0 || c.PageSize > 500 {
		c.PageSize = 200
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 5 * time.Minute
	}
	if c.MaxPageRetries == 0 {
		c.MaxPageRetries = 4
	}
}

// GoogleDirectory implements Directory against the Google Workspace Admin
// SDK. Each fetch authenticates with the tenant's service account key,
// impersonating the tenant's admin via domain-wide delegation.
type GoogleDirectory struct {
	cfg GoogleConfig
}

// NewGoogleDirectory creates a Google Workspace directory client.
func NewGoogleDirectory(cfg GoogleConfig) *GoogleDirectory {
	cfg.ApplyDefaults()
	return &GoogleDirectory{cfg: cfg}
}

// ListUsers fetches all users for the tenant, page by page.
func (g *GoogleDirectory) ListUsers(ctx context.Context, tenant *models.Tenant) ([]models.RemoteUser, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.FetchTimeout)
	defer cancel()

	svc, err := g.service(ctx, tenant)
	if err != nil {
		return nil, err
	}

	var (
		users     []models.RemoteUser
		pageToken string
		pages     int
	)

	for {
		page, err := g.fetchPage(ctx, svc, tenant, pageToken)
		if err != nil {
			return nil, err
		}
		pages++

		for _, u := range page.Users {
			users = append(users, normalizeUser(u))
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	log.Debug().
		Str("tenant_id", tenant.TenantID.String()).
		Int("users", len(users)).
		Int("pages", pages).
		Msg("Fetched directory users")

	return users, nil
}

// service builds an Admin SDK client for the tenant. The service account key
// in the tenant's credentials is exchanged for a JWT client impersonating
// the tenant's directory admin.
func (g *GoogleDirectory) service(ctx context.Context, tenant *models.Tenant) (*admin.Service, error) {
	var opts []option.ClientOption

	if g.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(g.cfg.HTTPClient))
	} else {
		jwtCfg, err := google.JWTConfigFromJSON(tenant.Credentials, admin.AdminDirectoryUserReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid service account key: %v", ErrAuthentication, err)
		}
		jwtCfg.Subject = tenant.AdminEmail
		opts = append(opts, option.WithHTTPClient(jwtCfg.Client(ctx)))
	}

	if g.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.cfg.Endpoint))
	}

	svc, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return svc, nil
}

// fetchPage requests one page of users, retrying rate-limited and transient
// failures with exponential backoff. Authentication failures are permanent.
func (g *GoogleDirectory) fetchPage(ctx context.Context, svc *admin.Service, tenant *models.Tenant, pageToken string) (*admin.Users, error) {
	var lastErr error

	operation := func() (*admin.Users, error) {
		call := svc.Users.List().MaxResults(g.cfg.PageSize).OrderBy("email")
		if tenant.CustomerID != "" {
			call = call.Customer(tenant.CustomerID)
		} else {
			call = call.Domain(tenant.PrimaryDomain)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Context(ctx).Do()
		if err == nil {
			return page, nil
		}

		classified := classify(err)
		lastErr = classified

		if errors.Is(classified, ErrAuthentication) {
			return nil, backoff.Permanent(classified)
		}

		var rl *RateLimitError
		if errors.As(classified, &rl) && rl.RetryAfter > 0 {
			log.Warn().
				Str("tenant_id", tenant.TenantID.String()).
				Dur("retry_after", rl.RetryAfter).
				Msg("Directory rate limited, honoring retry hint")
			return nil, backoff.RetryAfter(int(rl.RetryAfter.Seconds()))
		}

		return nil, classified
	}

	page, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(g.cfg.MaxPageRetries),
	)
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return page, nil
}

// classify maps Google API and transport errors onto the adapter's error
// taxonomy.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token exchange rejected: %v", ErrAuthentication, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		case gerr.Code == http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: retryAfterHint(gerr)}
		default:
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// retryAfterHint reads the Retry-After response header, in seconds.
func retryAfterHint(gerr *googleapi.Error) time.Duration {
	if gerr.Header == nil {
		return 0
	}
	secs, err := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// normalizeUser converts an Admin SDK user into the engine's RemoteUser.
// Phones and locations arrive untyped from the SDK.
func normalizeUser(u *admin.User) models.RemoteUser {
	ru := models.RemoteUser{
		ID:           u.Id,
		PrimaryEmail: strings.ToLower(u.PrimaryEmail),
		Suspended:    u.Suspended,
		AvatarURL:    u.ThumbnailPhotoUrl,
		Attributes:   map[string]any{},
	}

	if u.Name != nil {
		ru.GivenName = u.Name.GivenName
		ru.FamilyName = u.Name.FamilyName
		ru.DisplayName = u.Name.FullName
	}

	ru.Phone = primaryPhone(u.Phones)
	ru.Location = firstLocation(u.Locations)

	if u.OrgUnitPath != "" {
		ru.Attributes["org_unit_path"] = u.OrgUnitPath
	}

	return ru
}

// primaryPhone picks the phone marked primary, falling back to the first
// entry.
func primaryPhone(raw any) string {
	entries, ok := raw.([]any)
	if !ok {
		return ""
	}

	var first string
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		value, _ := entry["value"].(string)
		if value == "" {
			continue
		}
		if first == "" {
			first = value
		}
		if primary, _ := entry["primary"].(bool); primary {
			return value
		}
	}
	return first
}

// firstLocation returns the area of the first location entry, falling back
// to its building id.
func firstLocation(raw any) string {
	entries, ok := raw.([]any)
	if !ok {
		return ""
	}

	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if area, _ := entry["area"].(string); area != "" {
			return area
		}
		if building, _ := entry["buildingId"].(string); building != "" {
			return building
		}
	}
	return ""
}
