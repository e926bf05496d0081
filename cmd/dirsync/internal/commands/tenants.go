package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/logger"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
	"gopkg.in/yaml.v3"
)

// TenantsCmd manages the tenant registry.
type TenantsCmd struct {
	Apply TenantsApplyCmd `cmd:"" help:"Create or update tenants from a YAML file"`
	List  TenantsListCmd  `cmd:"" help:"List configured tenants"`
}

// TenantsApplyCmd loads tenant definitions from YAML and upserts them by
// primary domain. Existing tenants keep their id and last-sync bookkeeping.
type TenantsApplyCmd struct {
	File string `arg:"" help:"Path to the tenants YAML file" type:"existingfile"`

	Store StoreFlags `embed:""`
}

// tenantsFile is the on-disk YAML shape.
type tenantsFile struct {
	Tenants []tenantSpec `yaml:"tenants"`
}

type tenantSpec struct {
	Name               string        `yaml:"name"`
	PrimaryDomain      string        `yaml:"primary_domain"`
	AllowedDomains     []string      `yaml:"allowed_domains"`
	CredentialsFile    string        `yaml:"credentials_file"`
	AdminEmail         string        `yaml:"admin_email"`
	CustomerID         string        `yaml:"customer_id"`
	DefaultLegalEntity string        `yaml:"default_legal_entity"`
	SyncEnabled        bool          `yaml:"sync_enabled"`
	SyncInterval       time.Duration `yaml:"sync_interval"`
	Active             *bool         `yaml:"active"`
}

func (s *tenantSpec) validate() error {
	if s.PrimaryDomain == "" {
		return errors.New("primary_domain is required")
	}
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.SyncEnabled && s.AdminEmail == "" {
		return errors.New("admin_email is required when sync is enabled")
	}
	return nil
}

func (c *TenantsApplyCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read tenants file: %w", err)
	}

	var file tenantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse tenants file: %w", err)
	}
	if len(file.Tenants) == 0 {
		return errors.New("tenants file defines no tenants")
	}

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	for i := range file.Tenants {
		spec := &file.Tenants[i]
		if err := spec.validate(); err != nil {
			return fmt.Errorf("tenant %q: %w", spec.PrimaryDomain, err)
		}
		if err := applyTenant(ctx, stores.Tenants, spec); err != nil {
			return fmt.Errorf("tenant %q: %w", spec.PrimaryDomain, err)
		}
	}

	log.Info().Int("tenants", len(file.Tenants)).Msg("Tenant registry applied")
	return nil
}

// applyTenant upserts one tenant spec keyed by primary domain.
func applyTenant(ctx context.Context, tenants store.TenantStore, spec *tenantSpec) error {
	var credentials []byte
	if spec.CredentialsFile != "" {
		data, err := os.ReadFile(spec.CredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to read credentials file: %w", err)
		}
		credentials = data
	}

	domain := strings.ToLower(spec.PrimaryDomain)
	existing, err := tenants.GetByDomain(ctx, domain)
	switch {
	case errors.Is(err, store.ErrTenantNotFound):
		tenant := &models.Tenant{
			Name:               spec.Name,
			PrimaryDomain:      domain,
			AllowedDomains:     lowered(spec.AllowedDomains),
			Credentials:        credentials,
			AdminEmail:         spec.AdminEmail,
			CustomerID:         spec.CustomerID,
			DefaultLegalEntity: spec.DefaultLegalEntity,
			SyncEnabled:        spec.SyncEnabled,
			SyncInterval:       spec.SyncInterval,
			Active:             spec.Active == nil || *spec.Active,
		}
		if err := tenants.Create(ctx, tenant); err != nil {
			return err
		}
		log.Info().Str("domain", domain).Msg("Tenant created")
		return nil

	case err != nil:
		return err
	}

	existing.Name = spec.Name
	existing.AllowedDomains = lowered(spec.AllowedDomains)
	if credentials != nil {
		existing.Credentials = credentials
	}
	existing.AdminEmail = spec.AdminEmail
	existing.CustomerID = spec.CustomerID
	existing.DefaultLegalEntity = spec.DefaultLegalEntity
	existing.SyncEnabled = spec.SyncEnabled
	existing.SyncInterval = spec.SyncInterval
	if spec.Active != nil {
		existing.Active = *spec.Active
	}

	if err := tenants.Update(ctx, existing); err != nil {
		return err
	}
	log.Info().Str("domain", domain).Msg("Tenant updated")
	return nil
}

func lowered(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		out = append(out, strings.ToLower(d))
	}
	return out
}

// TenantsListCmd lists configured tenants without their credentials.
type TenantsListCmd struct {
	Store StoreFlags `embed:""`
}

func (c *TenantsListCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	tenants, err := stores.Tenants.List(ctx)
	if err != nil {
		return err
	}

	type row struct {
		TenantID       string     `json:"tenant_id"`
		Name           string     `json:"name"`
		PrimaryDomain  string     `json:"primary_domain"`
		SyncEnabled    bool       `json:"sync_enabled"`
		Active         bool       `json:"active"`
		LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
		LastSyncStatus string     `json:"last_sync_status,omitempty"`
	}

	rows := make([]row, 0, len(tenants))
	for _, t := range tenants {
		rows = append(rows, row{
			TenantID:       t.TenantID.String(),
			Name:           t.Name,
			PrimaryDomain:  t.PrimaryDomain,
			SyncEnabled:    t.SyncEnabled,
			Active:         t.Active,
			LastSyncAt:     t.LastSyncAt,
			LastSyncStatus: string(t.LastSyncStatus),
		})
	}
	return printJSON(rows)
}
