// Package reconcile implements the directory reconciliation engine: the
// diff/merge algorithm aligning local employee records to a tenant's remote
// directory, the run recorder, and the orchestrator that drives runs across
// tenants.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// ErrMassDeactivation is returned when the disappearance pass would
// deactivate more of the tenant's synced population than the configured
// fraction allows. A truncated or wrong remote view must fail the run rather
// than terminate most of a tenant.
var ErrMassDeactivation = errors.New("refusing mass deactivation")

// action classifies the outcome of reconciling one remote user.
type action int

const (
	actionCreated action = iota
	actionUpdated
	actionUnchanged
	actionDeactivated
	actionSkipped
)

// ErrorSink receives per-record failures. Recording must never abort the
// run, so sinks are expected to swallow their own errors.
type ErrorSink func(ctx context.Context, email, kind, message string)

// ReconcilerConfig holds tuning for the merge algorithm.
type ReconcilerConfig struct {
	// MaxMissingFraction is the largest share of a tenant's known synced
	// population allowed to disappear from one fetch before the run is
	// failed instead of deactivating. Default: 0.5.
	MaxMissingFraction float64

	// GuardMinPopulation disables the guard below this population size, so
	// small and new tenants can still shrink to zero. Default: 5.
	GuardMinPopulation int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *ReconcilerConfig) ApplyDefaults() {
	if c.MaxMissingFraction == 0 {
		c.MaxMissingFraction = 0.5
	}
	if c.GuardMinPopulation == 0 {
		c.GuardMinPopulation = 5
	}
}

// Reconciler merges one tenant's remote directory listing into the employee
// store. The merge is convergent: reconciling the same remote and local
// state twice produces no material changes on the second pass.
type Reconciler struct {
	employees store.EmployeeStore
	cfg       ReconcilerConfig
}

// NewReconciler creates a reconciler over the given employee store.
func NewReconciler(employees store.EmployeeStore, cfg ReconcilerConfig) *Reconciler {
	cfg.ApplyDefaults()
	return &Reconciler{employees: employees, cfg: cfg}
}

// Reconcile applies the remote user list to the tenant's scope of the
// employee store. Per-record failures go to the sink and processing
// continues; only store scan failures and the mass-deactivation guard fail
// the whole run.
func (r *Reconciler) Reconcile(ctx context.Context, tenant *models.Tenant, remote []models.RemoteUser, sink ErrorSink) (models.SyncCounters, error) {
	var counters models.SyncCounters

	locals, err := r.employees.FindByDomains(ctx, tenant.Domains())
	if err != nil {
		return counters, fmt.Errorf("failed to load local records: %w", err)
	}

	byEmail := make(map[string]*models.Employee, len(locals))
	for _, emp := range locals {
		byEmail[emp.Email] = emp
	}

	seen := make(map[string]struct{}, len(remote))

	for i := range remote {
		ru := &remote[i]
		counters.Processed++

		email := strings.ToLower(ru.PrimaryEmail)
		if email != "" {
			// Customer-scoped listings can include users from domains the
			// tenant does not own. Those belong to other tenants and must
			// never touch this tenant's scope of the store.
			if !tenant.InDomains(email) {
				log.Debug().
					Str("tenant_id", tenant.TenantID.String()).
					Str("email", email).
					Msg("Ignoring remote user outside tenant domains")
				continue
			}
			// Duplicate listing entries are applied once so counters stay
			// truthful.
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
		}

		act, err := r.applyUser(ctx, tenant, ru, email, byEmail[email])
		if err != nil {
			counters.Errors++
			sink(ctx, email, "record", err.Error())
			log.Warn().
				Err(err).
				Str("tenant_id", tenant.TenantID.String()).
				Str("email", email).
				Msg("Skipped remote user")
			continue
		}

		switch act {
		case actionCreated:
			counters.Created++
		case actionUpdated:
			counters.Updated++
		case actionUnchanged:
			counters.Unchanged++
		case actionDeactivated:
			counters.Deactivated++
		}
	}

	// Second pass: synced locals whose email no longer appears in the remote
	// set were removed upstream.
	missing := make([]*models.Employee, 0)
	population := 0
	for _, emp := range locals {
		if !emp.Synced || emp.Status == models.StatusTerminated {
			continue
		}
		population++
		if _, ok := seen[emp.Email]; !ok {
			missing = append(missing, emp)
		}
	}

	if population >= r.cfg.GuardMinPopulation &&
		float64(len(missing)) > r.cfg.MaxMissingFraction*float64(population) {
		return counters, fmt.Errorf("%w: %d of %d synced records missing from remote listing",
			ErrMassDeactivation, len(missing), population)
	}

	now := time.Now()
	for _, emp := range missing {
		if err := r.employees.Deactivate(ctx, emp.EmployeeID, now); err != nil {
			counters.Errors++
			sink(ctx, emp.Email, "deactivate", err.Error())
			continue
		}
		counters.Deactivated++
		log.Info().
			Str("tenant_id", tenant.TenantID.String()).
			Str("email", emp.Email).
			Msg("Deactivated employee absent from directory")
	}

	return counters, nil
}

// applyUser reconciles a single remote user against its local match, if any.
func (r *Reconciler) applyUser(ctx context.Context, tenant *models.Tenant, ru *models.RemoteUser, email string, local *models.Employee) (action, error) {
	if email == "" {
		return actionSkipped, errors.New("remote user has no primary email")
	}

	if ru.Suspended {
		// Suspended users are terminated locally but never materialized.
		if local == nil || local.Status == models.StatusTerminated {
			return actionSkipped, nil
		}
		if err := r.employees.Deactivate(ctx, local.EmployeeID, time.Now()); err != nil {
			return actionSkipped, err
		}
		return actionDeactivated, nil
	}

	if local == nil {
		return r.createEmployee(ctx, tenant, ru, email)
	}
	return r.updateEmployee(ctx, tenant, ru, local)
}

// createEmployee materializes an active remote user with no local match.
// New hires start PENDING; HR confirms activation.
func (r *Reconciler) createEmployee(ctx context.Context, tenant *models.Tenant, ru *models.RemoteUser, email string) (action, error) {
	now := time.Now()
	emp := &models.Employee{
		Email:        email,
		ExternalID:   ru.ID,
		Status:       models.StatusPending,
		LegalEntity:  tenant.DefaultLegalEntity,
		Role:         models.DefaultRole,
		Synced:       true,
		LastSyncedAt: &now,
		TenantID:     tenant.TenantID,
		Overrides:    models.NewFieldSet(),
	}
	applyRemoteFields(emp, ru)

	if err := r.employees.Upsert(ctx, emp); err != nil {
		return actionSkipped, err
	}
	return actionCreated, nil
}

// updateEmployee merges an active remote user into its existing local match.
func (r *Reconciler) updateEmployee(ctx context.Context, tenant *models.Tenant, ru *models.RemoteUser, local *models.Employee) (action, error) {
	changed := applyRemoteFields(local, ru)

	if ru.ID != "" && local.ExternalID != ru.ID {
		local.ExternalID = ru.ID
		changed = true
	}

	// Rehire: a terminated record whose email reappears as active.
	if local.Status == models.StatusTerminated {
		local.Status = models.StatusActive
		local.TerminationDate = nil
		changed = true
	}

	if !local.Synced {
		local.Synced = true
		changed = true
	}
	if local.TenantID != tenant.TenantID {
		local.TenantID = tenant.TenantID
		changed = true
	}

	now := time.Now()
	local.LastSyncedAt = &now

	if err := r.employees.Upsert(ctx, local); err != nil {
		return actionSkipped, err
	}

	if changed {
		return actionUpdated, nil
	}
	return actionUnchanged, nil
}
