package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/models"
	"github.com/stafflink/dirsync/internal/store"
)

// SchedulerConfig holds tuning for the background sync scheduler.
type SchedulerConfig struct {
	// CheckInterval is how often tenants are polled for due syncs.
	// Default: 1 minute.
	CheckInterval time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *SchedulerConfig) ApplyDefaults() {
	if c.CheckInterval == 0 {
		c.CheckInterval = time.Minute
	}
}

// Scheduler periodically syncs tenants whose interval has elapsed since
// their last run. Each tick checks every syncable tenant; the per-tenant
// lock makes overlapping ticks harmless.
type Scheduler struct {
	orch    *Orchestrator
	tenants store.TenantStore
	cfg     SchedulerConfig

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewScheduler creates a scheduler over the orchestrator.
func NewScheduler(orch *Orchestrator, tenants store.TenantStore, cfg SchedulerConfig) *Scheduler {
	cfg.ApplyDefaults()
	return &Scheduler{
		orch:    orch,
		tenants: tenants,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the scheduling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
	log.Info().
		Dur("check_interval", s.cfg.CheckInterval).
		Msg("Sync scheduler started")
}

// Stop terminates the scheduling loop and waits for a tick in flight.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick syncs every tenant whose interval has elapsed. Failures are already
// recorded against their runs, so the tick only logs and moves on.
func (s *Scheduler) tick(ctx context.Context) {
	tenants, err := s.tenants.ListSyncable(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler failed to list tenants")
		return
	}

	now := time.Now()
	for _, tenant := range tenants {
		if !s.due(tenant, now) {
			continue
		}
		if _, err := s.orch.syncTenant(ctx, tenant, models.TriggerScheduled, "scheduler"); err != nil {
			// ErrSyncInProgress included: the run is either under way
			// elsewhere or recorded as failed.
			log.Debug().Err(err).
				Str("tenant_id", tenant.TenantID.String()).
				Msg("Scheduled sync not executed")
		}
	}
}

func (s *Scheduler) due(tenant *models.Tenant, now time.Time) bool {
	if tenant.SyncInterval <= 0 {
		return false
	}
	if tenant.LastSyncAt == nil {
		return true
	}
	return now.Sub(*tenant.LastSyncAt) >= tenant.SyncInterval
}
