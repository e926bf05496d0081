package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/httpapi"
	"github.com/stafflink/dirsync/internal/logger"
	"github.com/stafflink/dirsync/internal/reconcile"
	"github.com/stafflink/dirsync/internal/telemetry"
)

// ServeCmd runs the long-lived sync service: the JSON API plus the
// background scheduler.
type ServeCmd struct {
	Listen            string        `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"DIRSYNC_LISTEN"`
	Scheduler         bool          `help:"run the background sync scheduler" default:"true" negatable:"" env:"DIRSYNC_SCHEDULER"`
	SchedulerInterval time.Duration `help:"how often the scheduler checks for due tenants" default:"1m" env:"DIRSYNC_SCHEDULER_INTERVAL"`

	Store StoreFlags `embed:""`
	Sync  SyncFlags  `embed:""`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)
	telemetry.Init()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting sync service")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := buildStores(ctx, c.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	orch := buildOrchestrator(stores, c.Sync)

	if c.Scheduler {
		scheduler := reconcile.NewScheduler(orch, stores.Tenants, reconcile.SchedulerConfig{
			CheckInterval: c.SchedulerInterval,
		})
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	srv := httpapi.NewServer(orch, stores.Runs, httpapi.Config{Addr: c.Listen})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		return srv.Shutdown(context.Background())
	}
}
