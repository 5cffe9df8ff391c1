package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arborhq/arbor/internal/logger"
	"github.com/arborhq/arbor/internal/metrics"
	"github.com/arborhq/arbor/pkg/config"
	"github.com/arborhq/arbor/pkg/folder"
	badgerstore "github.com/arborhq/arbor/pkg/store/folder/badger"
	"github.com/arborhq/arbor/pkg/store/folder/postgres"
)

var (
	sweepMaxAge   time.Duration
	sweepInterval time.Duration
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired name reservations",
	Long: `Delete name reservation rows abandoned by crashed transactions.

Reservations never outlive their owning transaction in normal operation;
this sweep is hygiene. Run it once from a scheduler such as cron, or with
--interval as a long-running janitor that also serves Prometheus metrics
when enabled in the configuration.

Examples:
  # Purge reservations expired for longer than an hour
  arbor sweep

  # Purge everything already expired
  arbor sweep --max-age 0

  # Run as a janitor, sweeping every ten minutes
  arbor sweep --interval 10m`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", time.Hour,
		"only purge reservations expired at least this long ago")
	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0,
		"keep running, sweeping at this interval (0 sweeps once and exits)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	backend, closeBackend, err := openBackend(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	var sweepMetrics *folder.ReservationMetrics
	if sweepInterval > 0 && cfg.Metrics.Enabled {
		sweepMetrics = folder.NewReservationMetrics(nil)
	}
	reservations := folder.NewReservations(backend, cfg.Folder.ReservationTTL, sweepMetrics)

	if sweepInterval <= 0 {
		deleted, err := reservations.Sweep(cmd.Context(), sweepMaxAge)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		logger.Info("Reservation sweep complete", "deleted", deleted)
		fmt.Printf("Purged %d expired reservations\n", deleted)
		return nil
	}

	return runSweepLoop(cmd.Context(), cfg, reservations)
}

// runSweepLoop sweeps at the configured interval until the context is
// cancelled, serving the metrics endpoint alongside when enabled.
func runSweepLoop(ctx context.Context, cfg *config.Config, reservations *folder.Reservations) error {
	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Listen)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	logger.Info("Reservation janitor started",
		"interval", sweepInterval, "max_age", sweepMaxAge)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reservation janitor stopping")
			return nil
		case <-ticker.C:
			deleted, err := reservations.Sweep(ctx, sweepMaxAge)
			if err != nil {
				logger.Error("Reservation sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("Reservation sweep complete", "deleted", deleted)
			}
		}
	}
}

// openBackend opens the configured folder backend for an administrative
// command.
func openBackend(cmd *cobra.Command, cfg *config.Config) (folder.Backend, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		store, err := postgres.NewStore(cmd.Context(), cfg.Store.Postgres, logger.Get())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "badger":
		store, err := badgerstore.NewStore(cfg.Store.BadgerPath, logger.Get())
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("backend %q holds no durable reservations", cfg.Store.Backend)
	}
}
