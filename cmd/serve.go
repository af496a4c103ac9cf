package cmd

import (
	"context"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/eventlog/internal/api"
	"example.com/backstage/services/eventlog/internal/event"
	"example.com/backstage/services/eventlog/internal/metrics"
	"example.com/backstage/services/eventlog/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the store with its operational endpoints",
	Long: `Open the store, ensure the schema and serve /health, /metrics and
/debug/pool while a scheduled job samples store statistics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, ctx := errgroup.WithContext(cmd.Context())

	server := api.NewServer(cfg.Server, rt.metrics, rt.tracer, rt.store)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Stats.Interval),
			gocron.NewTask(func() {
				collectStats(ctx, rt.store, rt.metrics)
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}

		log.Info().Dur("interval", cfg.Stats.Interval).Msg("Starting stats job")
		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Serve error")
		return err
	}

	log.Info().Msg("Event store shutting down gracefully")
	return nil
}

// collectStats samples database health, pool usage and the number of live
// events into m
func collectStats(ctx context.Context, s *store.Store, m *metrics.Metrics) {
	if err := s.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		m.SetHealth("database", false)
		return
	}
	m.SetHealth("database", true)

	stats := s.Stats()
	m.SetGauge("db.open_connections", int64(stats.OpenConnections))
	m.SetGauge("db.in_use", int64(stats.InUse))
	m.SetGauge("db.idle", int64(stats.Idle))
	m.SetGauge("db.wait_count", stats.WaitCount)

	live, err := s.Count(ctx, event.NewFilter())
	if err != nil {
		return
	}
	m.SetGauge("events.live", int64(live))

	log.Debug().
		Int("live_events", live).
		Int("open_connections", stats.OpenConnections).
		Msg("Collected store stats")
}
