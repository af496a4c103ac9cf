package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/eventlog/config"
	"example.com/backstage/services/eventlog/internal/cache"
	"example.com/backstage/services/eventlog/internal/metrics"
	"example.com/backstage/services/eventlog/internal/store"
	"example.com/backstage/services/eventlog/internal/tracing"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "eventlog",
		Short: "Postgres-backed event store",
		Long: `Event log stores immutable, content-addressed events in Postgres.

Events can be imported, queried by filter, checked for existence and
soft-deleted in bulk. Deleted ids are remembered and never accepted again.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to display help")
			}
		},
	}
)

// Execute executes the root command. SIGINT and SIGTERM cancel the context
// of the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig loads the configuration and applies its logging settings
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(".", cfgFile)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "failed to load configuration")
	}

	configureLogging(cfg)
	return cfg, nil
}

func configureLogging(cfg config.Config) {
	if cfg.Environment != "development" && cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	switch {
	case debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case os.Getenv("LOG_LEVEL") != "":
		// set from the environment in main
	default:
		level, err := zerolog.ParseLevel(cfg.Logging.Level)
		if err != nil || level == zerolog.NoLevel {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
	}
}

// app holds an open store and the collaborators it was built with
type app struct {
	store   *store.Store
	tracer  tracing.Tracer
	metrics *metrics.Metrics
	cache   *cache.RedisCache
}

// openStore connects the store along with its optional cache and tracer.
// Cache and tracer failures are logged and the store runs without them.
func openStore(ctx context.Context, cfg config.Config) (*app, error) {
	rt := &app{metrics: metrics.NewMetrics()}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Noop()
	}
	rt.tracer = tracer

	opts := []store.Option{
		store.WithTracer(rt.tracer),
		store.WithMetrics(rt.metrics),
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	} else {
		rt.cache = redisCache
		opts = append(opts, store.WithCache(redisCache))
	}

	s, err := store.Open(ctx, cfg, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = s

	return rt, nil
}

// Close releases everything openStore acquired
func (rt *app) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis cache")
		}
	}
	rt.tracer.Close()
}
