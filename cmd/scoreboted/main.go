// scoreboted is the score-reactive prediction-market trading daemon.
// It runs the full pipeline described in the engine package: score-feed
// polling, decisioning, position management, calibration training, and
// the read-only dashboard, following cmd/agentd/main.go's flag/signal
// handling shape.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/oddsignal/scorebot/internal/config"
	"github.com/oddsignal/scorebot/internal/engine"
	"github.com/oddsignal/scorebot/internal/logging"
	"github.com/oddsignal/scorebot/internal/scorefeed"
	"github.com/oddsignal/scorebot/internal/store"

	"go.uber.org/zap"
)

var dryRunOverride = flag.Bool("dry-run", false, "force dry-run mode regardless of DRY_RUN env var")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *dryRunOverride {
		cfg.DryRun = true
	}

	logger, err := logging.New(cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	st, cleanup := newStore(cfg, logger)
	defer cleanup()

	providers := newProviders(cfg)
	if len(providers) == 0 {
		logger.Fatal("no score providers configured; set SCORE_PROVIDER_URLS")
	}

	eng, err := engine.New(cfg, logger, st, providers)
	if err != nil {
		logger.Fatal("wire engine", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go func() {
		errCh <- eng.Run(ctx)
	}()
	go func() {
		promHandler := promhttp.HandlerFor(eng.Metrics().Registry(), promhttp.HandlerOpts{})
		errCh <- eng.DashboardServer().Run(ctx, promHandler)
	}()

	logger.Info("scoreboted running",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Int("providers", len(providers)),
	)

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Error("component exited with error", zap.Error(err))
		}
		cancel()
	}

	// Give the running goroutines a bounded window to unwind after cancel.
	shutdownTimer := time.NewTimer(10 * time.Second)
	defer shutdownTimer.Stop()
	for i := 0; i < 2; i++ {
		select {
		case <-errCh:
		case <-shutdownTimer.C:
			logger.Warn("shutdown timed out waiting for components to exit")
			return
		}
	}
	logger.Info("scoreboted stopped")
}

// newStore wires the persistence layer, falling back to an in-memory
// store when DATABASE_URL is unset, following AMOORCHING-ATMX's
// market-engine cmd/server/main.go bootstrap shape.
func newStore(cfg *config.Config, logger *zap.Logger) (store.Store, func()) {
	var cleanupFns []func()
	cleanup := func() {
		for _, fn := range cleanupFns {
			fn()
		}
	}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return store.NewMemoryStore(), cleanup
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	cleanupFns = append(cleanupFns, pool.Close)
	var st store.Store = store.NewPostgresStore(pool)
	logger.Info("connected to postgres")

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opt)
		cleanupFns = append(cleanupFns, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
		logger.Info("redis read-through cache enabled")
	}

	return st, cleanup
}

// newProviders builds one HTTPProvider per configured score-provider
// endpoint. Concrete provider integrations are a deployment concern; this
// wires whatever endpoints SCORE_PROVIDER_URLS names against the shared
// list-live contract.
func newProviders(cfg *config.Config) []scorefeed.Provider {
	providers := make([]scorefeed.Provider, 0, len(cfg.ScoreProviderURLs))
	for i, url := range cfg.ScoreProviderURLs {
		name := "score-provider-" + strconv.Itoa(i)
		providers = append(providers, scorefeed.NewHTTPProvider(name, url))
	}
	return providers
}
