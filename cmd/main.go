package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/movierank/internal/adapters/cache"
	"github.com/okian/movierank/internal/adapters/catalog"
	"github.com/okian/movierank/internal/adapters/http/api"
	"github.com/okian/movierank/internal/adapters/http/site"
	"github.com/okian/movierank/internal/adapters/repository"
	app "github.com/okian/movierank/internal/app"
	"github.com/okian/movierank/internal/config"
	"github.com/okian/movierank/internal/supervisor"
	"github.com/okian/movierank/pkg/logger"
	"github.com/okian/movierank/pkg/metrics"
)

// Server and background loop timing.
const (
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 30 * time.Second
	cacheGCInterval           = 10 * time.Minute
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be available yet.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.Catalog.APIKey == "" {
		log.Warn(ctx, "catalog api key is not set; searches will fail until MOVIERANK_CATALOG_API_KEY is provided")
	}

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           comps.handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	tree := supervisor.New("movierank", supervisor.WithShutdownTimeout(shutdownTimeout))
	tree.Add(supervisor.NewHTTPService(srv, shutdownTimeout))
	tree.Add(supervisor.NewTickerService("system-metrics", systemMetricsInterval, func(context.Context) {
		updateSystemMetrics()
	}))
	tree.Add(supervisor.NewTickerService("service-metrics", serviceMetricsInterval, func(ctx context.Context) {
		updateServiceMetrics(ctx, comps.svc)
	}))
	if comps.cache != nil && cfg.Catalog.CachePath != "" {
		tree.Add(supervisor.NewTickerService("cache-gc", cacheGCInterval, func(ctx context.Context) {
			if err := comps.cache.RunGC(); err != nil {
				log.Warn(ctx, "catalog cache gc failed", logger.Error(err))
			}
		}))
	}

	log.Info(ctx, "starting HTTP server",
		logger.String("addr", cfg.Addr),
		logger.Bool("multi_user", cfg.MultiUser()),
	)

	// Blocks until SIGINT/SIGTERM or a service ends the tree.
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}

	log.Info(ctx, "server stopped")
	return nil
}

// components are the long-lived objects behind the HTTP handler.
type components struct {
	handler http.Handler
	svc     *app.Service
	cache   *cache.BadgerCache
}

// Close stops the service (closing the store) and the catalog cache.
func (c *components) Close() {
	c.svc.Stop()
	if c.cache != nil {
		_ = c.cache.Close()
	}
}

// buildComponents opens the store and catalog cache, builds the catalog
// client and service, and mounts the site and ops routes.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	store, err := repository.Open(ctx, cfg.Store.Path,
		repository.WithTimeout(cfg.Store.Timeout),
		repository.WithPersistedRanking(cfg.Store.PersistRanking),
		repository.WithLogger(logger.Named("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	catOpts := []catalog.Option{
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithImageBase(cfg.Catalog.ImageBase),
		catalog.WithAPIKey(cfg.Catalog.APIKey),
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithRateLimit(cfg.Catalog.RatePerSecond, cfg.Catalog.Burst),
		catalog.WithLogger(logger.Named("catalog")),
	}
	var respCache *cache.BadgerCache
	if cfg.Catalog.CacheTTL > 0 {
		respCache, err = cache.Open(cfg.Catalog.CachePath,
			cache.WithTTL(cfg.Catalog.CacheTTL),
			cache.WithLogger(logger.Named("cache")),
		)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to open catalog cache: %w", err)
		}
		catOpts = append(catOpts, catalog.WithCache(respCache))
	}

	svc := app.New(
		app.WithStore(store),
		app.WithCatalog(catalog.New(catOpts...)),
		app.WithOwners(cfg.Owners),
		app.WithLogger(logger.Named("service")),
	)
	comps := &components{svc: svc, cache: respCache}
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		if respCache != nil {
			_ = respCache.Close()
		}
		return nil, fmt.Errorf("failed to start service: %w", err)
	}

	pages, err := site.New(svc, site.WithLogger(logger.Named("site")))
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build site: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
		RateLimitWindow:   cfg.HTTP.RateLimitWindow,
		RateLimitDisabled: cfg.HTTP.RateLimitDisabled,
	})
	api.NewServer(svc, api.WithCORSOrigins(cfg.HTTP.CORSAllowedOrigins)).Register(ctx, router)
	pages.Register(ctx, router)

	comps.handler = router
	return comps, nil
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes the movie gauges; GetStats sets them.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	if _, err := svc.GetStats(ctx); err != nil && ctx.Err() == nil {
		logger.Get().Warn(ctx, "failed to refresh service metrics", logger.Error(err))
	}
}
