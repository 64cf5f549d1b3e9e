package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/minibank/internal/adapter/http"
	"github.com/iho/minibank/internal/adapter/http/handler"
	"github.com/iho/minibank/internal/adapter/http/middleware"
	fileRepo "github.com/iho/minibank/internal/adapter/repository/file"
	memoryRepo "github.com/iho/minibank/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/minibank/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/minibank/internal/adapter/repository/redis"
	"github.com/iho/minibank/internal/infrastructure/auth"
	"github.com/iho/minibank/internal/infrastructure/config"
	"github.com/iho/minibank/internal/infrastructure/idgen"
	"github.com/iho/minibank/internal/infrastructure/logger"
	"github.com/iho/minibank/internal/infrastructure/metrics"
	"github.com/iho/minibank/internal/infrastructure/postgres"
	"github.com/iho/minibank/internal/infrastructure/redis"
	"github.com/iho/minibank/internal/infrastructure/retry"
	"github.com/iho/minibank/internal/usecase"
)

const janitorInterval = 10 * time.Minute

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
}

// storeBackend is an AccountStore that can report readiness.
type storeBackend interface {
	usecase.AccountStore
	handler.Pinger
}

// app is the wired HTTP application.
type app struct {
	handler     http.Handler
	auth        *usecase.AuthUseCase
	rateLimiter *middleware.RateLimiter
	idempotency *memoryRepo.IdempotencyStore
	closers     []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := newApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.AdminPassword != "" {
		if _, err := a.auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return fmt.Errorf("failed to seed admin account: %w", err)
		}
		logger.Info().Str("username", cfg.AdminUsername).Msg("admin account ensured")
	}

	go a.janitor(ctx, logger)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("store", cfg.StoreBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// newApp wires stores, use cases and handlers from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	checks := []handler.Check{{Name: cfg.StoreBackend, Pinger: store}}

	m := metrics.NewWithRegistry(reg)
	retrier := retry.NewRetrier(
		retry.WithMaxRetries(cfg.SaveMaxRetries),
		retry.WithLogger(logger),
		retry.OnRetry(m.StoreConflict),
	)

	var (
		sessions    usecase.SessionStore
		idempotency usecase.IdempotencyStore
	)

	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		logger.Info().Msg("connected to redis")

		sessions = redisRepo.NewSessionStore(redisClient, cfg.SessionTTL)
		idempotency = redisRepo.NewIdempotencyStore(redisClient)
		checks = append(checks, handler.Check{
			Name:   "redis",
			Pinger: redis.NewChecker(redisClient),
		})
	} else {
		sessions = auth.NewJWTManager(cfg.SessionSecret, cfg.SessionTTL)
		a.idempotency = memoryRepo.NewIdempotencyStore()
		idempotency = a.idempotency
	}

	// Initialize use cases
	authUC := usecase.NewAuthUseCase(usecase.AuthConfig{
		Store:    store,
		Sessions: sessions,
		Retrier:  retrier,
		Metrics:  m,
		Logger:   logger,
	})
	ledgerUC := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		Store:          store,
		Retrier:        retrier,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Metrics:        m,
		Logger:         logger,
	})
	reportUC := usecase.NewReportUseCase(store)
	a.auth = authUC

	// Initialize handlers
	renderer, err := handler.NewRenderer()
	if err != nil {
		a.Close()
		return nil, err
	}
	cookies := middleware.NewCookies(cfg.CookieSecure, cfg.SessionTTL)

	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)
	}

	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authUC, renderer, cookies, logger),
		LedgerHandler:  handler.NewLedgerHandler(ledgerUC, idgen.NewULIDGenerator(), renderer, cookies, logger),
		ReportHandler:  handler.NewReportHandler(reportUC, renderer, cookies, logger),
		HealthHandler:  handler.NewHealthHandler(checks...).WithLogger(logger),
		Sessions:       authUC,
		Cookies:        cookies,
		Logger:         logger,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		RateLimiter:    a.rateLimiter,
	})

	return a, nil
}

// openStore opens the configured account store backend.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storeBackend, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		if err := migrateUp(cfg.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}

		connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
		defer cancel()

		pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		logger.Info().Msg("connected to postgres")

		return postgresRepo.NewStore(pool), pool.Close, nil
	default:
		logger.Info().Str("path", cfg.StorePath).Msg("using file store")
		return fileRepo.NewStore(cfg.StorePath), func() {}, nil
	}
}

func migrateUp(databaseURL string, logger zerolog.Logger) error {
	migrator, err := postgres.NewMigrator(databaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// janitor periodically drops idle rate limiters and expired idempotency keys.
func (a *app) janitor(ctx context.Context, logger zerolog.Logger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiters, keys := 0, 0
			if a.rateLimiter != nil {
				limiters = a.rateLimiter.CleanupLimiters(janitorInterval)
			}
			if a.idempotency != nil {
				keys = a.idempotency.Purge()
			}
			logger.Debug().Int("limiters", limiters).Int("idempotency_keys", keys).Msg("janitor pass")
		}
	}
}
