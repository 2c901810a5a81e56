package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/ledgerclose/internal/adapter/http"
	"github.com/iho/ledgerclose/internal/adapter/http/handler"
	apimiddleware "github.com/iho/ledgerclose/internal/adapter/http/middleware"
	"github.com/iho/ledgerclose/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/ledgerclose/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgerclose/internal/adapter/repository/redis"
	"github.com/iho/ledgerclose/internal/infrastructure/config"
	"github.com/iho/ledgerclose/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgerclose/internal/infrastructure/logger"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
	"github.com/iho/ledgerclose/internal/infrastructure/postgres"
	"github.com/iho/ledgerclose/internal/infrastructure/redis"
	"github.com/iho/ledgerclose/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, appLogger, prometheus.NewRegistry())
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server failed")
		return
	}

	appLogger.Info().Msg("server stopped")
}

type ledgerPort interface {
	usecase.LedgerReader
	usecase.LedgerWriter
}

// ports are the storage adapters the use cases run on.
type ports struct {
	txManager   usecase.TransactionManager
	locker      usecase.TenantLocker
	directory   usecase.AccountDirectory
	ledger      ledgerPort
	snapshots   usecase.SnapshotRepository
	comparisons usecase.ComparisonRepository
	closes      usecase.CloseRepository
	payments    usecase.PaymentRepository
	outbox      usecase.OutboxRepository
}

type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	server    *http.Server
	publisher *eventpublisher.EventPublisher
	limiter   *apimiddleware.RateLimiter
	// background runs until the server context ends.
	background []func(ctx context.Context)
	closers    []func()
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, registry *prometheus.Registry) (*app, error) {
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &app{cfg: cfg, logger: logger}
	var (
		p        ports
		checkers []handler.Checker
		retrier  usecase.Retrier
	)

	switch cfg.StorageDriver {
	case config.DriverMemory:
		store := memory.NewStore()
		p = ports{
			txManager:   store,
			locker:      store,
			directory:   store,
			ledger:      store,
			snapshots:   memory.NewSnapshotRepository(store),
			comparisons: memory.NewComparisonRepository(store),
			closes:      memory.NewCloseRepository(store),
			payments:    memory.NewPaymentRepository(store),
			outbox:      memory.NewOutboxRepository(store),
		}
		logger.Warn().Msg("using in-memory storage, data is lost on restart")

	default:
		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info().Msg("connected to postgres")

		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			a.Close()
			return nil, err
		}

		ledgerRepo := postgresRepo.NewLedgerRepository(pool)
		p = ports{
			txManager:   postgresRepo.NewTxManager(pool),
			locker:      ledgerRepo,
			directory:   ledgerRepo,
			ledger:      ledgerRepo,
			snapshots:   postgresRepo.NewSnapshotRepository(pool),
			comparisons: postgresRepo.NewComparisonRepository(pool),
			closes:      postgresRepo.NewCloseRepository(pool),
			payments:    postgresRepo.NewPaymentRepository(pool),
			outbox:      postgresRepo.NewOutboxRepository(pool),
		}
		checkers = append(checkers, postgres.HealthCheck{Pool: pool})
		retrier = postgresRepo.NewRetrier(logger)
		a.background = append(a.background, func(ctx context.Context) {
			postgres.ReportPoolStats(ctx, pool, m.DBConnections, 15*time.Second)
		})
	}

	var (
		cache            usecase.Cache
		idempotencyStore usecase.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		logger.Info().Msg("connected to redis")

		cache = redisRepo.NewCache(client).WithMetrics(m)
		idempotencyStore = redisRepo.NewIdempotencyStore(client)
		checkers = append(checkers, redis.HealthCheck{Client: client})
	} else {
		logger.Warn().Msg("REDIS_URL is empty, comparison cache and idempotency keys are disabled")
	}

	idGen := postgresRepo.NewULIDGenerator()
	generator := usecase.NewGenerator(p.directory, p.ledger, idGen, nil)

	snapshotUC := usecase.NewSnapshotUseCase(p.txManager, generator, p.snapshots, p.outbox, idGen, nil, logger, m)
	comparisonUC := usecase.NewComparisonUseCase(p.snapshots, p.comparisons, cache, idGen, nil, cfg.ComparisonCacheTTL, logger, m)
	closeUC := usecase.NewCloseUseCase(p.txManager, p.locker, generator, p.ledger, p.snapshots, p.closes, p.outbox, idGen, nil, logger, m)
	allocationUC := usecase.NewAllocationUseCase(p.txManager, p.locker, p.payments, p.outbox, idGen, nil, logger, m)
	ledgerUC := usecase.NewLedgerUseCase(p.directory, p.ledger)

	a.limiter = apimiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	defaults := cfg.ReportingSettings()

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		SnapshotHandler:   handler.NewSnapshotHandler(snapshotUC, defaults),
		ComparisonHandler: handler.NewComparisonHandler(comparisonUC),
		CloseHandler:      handler.NewCloseHandler(closeUC, defaults),
		PaymentHandler:    handler.NewPaymentHandler(allocationUC),
		LedgerHandler:     handler.NewLedgerHandler(ledgerUC),
		HealthHandler:     handler.NewHealthHandler(checkers...),
		Logger:            logger,
		Metrics:           m,
		Gatherer:          registry,
		RateLimiter:       a.limiter,
		IdempotencyStore:  idempotencyStore,
		IdempotencyTTL:    cfg.IdempotencyTTL,
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: p.outbox,
		Publisher:  eventpublisher.NewLogPublisher(logger),
		Retrier:    retrier,
		Metrics:    m,
		Logger:     logger,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
	})

	return a, nil
}

// Run serves HTTP and runs the background workers until ctx is cancelled,
// then shuts the server down gracefully.
func (a *app) Run(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := a.publisher.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error().Err(err).Msg("event publisher stopped")
		}
	}()
	go a.cleanupLimiters(workerCtx)
	for _, fn := range a.background {
		go fn(workerCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("port", a.cfg.HTTPPort).Str("storage", a.cfg.StorageDriver).Msg("starting server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer shutdownCancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (a *app) cleanupLimiters(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.CleanupLimiters(time.Hour)
		}
	}
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
