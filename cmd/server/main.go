package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/locking"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	ctx := context.Background()

	// The OTLP log bridge needs a logger of its own before the real one exists
	bootLog, err := logger.New(logger.FromConfig(cfg.Log, cfg.App.Env))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}

	log := bootLog
	if loggerProvider.IsEnabled() {
		core := loggerProvider.Core(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
		if log, err = logger.New(logger.FromConfig(cfg.Log, cfg.App.Env), core); err != nil {
			bootLog.Fatal("Failed to initialize logger", zap.Error(err))
		}
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for name, shutdown := range map[string]func(context.Context) error{
			"tracer": tracerProvider.Shutdown,
			"meter":  meterProvider.Shutdown,
			"logger": loggerProvider.Shutdown,
		} {
			if err := shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down telemetry provider", zap.String("provider", name), zap.Error(err))
			}
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfigFrom(cfg.Telemetry), log); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}
	if sqlDB, err := db.SQL(); err == nil {
		poolMetrics, err := telemetry.NewDBPoolMetrics(meterProvider.Meter(telemetry.LedgerMeterName), sqlDB)
		if err != nil {
			log.Warn("Database pool metrics not registered", zap.Error(err))
		} else {
			defer func() { _ = poolMetrics.Close() }()
		}
	}

	// Position locking
	lockers := locking.NewLockerFactory(cfg.Ledger, cfg.Redis,
		locking.WithLogger(log),
		locking.WithMemoryFallback(cfg.App.Env != "production"),
	)
	defer func() {
		if err := lockers.Close(); err != nil {
			log.Error("Error closing locker backend", zap.Error(err))
		}
	}()
	locker, err := lockers.CreateLocker(ctx)
	if err != nil {
		log.Fatal("Failed to create position locker", zap.Error(err))
	}

	policy := inventoryapp.RetryPolicy{
		MaxRetries:  cfg.Ledger.MaxRetries,
		BaseDelay:   cfg.Ledger.RetryBaseDelay,
		MaxDelay:    cfg.Ledger.RetryMaxDelay,
		LockTimeout: cfg.Ledger.LockTimeout,
	}
	repos := persistence.NewRepositories(db.DB)
	executor := inventoryapp.NewPositionExecutor(
		persistence.NewGormTransactionScope(db.DB, cfg.Ledger.LockTimeout), locker, policy, log,
	)
	clock := shared.NewSystemClock()

	// Application services
	movementService := inventoryapp.NewMovementService(repos, executor, clock, log)
	allocationService := inventoryapp.NewAllocationService(repos, executor, clock, cfg.Ledger.DefaultAllocationTTL, log)
	expirationService := inventoryapp.NewAllocationExpirationService(allocationService, repos, log).
		WithLimits(cfg.Scheduler.SweepBatchSize, cfg.Scheduler.SweepParallelism)
	adjustmentService := inventoryapp.NewAdjustmentService(repos, executor, clock, log)
	transferService := inventoryapp.NewTransferService(repos, executor, clock, cfg.Transfer.RequireDistinctApprover, log)
	receivingService := inventoryapp.NewReceivingService(repos, executor, clock, log)
	reconciliationService := inventoryapp.NewReconciliationService(repos, clock, log)

	// Ledger metrics, fed from domain events and the reserved stock gauge
	ledgerMetrics, err := telemetry.NewLedgerMetrics(
		meterProvider.Meter(telemetry.LedgerMeterName),
		persistence.NewGormPositionRepository(db.DB),
		log,
	)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	defer func() { _ = ledgerMetrics.Close() }()

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	metricsHandler := inventoryapp.NewLedgerMetricsHandler(ledgerMetrics)
	eventBus.Subscribe(metricsHandler)
	auditHandler := event.NewAuditLogHandler(log)
	eventBus.Subscribe(auditHandler)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	for _, publisher := range []interface {
		SetEventPublisher(shared.EventPublisher)
	}{movementService, allocationService, adjustmentService, transferService, receivingService} {
		publisher.SetEventPublisher(eventBus)
	}

	// Background jobs
	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewScheduler(scheduler.ConfigFrom(cfg.Scheduler), clock, log,
			scheduler.NewExpireSweepTask(expirationService, clock, log),
			scheduler.NewReconcileTask(reconciliationService, log),
		)
		jobs.SetObserver(func(job *scheduler.Job, d time.Duration) {
			ledgerMetrics.RecordJob(context.Background(), job.Task, string(job.Status), d)
		})
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobs.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		trigger := scheduler.NewCronTrigger(jobs, log, scheduler.SchedulesFrom(cfg.Scheduler)...)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start job trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping job trigger", zap.Error(err))
			}
		}()
		log.Info("Scheduler started",
			zap.Int("workers", cfg.Scheduler.Workers),
			zap.Duration("sweep_interval", cfg.Scheduler.SweepInterval),
			zap.Bool("reconcile_enabled", cfg.Scheduler.ReconcileEnabled),
		)
	}

	// HTTP
	engine := router.NewEngine(router.EngineOptions{
		Env:       cfg.App.Env,
		HTTP:      cfg.HTTP,
		Telemetry: cfg.Telemetry,
		Meter:     meterProvider,
		Logger:    log,
	})
	router.Mount(engine, router.Handlers{
		Positions:   handler.NewPositionHandler(movementService),
		Movements:   handler.NewMovementHandler(movementService),
		Allocations: handler.NewAllocationHandler(allocationService, expirationService, clock),
		Adjustments: handler.NewAdjustmentHandler(adjustmentService),
		Transfers:   handler.NewTransferHandler(transferService),
		Receipts:    handler.NewReceiptHandler(receivingService),
		Ledger:      handler.NewLedgerHandler(reconciliationService),
		Health:      handler.NewHealthHandler(map[string]handler.Pinger{"database": db}),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}
