package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/auth"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/cache"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/event"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/logger"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/migration"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/persistence"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/scheduler"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/storage"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/telemetry"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/handler"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/middleware"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/router"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout        = 30 * time.Second
	portfolioMetricsPeriod = time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Bootstrap logger, replaced once the OTLP log pipeline is up
	bootLog, err := logger.NewFromConfig(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(rootCtx, telemetry.ConfigFrom(cfg.Telemetry, cfg.App.Env), bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log, err := logger.NewFromConfig(cfg.Log, providers.Logs.Core(level))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting loan engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := migrateSchema(db, cfg.Database, log); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	dbObserver, err := telemetry.InstrumentGorm(db.DB, providers.Meter, telemetry.DBConfig{
		Tracing:            cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		DBSystem:           dbSystem(cfg.Database.Driver),
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	dbObserver.StartPoolStats(rootCtx)
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Locks and idempotency keys
	backends := cache.NewBackendFactory(cfg.Redis, cfg.Lending, cache.WithLogger(log))
	locker, err := backends.CreateLoanLocker()
	if err != nil {
		log.Fatal("Failed to create loan locker", zap.Error(err))
	}
	idempotency, err := backends.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Domain engine
	policy, err := cfg.Lending.Policy()
	if err != nil {
		log.Fatal("Invalid lending policy", zap.Error(err))
	}
	engine, err := lending.NewEngine(policy)
	if err != nil {
		log.Fatal("Failed to create lending engine", zap.Error(err))
	}

	// Repositories
	loanRepo := persistence.NewGormLoanRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	txScope := persistence.NewGormLendingTransactionScope(db.DB)

	// Domain event subscribers
	bus := event.NewInMemoryEventBus(log)
	dossiers, err := newDossierStore(rootCtx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to create dossier store", zap.Error(err))
	}
	notifier := applending.NewCollectionsNotifier(applending.NewLogNotificationSender(log), log)
	archiver := applending.NewLegalDossierArchiver(loanRepo, paymentRepo, dossiers, cfg.Storage.DossierPrefix, log)
	sweepCollector := telemetry.NewSweepCollector()
	for name, h := range map[string]shared.EventHandler{
		"collections_notifier":   notifier,
		"legal_dossier_archiver": archiver,
	} {
		subscriber := event.NewIdempotentHandler(h, idempotency, log, event.WithHandlerName(name))
		bus.Subscribe(subscriber)
		stats := subscriber.GetMetrics()
		if err := sweepCollector.RegisterHandlerStats(name, stats.EventsProcessed.Load, stats.EventsDuplicate.Load, stats.EventsFailed.Load); err != nil {
			log.Fatal("Failed to register delivery metrics", zap.String("handler", name), zap.Error(err))
		}
	}
	if err := bus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Metrics
	lendingMetrics, err := telemetry.NewLendingMetrics(telemetry.LendingMetricsConfig{
		Meter:             providers.Meter.Meter("lending"),
		Logger:            log,
		PortfolioProvider: telemetry.NewGormPortfolioMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create lending metrics", zap.Error(err))
	}
	lendingMetrics.StartPeriodicCollection(rootCtx, telemetry.NewGormTenantProvider(db.DB), portfolioMetricsPeriod)

	// Application services
	serviceCfg := applending.ServiceConfig{
		Engine:        engine,
		LoanRepo:      loanRepo,
		PaymentRepo:   paymentRepo,
		TxScope:       txScope,
		Locker:        locker,
		Publisher:     bus,
		Metrics:       lendingMetrics,
		Logger:        log,
		MaxAttempts:   cfg.Lending.MaxAttempts,
		DefaultMethod: lending.InterestMethod(cfg.Lending.DefaultMethod),
	}
	loanService := applending.NewLoanService(serviceCfg)
	paymentService := applending.NewPaymentService(serviceCfg)
	delinquencyService := applending.NewDelinquencyService(serviceCfg)
	sweepService := applending.NewSweepService(delinquencyService, applending.SweepConfig{
		Concurrency: cfg.Scheduler.SweepConcurrency,
		Observer:    sweepCollector,
	})

	// Daily sweep
	schedCfg, err := scheduler.ConfigFrom(cfg.Scheduler)
	if err != nil {
		log.Fatal("Invalid scheduler configuration", zap.Error(err))
	}
	sweeps, err := scheduler.NewSweepScheduler(schedCfg, sweepService, log)
	if err != nil {
		log.Fatal("Failed to create sweep scheduler", zap.Error(err))
	}
	if err := sweeps.Start(rootCtx); err != nil {
		log.Fatal("Failed to start sweep scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	httpMetrics, err := middleware.HTTPMetrics(providers.Meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	ginEngine := gin.New()
	if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	ginEngine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(cfg.Telemetry.ServiceName, "/health", "/health/ready", "/metrics"),
		httpMetrics,
		middleware.CORS(cors),
		middleware.SecureHeaders(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	health := handler.NewHealthHandler(sqlDB, version, log)
	ginEngine.GET("/health", health.Live)
	ginEngine.GET("/health/ready", health.Ready)
	if cfg.Telemetry.MetricsEnabled {
		ginEngine.GET("/metrics", gin.WrapH(sweepCollector.Handler()))
	}

	apiMiddleware := []gin.HandlerFunc{
		middleware.OperatorAuth(middleware.AuthConfig{
			Tokens: auth.NewOperatorTokenService(cfg.JWT),
			Logger: log,
		}),
		middleware.SpanEnricher(),
		middleware.Profiling(),
	}
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	api := router.NewRouter(ginEngine, router.WithMiddleware(apiMiddleware...))
	api.Register(router.LendingGroups(router.Handlers{
		Loans:       handler.NewLoanHandler(loanService, time.Now),
		Payments:    handler.NewPaymentHandler(paymentService, time.Now),
		Delinquency: handler.NewDelinquencyHandler(delinquencyService, time.Now),
		Sweeps:      handler.NewSweepHandler(sweeps, time.Now),
		Reports:     handler.NewReportHandler(loanService, time.Now),
	})...)
	api.Setup()
	log.Info("Routes registered", zap.Int("count", len(api.Routes())))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeps.Stop(ctx); err != nil {
		log.Error("Sweep scheduler did not stop cleanly", zap.Error(err))
	}
	if err := bus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if limiter != nil {
		limiter.Stop()
	}
	lendingMetrics.Stop()
	dbObserver.Stop()
	if err := backends.Close(); err != nil {
		log.Error("Error closing cache backends", zap.Error(err))
	}
	if err := providers.Shutdown(ctx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the embedded SQL migrations on PostgreSQL. SQLite
// databases, used for local runs, are created from the GORM models instead.
func migrateSchema(db *persistence.Database, cfg config.DatabaseConfig, log *zap.Logger) error {
	if cfg.Driver == config.DriverSQLite {
		if !cfg.AutoMigrate {
			return nil
		}
		return db.AutoMigrateLending()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	return m.Up()
}

func dbSystem(driver string) string {
	if driver == config.DriverSQLite {
		return "sqlite"
	}
	return "postgresql"
}

// newDossierStore returns the S3 store when object storage is configured and
// an in-process store otherwise
func newDossierStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (applending.DossierStore, error) {
	if !cfg.Enabled {
		log.Warn("Object storage disabled, legal dossiers are kept in memory")
		return storage.NewMemoryDossierStore(), nil
	}
	store, err := storage.NewS3DossierStore(ctx, &cfg, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
