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

	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"petfolio/internal/badges"
	"petfolio/internal/cache"
	"petfolio/internal/config"
	"petfolio/internal/database"
	"petfolio/internal/events"
	badgeapi "petfolio/internal/handlers/api/v1/badges"
	"petfolio/internal/middleware"
	"petfolio/internal/monitoring"
	"petfolio/internal/repositories"
	"petfolio/internal/response"
	"petfolio/internal/router"
	"petfolio/internal/utils/appinfo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Petfolio badge service",
		zap.String("version", appinfo.GetVersion()),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("cache_provider", cfg.Cache.Provider),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Application failed", zap.Error(err))
	}
	logger.Info("Application shutdown completed")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// ===============================
	// STORAGE
	// ===============================

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer cancel()

	dbManager, err := database.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			logger.Error("Failed to close database connections", zap.Error(err))
		}
	}()

	cacheInstance, err := cache.NewCache(cacheConfig(cfg.Cache), logger)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	repos, err := repositories.NewCollection(dbManager, logger, &repositories.RepositoryConfig{
		Cache:         cacheInstance,
		BadgeCacheTTL: cfg.Cache.DefaultTTL,
	})
	if err != nil {
		_ = cacheInstance.Close()
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	defer repos.Close()

	// ===============================
	// EVENTS AND METRICS
	// ===============================

	bus := events.NewEventBus(&events.EventBusConfig{
		HandlerTimeout:   cfg.Events.HandlerTimeout,
		ListenerBuffer:   cfg.Events.ListenerBuffer,
		BacklogThreshold: cfg.Events.BacklogThreshold,
	}, logger)
	if err := bus.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	busStopped := false
	defer func() {
		if !busStopped {
			_ = bus.Stop(context.Background())
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appinfo.RegisterBuildInfo(registry)
	badgeMetrics := monitoring.NewBadgeMetrics(registry)
	httpMetrics := monitoring.NewHTTPMetrics(registry)

	// ===============================
	// BADGE ENGINE
	// ===============================

	engine, err := badges.NewEngine(badges.Dependencies{
		Store:      repos.Badges,
		Activities: repos.Activities,
		Posts:      repos.Posts,
		Pets:       repos.Pets,
		Publisher:  bus,
		Listener:   bus,
		Recorder:   badgeMetrics,
	}, engineConfig(cfg.Badges), logger)
	if err != nil {
		return fmt.Errorf("failed to create badge engine: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.Badges.OperationTimeout)
	if cfg.Server.OwnerID != "" {
		err = engine.StartForUser(startCtx, uuid.FromStringOrNil(cfg.Server.OwnerID))
	} else {
		err = engine.Start(startCtx, nil)
	}
	startCancel()
	if err != nil {
		return fmt.Errorf("failed to start badge engine: %w", err)
	}

	// ===============================
	// HTTP
	// ===============================

	dashboard := monitoring.NewDashboard(logger, appinfo.GetVersion(), cfg.Server.Environment)
	dashboard.Register("database", func(ctx context.Context) error {
		status := dbManager.Health(ctx)
		switch status.Status {
		case database.StatusHealthy, database.StatusDegraded:
			return nil
		}
		return fmt.Errorf("database is %s", status.Status)
	})
	dashboard.Register("events", func(context.Context) error { return bus.Health() })
	dashboard.RegisterOptional("cache", cacheInstance.Health)

	responseConfig := response.DefaultConfig()
	responseConfig.PrettyJSON = cfg.Server.Environment == "development"
	responseConfig.MaskInternalErrors = cfg.Server.Environment == "production"
	responseBuilder := response.NewBuilder(responseConfig, logger)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.SkipPaths = append(loggingConfig.SkipPaths, "/healthz")

	var swaggerConfig *middleware.SwaggerConfig
	if cfg.Server.SwaggerEnabled {
		swaggerConfig = middleware.DefaultSwaggerConfig()
		swaggerConfig.Username = cfg.Server.SwaggerUsername
		swaggerConfig.Password = cfg.Server.SwaggerPassword
	}

	handler := router.SetupRouter(router.Dependencies{
		Badges: badgeapi.NewBadgeController(badgeapi.Dependencies{
			Badges:     engine,
			Activities: repos.Activities,
			Posts:      repos.Posts,
			Bus:        bus,
		}, logger, responseBuilder),
		Dashboard:       dashboard,
		Gatherer:        registry,
		HTTPMetrics:     httpMetrics,
		ResponseBuilder: responseBuilder,
		Logging:         loggingConfig,
		CORSOrigin:      cfg.Server.CORSOrigin,
		Swagger:         swaggerConfig,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// ===============================
	// GRACEFUL SHUTDOWN
	// ===============================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("Shutting down application", zap.String("signal", sig.String()))
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		logger.Error("Badge engine did not stop cleanly", zap.Error(err))
	}
	busStopped = true
	if err := bus.Stop(shutdownCtx); err != nil {
		logger.Error("Event bus did not stop cleanly", zap.Error(err))
	}

	final := dbManager.Metrics()
	logger.Info("Final database metrics",
		zap.Int64("total_queries", final.QueryCount),
		zap.Int64("total_errors", final.ErrorCount),
		zap.Int64("slow_queries", final.SlowQueryCount),
	)

	return runErr
}

func cacheConfig(c config.CacheConfig) *cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Provider = c.Provider
	cfg.TTL = c.DefaultTTL
	cfg.MaxKeys = c.MaxKeys
	cfg.KeyPrefix = c.KeyPrefix
	cfg.RedisURL = c.RedisURL
	cfg.RedisDB = c.RedisDB
	cfg.RedisPassword = c.RedisPassword
	return cfg
}

func engineConfig(c config.BadgesConfig) *badges.Config {
	return &badges.Config{
		Shards:            c.Shards,
		QueueSize:         c.QueueSize,
		ListenerBuffer:    c.ListenerBuffer,
		PublishTimeout:    c.PublishTimeout,
		OperationTimeout:  c.OperationTimeout,
		DaysCheckInterval: c.DaysCheckInterval,
	}
}

// initLogger builds the structured logger from the logging configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
