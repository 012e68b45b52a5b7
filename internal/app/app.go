// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/internal/bootstrap"
	"github.com/AccelByte/extend-playthrough-rules/internal/config"
	"github.com/AccelByte/extend-playthrough-rules/internal/server"
	"github.com/AccelByte/extend-playthrough-rules/pkg/handler"
	"github.com/AccelByte/extend-playthrough-rules/pkg/service"
	"github.com/AccelByte/extend-playthrough-rules/pkg/sweeper"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// App holds all application dependencies and manages the application lifecycle.
type App struct {
	cfg               *config.Config
	apiServer         *server.APIServer
	grpcServer        *server.GRPCServer
	metricsServer     *server.MetricsServer
	redisClient       *redis.Client
	catalog           *bootstrap.Catalog
	sweeper           *sweeper.Sweeper
	shutdownTelemetry func(context.Context) error
	cancel            context.CancelFunc
}

// New creates and initializes a new application instance.
//
// Components are initialized in dependency order:
// 1. Redis (when a store or lock uses it)
// 2. Rule catalog (YAML or SQLite)
// 3. Stores, lock and scheduler
// 4. Servers (REST API, gRPC health, metrics)
// 5. Telemetry (OpenTelemetry tracing)
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg}

	// ============================================================
	// Step 1: Initialize Redis
	// ============================================================
	if cfg.StoreDriver == config.DriverRedis || cfg.LockDriver == config.DriverRedis {
		if err := app.initRedis(ctx); err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
	}

	// ============================================================
	// Step 2: Load the rule catalog
	// ============================================================
	catalog, err := bootstrap.InitCatalog(ctx, cfg)
	if err != nil {
		app.closeRedis()
		return nil, fmt.Errorf("failed to load rule catalog: %w", err)
	}
	app.catalog = catalog

	// ============================================================
	// Step 3: Bootstrap the scheduler
	// ============================================================
	stores, err := bootstrap.InitStores(cfg, app.redisClient)
	if err != nil {
		app.closeRedis()
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to init stores: %w", err)
	}
	sched := bootstrap.InitScheduler(stores, catalog.Repository)
	app.sweeper = bootstrap.InitSweeper(cfg, sched)

	// ============================================================
	// Step 4: Setup servers
	// ============================================================
	health := service.NewHealthChecker(app.redisClient).WithProbe("catalog", catalog.Ping)

	router := handler.NewRouter(sched, handler.RouterOptions{
		RatePerSec: cfg.APIRatePerSec,
		Burst:      cfg.APIRateBurst,
		Health:     health,
	})
	app.apiServer = server.NewAPIServer(cfg.HTTPPort, router)

	app.grpcServer = server.NewGRPCServer(cfg.GRPCPort, health)
	if err := app.grpcServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup gRPC server: %w", err)
	}

	app.metricsServer = server.NewMetricsServer(cfg.MetricsPort, "/metrics")
	if err := app.metricsServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup metrics server: %w", err)
	}

	// ============================================================
	// Step 5: Setup telemetry
	// ============================================================
	if cfg.OtelEnabled {
		shutdownTelemetry, err := server.SetupTelemetry(server.TelemetryConfig{
			ZipkinEndpoint: cfg.ZipkinEndpoint,
			ServiceName:    cfg.ServiceName,
			Environment:    cfg.Environment,
			SampleRatio:    cfg.OtelSampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to setup telemetry: %w", err)
		}
		app.shutdownTelemetry = shutdownTelemetry
	}

	logrus.Info("application initialized successfully")

	return app, nil
}

// initRedis connects the Redis client shared by the stores, the lock and the health check.
func (a *App) initRedis(ctx context.Context) error {
	client, err := service.InitRedisClient(ctx, service.RedisClientConfig{
		Host:       a.cfg.RedisHost,
		Port:       a.cfg.RedisPort,
		Password:   a.cfg.RedisPassword,
		MaxRetries: a.cfg.RedisMaxRetries,
	})
	if err != nil {
		return err
	}

	a.redisClient = client
	logrus.Info("Redis client initialized")
	return nil
}

func (a *App) closeRedis() {
	if a.redisClient == nil {
		return
	}
	if err := a.redisClient.Close(); err != nil {
		logrus.Errorf("Redis close error: %v", err)
	}
	a.redisClient = nil
}
