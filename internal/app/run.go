// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// shutdownTimeout bounds the graceful shutdown after a signal.
const shutdownTimeout = 15 * time.Second

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, start := range []func(context.Context) error{
		a.apiServer.Start,
		a.grpcServer.Start,
		a.metricsServer.Start,
	} {
		if err := start(runCtx); err != nil {
			cancel()
			return err
		}
	}

	if a.catalog.Watcher != nil {
		go func() {
			if err := a.catalog.Watcher.Run(runCtx); err != nil {
				logrus.Errorf("catalog watcher stopped: %v", err)
			}
		}()
	}
	if a.sweeper != nil {
		if err := a.sweeper.Start(runCtx); err != nil {
			return err
		}
	}

	logrus.Info("application started successfully")

	sigCtx, stop := signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logrus.Info("shutdown signal received")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops the servers before the workers and connections they use,
// and flushes spans last. Errors are logged and the sequence continues.
func (a *App) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down application...")

	for _, srv := range []struct {
		name string
		stop func(context.Context) error
	}{
		{"API", a.apiServer.Shutdown},
		{"gRPC", a.grpcServer.Shutdown},
		{"metrics", a.metricsServer.Shutdown},
	} {
		if err := srv.stop(ctx); err != nil {
			logrus.Errorf("%s server shutdown error: %v", srv.name, err)
		}
	}

	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}

	a.closeRedis()
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			logrus.Errorf("catalog close error: %v", err)
		}
	}

	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			logrus.Errorf("telemetry shutdown error: %v", err)
		}
	}

	logrus.Info("application shutdown complete")
	return nil
}
