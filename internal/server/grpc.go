// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/common"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name of this application.
const ServiceName = "playthrough-rules"

// healthProbeInterval is how often the backing store is probed for the gRPC health status.
const healthProbeInterval = 10 * time.Second

// HealthCheck reports whether the backing stores are reachable.
type HealthCheck interface {
	Check(ctx context.Context) error
}

// GRPCServer serves gRPC health checks and reflection for orchestrators.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	port   int
	check  HealthCheck
	cancel context.CancelFunc
}

// NewGRPCServer creates a new gRPC server instance.
func NewGRPCServer(port int, check HealthCheck) *GRPCServer {
	return &GRPCServer{
		port:  port,
		check: check,
	}
}

// Setup configures the gRPC server with interceptors and registers the health service.
func (s *GRPCServer) Setup() error {
	unaryInterceptors := []grpc.UnaryServerInterceptor{
		logging.UnaryServerInterceptor(common.InterceptorLogger(logrus.StandardLogger())),
	}
	streamInterceptors := []grpc.StreamServerInterceptor{
		logging.StreamServerInterceptor(common.InterceptorLogger(logrus.StandardLogger())),
	}

	// Create server with OpenTelemetry instrumentation
	s.server = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unaryInterceptors...),
		grpc.ChainStreamInterceptor(streamInterceptors...),
	)

	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)

	logrus.Infof("gRPC reflection and health check enabled")
	return nil
}

// probe updates the health status from the backing store.
func (s *GRPCServer) probe(ctx context.Context) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.check != nil {
		if err := s.check.Check(ctx); err != nil {
			logrus.Warnf("health probe failed: %v", err)
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Start begins listening and serving gRPC requests.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	probeCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.probe(probeCtx)
	go func() {
		ticker := time.NewTicker(healthProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-probeCtx.Done():
				return
			case <-ticker.C:
				s.probe(probeCtx)
			}
		}
	}()

	go func() {
		logrus.Infof("gRPC server listening on port %d", s.port)
		if err := s.server.Serve(lis); err != nil {
			logrus.Fatalf("gRPC server failed: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the gRPC server.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down gRPC server...")
	if s.cancel != nil {
		s.cancel()
	}
	s.health.Shutdown()
	s.server.GracefulStop()
	logrus.Info("gRPC server stopped")
	return nil
}
