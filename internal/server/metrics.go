// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"fmt"
	"net/http"

	"github.com/AccelByte/extend-playthrough-rules/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes runtime and scheduler metrics for Prometheus.
type MetricsServer struct {
	*httpServer
	port     int
	endpoint string
}

// NewMetricsServer creates a metrics server. Call Setup before Start.
func NewMetricsServer(port int, endpoint string) *MetricsServer {
	return &MetricsServer{port: port, endpoint: endpoint}
}

// Setup builds a dedicated registry with the Go, process, build info and
// scheduler collectors, and the handler serving it.
func (m *MetricsServer) Setup() error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("failed to register scheduler metrics: %w", err)
	}

	handler := promhttp.InstrumentMetricHandler(registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Registry:          registry,
		EnableOpenMetrics: true,
	}))

	mux := http.NewServeMux()
	mux.Handle(m.endpoint, handler)
	m.httpServer = newHTTPServer("metrics", m.port, mux)
	return nil
}

// Handler returns the metrics HTTP handler. Setup must be called first.
func (m *MetricsServer) Handler() http.Handler {
	return m.server.Handler
}
