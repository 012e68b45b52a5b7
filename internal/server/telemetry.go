// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"

	"github.com/AccelByte/extend-playthrough-rules/pkg/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TelemetryConfig selects where scheduler spans go and how many are kept.
type TelemetryConfig struct {
	ZipkinEndpoint string
	ServiceName    string
	Environment    string
	SampleRatio    float64
}

// SetupTelemetry installs the global tracer provider and propagators used by
// the gRPC interceptors and scheduler scopes. The returned func flushes
// pending spans.
func SetupTelemetry(cfg TelemetryConfig) (func(context.Context) error, error) {
	provider, err := common.NewTracerProvider(cfg.ZipkinEndpoint, cfg.ServiceName, cfg.Environment, cfg.SampleRatio)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(provider)

	// B3 for Zipkin peers, W3C for everything else.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)),
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logrus.Infof("tracing enabled: service %s (%s), exporting to %s at ratio %.2f",
		cfg.ServiceName, cfg.Environment, cfg.ZipkinEndpoint, cfg.SampleRatio)

	return func(ctx context.Context) error {
		logrus.Info("flushing pending spans...")
		return provider.Shutdown(ctx)
	}, nil
}
