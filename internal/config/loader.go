// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/pkg/sweeper"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	// In production (Docker/K8s), environment variables are injected directly
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return cfg, nil
}

// Validate performs custom validation on the configuration.
func (c *Config) Validate() error {
	ports := []struct {
		name string
		port int
	}{
		{"HTTP_PORT", c.HTTPPort},
		{"GRPC_PORT", c.GRPCPort},
		{"METRICS_PORT", c.MetricsPort},
		{"REDIS_PORT", c.RedisPort},
	}
	for _, p := range ports {
		if p.port < 1 || p.port > 65535 {
			return fmt.Errorf("invalid %s: %d (must be 1-65535)", p.name, p.port)
		}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.LogLevel)
	}

	if c.StoreDriver != DriverRedis && c.StoreDriver != DriverMemory {
		return fmt.Errorf("invalid STORE_DRIVER: %q (must be redis or memory)", c.StoreDriver)
	}
	if c.LockDriver != DriverRedis && c.LockDriver != DriverMemory {
		return fmt.Errorf("invalid LOCK_DRIVER: %q (must be redis or memory)", c.LockDriver)
	}
	if c.LockTTLMs < 1 || c.LockWaitMs < 1 {
		return fmt.Errorf("LOCK_TTL_MS and LOCK_WAIT_MS must be positive")
	}

	if c.CatalogDriver != DriverYAML && c.CatalogDriver != DriverSQLite {
		return fmt.Errorf("invalid CATALOG_DRIVER: %q (must be yaml or sqlite)", c.CatalogDriver)
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}

	if c.SweepEnabled {
		if err := sweeper.ValidateSpec(c.SweepSpec); err != nil {
			return fmt.Errorf("invalid SWEEP_SPEC %q: %w", c.SweepSpec, err)
		}
	}

	if c.APIRatePerSec < 0 || c.APIRateBurst < 0 {
		return fmt.Errorf("API_RATE_PER_SEC and API_RATE_BURST must not be negative")
	}

	if c.OtelEnabled && c.ZipkinEndpoint == "" {
		return fmt.Errorf("ZIPKIN_ENDPOINT is required when OTEL_ENABLED is true")
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1, got %v", c.OtelSampleRatio)
	}

	return nil
}
