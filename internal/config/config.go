// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import "time"

// Drivers accepted by STORE_DRIVER, LOCK_DRIVER and CATALOG_DRIVER.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
	DriverYAML   = "yaml"
	DriverSQLite = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
// This struct uses github.com/caarlos0/env for automatic environment variable parsing.
//
// Use struct tags to define:
// - `env:"VAR_NAME"` - the environment variable name
// - `env:",required"` - make it required
// - `envDefault:"value"` - set a default value
//
// After adding fields here, update loader.go Validate() if custom
// validation is needed.
type Config struct {
	// ============================================================
	// Server configuration
	// ============================================================
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8000"`
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"6565"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"extend-playthrough-rules"`

	// ============================================================
	// Redis configuration
	// ============================================================
	RedisHost       string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisMaxRetries int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`

	// ============================================================
	// State and locking
	// ============================================================
	StoreDriver string `env:"STORE_DRIVER" envDefault:"redis"`
	LockDriver  string `env:"LOCK_DRIVER" envDefault:"redis"`
	LockTTLMs   int    `env:"LOCK_TTL_MS" envDefault:"5000"`
	LockWaitMs  int    `env:"LOCK_WAIT_MS" envDefault:"3000"`

	// ============================================================
	// Rule catalog
	// ============================================================
	CatalogDriver string `env:"CATALOG_DRIVER" envDefault:"yaml"`
	CatalogPath   string `env:"CATALOG_PATH" envDefault:"config/catalog.yaml"`
	CatalogWatch  bool   `env:"CATALOG_WATCH" envDefault:"true"`
	// CatalogSeedPath optionally loads a YAML catalog into the SQLite database on start.
	CatalogSeedPath string `env:"CATALOG_SEED_PATH"`

	// ============================================================
	// Background sweep
	// ============================================================
	SweepEnabled bool   `env:"SWEEP_ENABLED" envDefault:"false"`
	SweepSpec    string `env:"SWEEP_SPEC" envDefault:"*/10 * * * * *"`

	// ============================================================
	// API throttling
	// ============================================================
	APIRatePerSec float64 `env:"API_RATE_PER_SEC" envDefault:"50"`
	APIRateBurst  int     `env:"API_RATE_BURST" envDefault:"100"`

	// ============================================================
	// Telemetry configuration
	// ============================================================
	OtelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
	ZipkinEndpoint  string  `env:"ZIPKIN_ENDPOINT" envDefault:"http://localhost:9411/api/v2/spans"`
}

// LockTTL returns the Redis lock expiry.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMs) * time.Millisecond
}

// LockWait returns how long a request waits for a playthrough lock.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitMs) * time.Millisecond
}
