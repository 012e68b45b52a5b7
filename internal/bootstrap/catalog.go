// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/internal/config"
	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/sirupsen/logrus"
)

// Catalog is the rule catalog selected by CATALOG_DRIVER.
type Catalog struct {
	Repository catalog.Repository
	// Watcher is set for a watched YAML catalog.
	Watcher *catalog.Watcher

	closer func() error
}

// Ping checks the catalog backend when it supports probing.
func (c *Catalog) Ping(ctx context.Context) error {
	p, ok := c.Repository.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Close releases the catalog backend.
func (c *Catalog) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// InitCatalog loads the rule catalog.
//
// The yaml driver keeps the catalog in memory and hot reloads it when
// CATALOG_WATCH is set. The sqlite driver reads rules from the database at
// CATALOG_PATH, optionally seeded from the YAML file at CATALOG_SEED_PATH.
func InitCatalog(ctx context.Context, cfg *config.Config) (*Catalog, error) {
	switch cfg.CatalogDriver {
	case config.DriverSQLite:
		repo, err := catalog.OpenSQLite(ctx, cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		if cfg.CatalogSeedPath != "" {
			file, err := catalog.LoadFile(cfg.CatalogSeedPath)
			if err != nil {
				_ = repo.Close()
				return nil, err
			}
			if err := repo.Upsert(ctx, file.Rules); err != nil {
				_ = repo.Close()
				return nil, fmt.Errorf("failed to seed sqlite catalog: %w", err)
			}
			logrus.Infof("seeded sqlite catalog with %d rules from %s", len(file.Rules), cfg.CatalogSeedPath)
		}
		return &Catalog{Repository: repo, closer: repo.Close}, nil

	case config.DriverYAML:
		registry, err := catalog.LoadRegistry(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		logrus.Infof("loaded rule catalog from %s (%d rules)", cfg.CatalogPath, registry.Count())

		c := &Catalog{Repository: registry}
		if cfg.CatalogWatch {
			c.Watcher = catalog.NewWatcher(cfg.CatalogPath, registry)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.CatalogDriver)
	}
}
