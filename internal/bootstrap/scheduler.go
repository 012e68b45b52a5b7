// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/internal/config"
	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"
	"github.com/AccelByte/extend-playthrough-rules/pkg/service"
	"github.com/AccelByte/extend-playthrough-rules/pkg/sweeper"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Stores bundles the repositories and the lock the scheduler runs on.
type Stores struct {
	Playthroughs service.PlaythroughRepository
	Instances    service.RuleInstanceRepository
	Queue        service.QueueRepository
	Locker       service.Locker
}

// InitStores selects the state and lock backends. client may be nil when
// neither STORE_DRIVER nor LOCK_DRIVER is redis.
func InitStores(cfg *config.Config, client *redis.Client) (*Stores, error) {
	stores := &Stores{}

	switch cfg.StoreDriver {
	case config.DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("redis store requires a redis client")
		}
		storeCfg := service.RedisStoreConfig{}
		stores.Playthroughs = service.NewRedisPlaythroughStore(client, storeCfg)
		stores.Instances = service.NewRedisRuleInstanceStore(client, storeCfg)
		stores.Queue = service.NewRedisQueueStore(client, storeCfg)
	case config.DriverMemory:
		m := service.NewMemoryStore()
		stores.Playthroughs = m.Playthroughs()
		stores.Instances = m.Instances()
		stores.Queue = m.Queue()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	switch cfg.LockDriver {
	case config.DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("redis lock requires a redis client")
		}
		stores.Locker = service.NewRedisLocker(client, service.RedisLockerConfig{
			TTL:  cfg.LockTTL(),
			Wait: cfg.LockWait(),
		})
	case config.DriverMemory:
		stores.Locker = service.NewMemoryLocker()
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.LockDriver)
	}

	logrus.Infof("using %s state store and %s playthrough lock", cfg.StoreDriver, cfg.LockDriver)
	return stores, nil
}

// InitScheduler wires the scheduler over stores and the rule catalog.
func InitScheduler(stores *Stores, rules catalog.Repository) *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		Playthroughs: stores.Playthroughs,
		Instances:    stores.Instances,
		Queue:        stores.Queue,
		Rules:        rules,
		Locker:       stores.Locker,
	})
}

// InitSweeper returns the expiry sweeper, or nil when SWEEP_ENABLED is false.
func InitSweeper(cfg *config.Config, s *scheduler.Scheduler) *sweeper.Sweeper {
	if !cfg.SweepEnabled {
		logrus.Info("expiry sweeper disabled")
		return nil
	}
	return sweeper.New(s, cfg.SweepSpec)
}
