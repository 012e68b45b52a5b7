// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisRuleInstanceStore keeps rule instances in one hash per playthrough.
type RedisRuleInstanceStore struct {
	client *redis.Client
	cfg    RedisStoreConfig
}

// NewRedisRuleInstanceStore creates a new Redis-backed rule instance store.
func NewRedisRuleInstanceStore(client *redis.Client, cfg RedisStoreConfig) *RedisRuleInstanceStore {
	return &RedisRuleInstanceStore{
		client: client,
		cfg:    cfg,
	}
}

func makeInstancesKey(playthroughID string) string {
	return fmt.Sprintf("%sinstances:%s", keyPrefix, playthroughID)
}

// FindAll returns every instance of the playthrough ordered by start time.
func (r *RedisRuleInstanceStore) FindAll(ctx context.Context, playthroughID string) ([]*playthrough.RuleInstance, error) {
	data, err := r.client.HGetAll(ctx, makeInstancesKey(playthroughID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rule instances: %w", err)
	}

	instances := make([]*playthrough.RuleInstance, 0, len(data))
	for id, raw := range data {
		var inst playthrough.RuleInstance
		if err := json.Unmarshal([]byte(raw), &inst); err != nil {
			logrus.Errorf("failed to unmarshal rule instance %s of playthrough %s: %v", id, playthroughID, err)
			return nil, fmt.Errorf("failed to unmarshal rule instance: %w", err)
		}
		instances = append(instances, &inst)
	}

	sortInstances(instances)
	return instances, nil
}

// FindActive returns the instances flagged active.
func (r *RedisRuleInstanceStore) FindActive(ctx context.Context, playthroughID string) ([]*playthrough.RuleInstance, error) {
	all, err := r.FindAll(ctx, playthroughID)
	if err != nil {
		return nil, err
	}
	return filterActive(all), nil
}

// Get returns a single instance.
func (r *RedisRuleInstanceStore) Get(ctx context.Context, playthroughID, id string) (*playthrough.RuleInstance, error) {
	raw, err := r.client.HGet(ctx, makeInstancesKey(playthroughID), id).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: rule instance %s", playthrough.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule instance: %w", err)
	}

	var inst playthrough.RuleInstance
	if err := json.Unmarshal([]byte(raw), &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule instance: %w", err)
	}
	return &inst, nil
}

// Save writes the instances in one transaction.
func (r *RedisRuleInstanceStore) Save(ctx context.Context, instances ...*playthrough.RuleInstance) error {
	if len(instances) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, inst := range instances {
			data, err := json.Marshal(inst)
			if err != nil {
				return fmt.Errorf("failed to marshal rule instance %s: %w", inst.ID, err)
			}
			key := makeInstancesKey(inst.PlaythroughID)
			pipe.HSet(ctx, key, inst.ID, data)
			pipe.Expire(ctx, key, r.cfg.ttl())
		}
		return nil
	})
	if err != nil {
		logrus.Errorf("failed to save rule instances: %v", err)
		return fmt.Errorf("failed to save rule instances: %w", err)
	}
	return nil
}

func filterActive(all []*playthrough.RuleInstance) []*playthrough.RuleInstance {
	active := make([]*playthrough.RuleInstance, 0, len(all))
	for _, inst := range all {
		if inst.IsActive {
			active = append(active, inst)
		}
	}
	return active
}

func sortInstances(instances []*playthrough.RuleInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		if instances[i].StartedAt.Equal(instances[j].StartedAt) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].StartedAt.Before(instances[j].StartedAt)
	})
}
