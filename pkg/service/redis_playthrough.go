// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// playthroughStoreDefaultTTL bounds how long an untouched playthrough is kept (30 days)
	playthroughStoreDefaultTTL = 30 * 24 * time.Hour
	// keyPrefix is the prefix for all keys owned by this service
	keyPrefix = "playthrough_rules:"
)

// RedisPlaythroughStore implements PlaythroughRepository using Redis.
type RedisPlaythroughStore struct {
	client *redis.Client
	cfg    RedisStoreConfig
}

// RedisStoreConfig configures the Redis-backed stores.
type RedisStoreConfig struct {
	// TTL applied to every key on save. Zero means the default of 30 days.
	TTL time.Duration
}

func (c RedisStoreConfig) ttl() time.Duration {
	if c.TTL <= 0 {
		return playthroughStoreDefaultTTL
	}
	return c.TTL
}

// NewRedisPlaythroughStore creates a new Redis-backed playthrough store.
func NewRedisPlaythroughStore(client *redis.Client, cfg RedisStoreConfig) *RedisPlaythroughStore {
	return &RedisPlaythroughStore{
		client: client,
		cfg:    cfg,
	}
}

func makePlaythroughKey(id string) string {
	return fmt.Sprintf("%splaythrough:%s", keyPrefix, id)
}

func makeUserCurrentKey(userID string) string {
	return fmt.Sprintf("%suser_current:%s", keyPrefix, userID)
}

func makeActiveSetKey() string {
	return keyPrefix + "open_playthroughs"
}

// Load retrieves a playthrough from Redis.
func (r *RedisPlaythroughStore) Load(ctx context.Context, id string) (*playthrough.Playthrough, error) {
	data, err := r.client.Get(ctx, makePlaythroughKey(id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: playthrough %s", playthrough.ErrNotFound, id)
	}
	if err != nil {
		logrus.Errorf("failed to get playthrough %s: %v", id, err)
		return nil, fmt.Errorf("failed to get playthrough: %w", err)
	}

	var p playthrough.Playthrough
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		logrus.Errorf("failed to unmarshal playthrough %s: %v", id, err)
		return nil, fmt.Errorf("failed to unmarshal playthrough: %w", err)
	}

	logrus.Debugf("retrieved playthrough %s", id)
	return &p, nil
}

// Save writes the playthrough and maintains the per-user and open-set indexes.
func (r *RedisPlaythroughStore) Save(ctx context.Context, p *playthrough.Playthrough) error {
	data, err := json.Marshal(p)
	if err != nil {
		logrus.Errorf("failed to marshal playthrough %s: %v", p.ID, err)
		return fmt.Errorf("failed to marshal playthrough: %w", err)
	}

	ttl := r.cfg.ttl()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, makePlaythroughKey(p.ID), data, ttl)
		if p.IsCompleted() {
			pipe.Del(ctx, makeUserCurrentKey(p.UserID))
			pipe.SRem(ctx, makeActiveSetKey(), p.ID)
		} else {
			pipe.Set(ctx, makeUserCurrentKey(p.UserID), p.ID, ttl)
			pipe.SAdd(ctx, makeActiveSetKey(), p.ID)
		}
		return nil
	})
	if err != nil {
		logrus.Errorf("failed to save playthrough %s: %v", p.ID, err)
		return fmt.Errorf("failed to save playthrough: %w", err)
	}

	logrus.Debugf("saved playthrough %s (status %s)", p.ID, p.Status)
	return nil
}

// FindCurrentByUser returns the user's open playthrough, or nil if there is none.
func (r *RedisPlaythroughStore) FindCurrentByUser(ctx context.Context, userID string) (*playthrough.Playthrough, error) {
	id, err := r.client.Get(ctx, makeUserCurrentKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current playthrough of user %s: %w", userID, err)
	}

	p, err := r.Load(ctx, id)
	if err != nil {
		// expired aggregate behind a stale index entry
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if p.IsCompleted() {
		return nil, nil
	}
	return p, nil
}

// ListActive returns the IDs of all open playthroughs.
func (r *RedisPlaythroughStore) ListActive(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, makeActiveSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list open playthroughs: %w", err)
	}
	return ids, nil
}
