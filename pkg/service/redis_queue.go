// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisQueueStore keeps queue entries in a hash per playthrough and indexes
// non-terminal entries in a sorted set scored by position.
type RedisQueueStore struct {
	client *redis.Client
	cfg    RedisStoreConfig
}

// NewRedisQueueStore creates a new Redis-backed queue store.
func NewRedisQueueStore(client *redis.Client, cfg RedisStoreConfig) *RedisQueueStore {
	return &RedisQueueStore{
		client: client,
		cfg:    cfg,
	}
}

func makeQueueKey(playthroughID string) string {
	return fmt.Sprintf("%squeue:%s", keyPrefix, playthroughID)
}

func makeQueueOpenKey(playthroughID string) string {
	return fmt.Sprintf("%squeue_open:%s", keyPrefix, playthroughID)
}

// NextPosition returns 1 + the highest open position, or 1 for an empty queue.
func (r *RedisQueueStore) NextPosition(ctx context.Context, playthroughID string) (int, error) {
	top, err := r.client.ZRevRangeWithScores(ctx, makeQueueOpenKey(playthroughID), 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue positions: %w", err)
	}
	if len(top) == 0 {
		return 1, nil
	}
	return int(top[0].Score) + 1, nil
}

// Pending returns pending entries ordered by position.
func (r *RedisQueueStore) Pending(ctx context.Context, playthroughID string) ([]*playthrough.QueueEntry, error) {
	ids, err := r.client.ZRange(ctx, makeQueueOpenKey(playthroughID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read open queue: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raws, err := r.client.HMGet(ctx, makeQueueKey(playthroughID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue entries: %w", err)
	}

	entries := make([]*playthrough.QueueEntry, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			logrus.Warnf("queue index of playthrough %s references missing entry %s", playthroughID, ids[i])
			continue
		}
		var entry playthrough.QueueEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue entry %s: %w", ids[i], err)
		}
		if entry.IsPending() {
			entries = append(entries, &entry)
		}
	}
	return entries, nil
}

// Get returns a single entry.
func (r *RedisQueueStore) Get(ctx context.Context, playthroughID, id string) (*playthrough.QueueEntry, error) {
	raw, err := r.client.HGet(ctx, makeQueueKey(playthroughID), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: queue entry %s", playthrough.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}

	var entry playthrough.QueueEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}
	return &entry, nil
}

// Save writes the entry and keeps the open index in sync with its status.
func (r *RedisQueueStore) Save(ctx context.Context, entry *playthrough.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry %s: %w", entry.ID, err)
	}

	key := makeQueueKey(entry.PlaythroughID)
	openKey := makeQueueOpenKey(entry.PlaythroughID)
	ttl := r.cfg.ttl()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, entry.ID, data)
		pipe.Expire(ctx, key, ttl)
		if entry.Status.IsTerminal() {
			pipe.ZRem(ctx, openKey, entry.ID)
		} else {
			pipe.ZAdd(ctx, openKey, &redis.Z{Score: float64(entry.Position), Member: entry.ID})
			pipe.Expire(ctx, openKey, ttl)
		}
		return nil
	})
	if err != nil {
		logrus.Errorf("failed to save queue entry %s: %v", entry.ID, err)
		return fmt.Errorf("failed to save queue entry: %w", err)
	}

	logrus.Debugf("saved queue entry %s (position %d, status %s)", entry.ID, entry.Position, entry.Status)
	return nil
}
