// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrLockTimeout is returned when a lock could not be acquired before the wait time elapsed.
var ErrLockTimeout = errors.New("lock wait timed out")

// MemoryLocker is a keyed mutex for single-process deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch      chan struct{}
	waiters int
}

// NewMemoryLocker creates a new in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*lockEntry)}
}

// Lock blocks until key is free or ctx is done.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.waiters++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.forget(key, e)
		return nil, fmt.Errorf("failed to lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.forget(key, e)
		})
	}, nil
}

func (l *MemoryLocker) forget(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.waiters--
	if e.waiters == 0 {
		delete(l.locks, key)
	}
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockerConfig configures RedisLocker.
type RedisLockerConfig struct {
	// TTL is how long a held lock survives a crashed holder.
	TTL time.Duration
	// Wait bounds how long Lock keeps retrying.
	Wait time.Duration
}

// RedisLocker is a lease lock shared by every replica talking to the same Redis.
type RedisLocker struct {
	client *redis.Client
	cfg    RedisLockerConfig
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client, cfg RedisLockerConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 3 * time.Second
	}
	return &RedisLocker{client: client, cfg: cfg}
}

func makeLockKey(key string) string {
	return fmt.Sprintf("%slock:%s", keyPrefix, key)
}

// Lock acquires key with SET NX PX, retrying with exponential backoff until Wait elapses.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := makeLockKey(key)
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = l.cfg.Wait

	err := backoff.Retry(func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLockTimeout
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			logrus.Warnf("timed out waiting for lock %s", key)
			return nil, fmt.Errorf("failed to lock %s: %w", key, ErrLockTimeout)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}

	logrus.Debugf("acquired lock %s", key)
	var once sync.Once
	return func() {
		once.Do(func() {
			// release must not depend on the caller's possibly cancelled context
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				logrus.Errorf("failed to release lock %s: %v", key, err)
			}
		})
	}, nil
}
