// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisClientConfig holds connection settings for InitRedisClient.
type RedisClientConfig struct {
	Host       string
	Port       int
	Password   string
	MaxRetries int
}

// InitRedisClient connects to Redis, retrying the initial ping with exponential backoff.
func InitRedisClient(ctx context.Context, cfg RedisClientConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           0, // use default DB
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	attempt := 0
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries-1)), ctx)
	err := backoff.Retry(func() error {
		attempt++
		if _, err := client.Ping(ctx).Result(); err != nil {
			logrus.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxRetries, err)
			return err
		}
		return nil
	}, b)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s after %d attempts: %w", addr, attempt, err)
	}

	logrus.Infof("connected to Redis at %s (attempt %d/%d)", addr, attempt, maxRetries)
	return client, nil
}
