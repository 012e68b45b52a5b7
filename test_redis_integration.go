// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

//go:build integration
// +build integration

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"
	"github.com/AccelByte/extend-playthrough-rules/pkg/service"
	"github.com/sirupsen/logrus"
)

// This is a manual integration test for the Redis-backed scheduler
// Run this with: go run -tags integration test_redis_integration.go
// Requires: Redis running on localhost:6379

func intPtr(v int) *int { return &v }

func main() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.Infof("Starting Redis integration test...")

	ctx := context.Background()

	client, err := service.InitRedisClient(ctx, service.RedisClientConfig{Host: "localhost", Port: 6379, MaxRetries: 3})
	if err != nil {
		logrus.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer client.Close()

	registry := catalog.NewRegistry()
	for _, r := range []catalog.Rule{
		{ID: "no-jump", Name: "No Jumping", Type: catalog.RuleTypeBasic,
			Levels: []catalog.DifficultyLevel{{Level: 1, DurationSeconds: intPtr(30)}}},
		{ID: "pistol-only", Name: "Pistol Only", Type: catalog.RuleTypeCourt,
			Levels: []catalog.DifficultyLevel{{Level: 1, Amount: intPtr(3)}}},
	} {
		if err := registry.Register(r); err != nil {
			logrus.Fatalf("Register failed: %v", err)
		}
	}

	storeCfg := service.RedisStoreConfig{TTL: time.Hour}
	sched := scheduler.New(scheduler.Config{
		Playthroughs: service.NewRedisPlaythroughStore(client, storeCfg),
		Instances:    service.NewRedisRuleInstanceStore(client, storeCfg),
		Queue:        service.NewRedisQueueStore(client, storeCfg),
		Rules:        registry,
		Locker:       service.NewRedisLocker(client, service.RedisLockerConfig{}),
	})

	testUserID := fmt.Sprintf("test-user-%d", time.Now().Unix())
	logrus.Infof("Testing with user ID: %s", testUserID)

	// Test 1: Create and start a playthrough
	logrus.Infof("\n=== Test 1: Create and start playthrough ===")
	p, err := sched.CreatePlaythrough(ctx, scheduler.CreateRequest{
		UserID:             testUserID,
		MaxConcurrentRules: 1,
		RuleIDs:            []string{"no-jump", "pistol-only"},
	})
	if err != nil {
		logrus.Fatalf("CreatePlaythrough failed: %v", err)
	}
	if _, err := sched.Start(ctx, p.ID); err != nil {
		logrus.Fatalf("Start failed: %v", err)
	}
	logrus.Infof("✓ Playthrough %s is active", p.ID)

	// Test 2: Direct pick
	logrus.Infof("\n=== Test 2: Direct pick ===")
	inst, err := sched.Pick(ctx, p.ID, "no-jump", 1)
	if err != nil {
		logrus.Fatalf("Pick failed: %v", err)
	}
	logrus.Infof("✓ Activated %s until %v", inst.RuleID, inst.ExpiresAt)

	// Test 3: Rate limit
	logrus.Infof("\n=== Test 3: Rate limit ===")
	if _, err := sched.Pick(ctx, p.ID, "pistol-only", 1); !errors.Is(err, playthrough.ErrRateLimited) {
		logrus.Fatalf("❌ Expected rate limit, got %v", err)
	}
	logrus.Infof("✓ Second pick within 2s was rate limited")

	// Test 4: Queue blocked by the concurrency limit
	logrus.Infof("\n=== Test 4: Queue ===")
	queued, err := sched.Enqueue(ctx, p.ID, "pistol-only", 1, nil)
	if err != nil {
		logrus.Fatalf("Enqueue failed: %v", err)
	}
	logrus.Infof("✓ Queued at position %d, ETA %ds", queued.Position, queued.ETASeconds)

	time.Sleep(playthrough.MinPickInterval)
	outcome, err := sched.ProcessQueue(ctx, p.ID)
	if err != nil {
		logrus.Fatalf("ProcessQueue failed: %v", err)
	}
	if outcome.Result != scheduler.ResultBlocked || !errors.Is(outcome.Reason, playthrough.ErrConcurrencyLimitReached) {
		logrus.Fatalf("❌ Expected concurrency block, got %s (%v)", outcome.Result, outcome.Reason)
	}
	logrus.Infof("✓ Queue blocked while no-jump is running")

	// Test 5: Ending the rule frees the slot
	logrus.Infof("\n=== Test 5: End rule and drain ===")
	if _, err := sched.EndRule(ctx, p.ID, inst.ID); err != nil {
		logrus.Fatalf("EndRule failed: %v", err)
	}
	outcome, err = sched.ProcessQueue(ctx, p.ID)
	if err != nil {
		logrus.Fatalf("ProcessQueue failed: %v", err)
	}
	if outcome.Result != scheduler.ResultActivated {
		logrus.Fatalf("❌ Expected activation, got %s (%v)", outcome.Result, outcome.Reason)
	}
	logrus.Infof("✓ Activated queued %s", outcome.Instance.RuleID)

	// Test 6: End the playthrough
	logrus.Infof("\n=== Test 6: End playthrough ===")
	ended, err := sched.End(ctx, p.ID)
	if err != nil {
		logrus.Fatalf("End failed: %v", err)
	}
	active, err := sched.ActiveRules(ctx, p.ID)
	if err != nil {
		logrus.Fatalf("ActiveRules failed: %v", err)
	}
	if len(active) != 0 {
		logrus.Fatalf("❌ Expected no active rules after end, got %d", len(active))
	}
	logrus.Infof("✓ Playthrough completed after %ds", ended.TotalDurationSeconds)

	logrus.Infof("\n==================================================")
	logrus.Infof("✅ All Redis integration tests passed!")
	logrus.Infof("==================================================")
}
