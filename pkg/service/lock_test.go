// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryLocker_Serializes(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "pt-1")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max holders = %d, expected 1", maxInside)
	}
	if len(locker.locks) != 0 {
		t.Errorf("lock table size = %d, expected 0 after all releases", len(locker.locks))
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("Lock(a) error = %v", err)
	}
	defer unlockA()

	ctx2, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := locker.Lock(ctx2, "b")
	if err != nil {
		t.Fatalf("Lock(b) error = %v, expected independent key to be free", err)
	}
	unlockB()
}

func TestMemoryLocker_ContextCancelled(t *testing.T) {
	locker := NewMemoryLocker()

	unlock, _ := locker.Lock(context.Background(), "a")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() error = %v, expected deadline exceeded", err)
	}
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	locker := NewRedisLocker(client, RedisLockerConfig{TTL: time.Second, Wait: 50 * time.Millisecond})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "pt-1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if !mr.Exists(makeLockKey("pt-1")) {
		t.Fatal("lock key should exist while held")
	}

	if _, err := locker.Lock(ctx, "pt-1"); !errors.Is(err, ErrLockTimeout) {
		t.Errorf("second Lock() error = %v, expected ErrLockTimeout", err)
	}

	unlock()
	if mr.Exists(makeLockKey("pt-1")) {
		t.Error("lock key should be deleted after release")
	}

	unlock2, err := locker.Lock(ctx, "pt-1")
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	locker := NewRedisLocker(client, RedisLockerConfig{TTL: time.Second, Wait: 50 * time.Millisecond})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "pt-1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	// lease expires and another holder takes over
	mr.FastForward(2 * time.Second)
	other, err := locker.Lock(ctx, "pt-1")
	if err != nil {
		t.Fatalf("Lock() by second holder error = %v", err)
	}

	unlock()
	if !mr.Exists(makeLockKey("pt-1")) {
		t.Error("stale release must not delete the new holder's lock")
	}
	other()
}
