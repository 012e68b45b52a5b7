// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// healthTimeout bounds every dependency probe.
const healthTimeout = 2 * time.Second

// Probe checks one dependency of the scheduler.
type Probe func(ctx context.Context) error

// HealthChecker probes the playthrough store and any extra dependencies,
// such as the rule catalog. A nil client means the in-memory store.
type HealthChecker struct {
	probes map[string]Probe
}

// NewHealthChecker creates a checker that pings client as the "store" probe.
func NewHealthChecker(client *redis.Client) *HealthChecker {
	h := &HealthChecker{probes: map[string]Probe{}}
	if client != nil {
		h.probes["store"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return h
}

// WithProbe registers p under name, replacing any probe with the same name.
func (h *HealthChecker) WithProbe(name string, p Probe) *HealthChecker {
	h.probes[name] = p
	return h
}

func (h *HealthChecker) names() []string {
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *HealthChecker) run(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return h.probes[name](ctx)
}

// Check runs every probe in name order and returns the first failure.
func (h *HealthChecker) Check(ctx context.Context) error {
	for _, name := range h.names() {
		if err := h.run(ctx, name); err != nil {
			logrus.Errorf("health probe %s failed: %v", name, err)
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	logrus.Debugf("health probes passed (%d)", len(h.probes))
	return nil
}

// Report runs every probe and returns "ok" or the error text per dependency.
func (h *HealthChecker) Report(ctx context.Context) map[string]string {
	report := make(map[string]string, len(h.probes))
	for _, name := range h.names() {
		if err := h.run(ctx, name); err != nil {
			report[name] = err.Error()
			continue
		}
		report[name] = "ok"
	}
	return report
}
