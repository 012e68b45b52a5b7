// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"math"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

const (
	// secondsPerCounterUnit estimates how long gameplay takes to consume one counter unit.
	secondsPerCounterUnit = 30
	// counterEstimateThreshold is the largest remaining amount that is estimated per unit.
	counterEstimateThreshold = 3
	// unknownRemainingSeconds is the placeholder for instances with no predictable end.
	unknownRemainingSeconds = 300
	// fullWithoutExpirySeconds is added when every slot is held by rules without expiry.
	fullWithoutExpirySeconds = 60
)

// ruleHistory summarises the instances of one rule at a point in time.
type ruleHistory struct {
	// live is the active instance that has not ended yet.
	live *playthrough.RuleInstance
	// ended is the active instance that ended naturally but is not settled.
	ended *playthrough.RuleInstance
	// lastEnd is the latest effective end among ended instances.
	lastEnd *time.Time
}

func historyOf(instances []*playthrough.RuleInstance, ruleID string, now time.Time) ruleHistory {
	var h ruleHistory
	for _, inst := range instances {
		if inst.RuleID != ruleID {
			continue
		}
		if inst.IsLive(now) {
			h.live = inst
			continue
		}
		if inst.IsActive {
			h.ended = inst
		}
		if at := inst.EndedAt(now); at != nil && (h.lastEnd == nil || at.After(*h.lastEnd)) {
			h.lastEnd = at
		}
	}
	return h
}

// ruleCooldownRemaining returns how long until the per-rule cooldown of h lapses.
func ruleCooldownRemaining(p *playthrough.Playthrough, h ruleHistory, now time.Time) time.Duration {
	if p.RuleCooldownSeconds <= 0 || h.lastEnd == nil {
		return 0
	}
	remaining := h.lastEnd.Add(time.Duration(p.RuleCooldownSeconds) * time.Second).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// liveRemainingSeconds estimates how long a live instance keeps running.
func liveRemainingSeconds(inst *playthrough.RuleInstance, now time.Time) int {
	switch {
	case inst.IsTimed():
		return ceilSeconds(inst.ExpiresAt.Sub(now))
	case inst.IsCounter():
		amount := *inst.CurrentAmount
		if amount <= 0 {
			return 0
		}
		if amount <= counterEstimateThreshold {
			return amount * secondsPerCounterUnit
		}
		return unknownRemainingSeconds
	default:
		return unknownRemainingSeconds
	}
}

// countsTowardLimit reports whether activating rule occupies a concurrency slot.
func countsTowardLimit(p *playthrough.Playthrough, rule *catalog.Rule) bool {
	return !rule.IsLegendary() && !p.IsDefault(rule.ID)
}

// ETA predicts the seconds until a request for rule at the given 1-based
// queue position activates. The result is never negative.
func ETA(p *playthrough.Playthrough, position int, rule *catalog.Rule, instances []*playthrough.RuleInstance, now time.Time) int {
	h := historyOf(instances, rule.ID, now)

	if h.live != nil {
		return clampETA(liveRemainingSeconds(h.live, now) + p.RuleCooldownSeconds)
	}

	if remaining := ruleCooldownRemaining(p, h, now); remaining > 0 {
		return clampETA(ceilSeconds(remaining))
	}

	eta := (position - 1) * int(playthrough.MinPickInterval/time.Second)
	if countsTowardLimit(p, rule) && p.ConcurrencyUsage(instances, now) >= p.MaxConcurrentRules {
		soonest := -1
		for _, inst := range instances {
			if !inst.IsTimed() || !inst.IsLive(now) || !p.CountsTowardLimit(inst) {
				continue
			}
			if s := ceilSeconds(inst.ExpiresAt.Sub(now)); soonest < 0 || s < soonest {
				soonest = s
			}
		}
		if soonest >= 0 {
			if soonest > eta {
				eta = soonest
			}
		} else {
			eta += fullWithoutExpirySeconds
		}
	}
	return clampETA(eta)
}

func clampETA(seconds int) int {
	if seconds < 0 {
		return 0
	}
	return seconds
}
