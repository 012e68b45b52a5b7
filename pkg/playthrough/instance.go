// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package playthrough

import (
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
)

// RuleInstance is one activation of a catalog rule inside a playthrough.
// CurrentAmount is decremented by gameplay, never by the scheduler.
type RuleInstance struct {
	ID            string           `json:"id"`
	PlaythroughID string           `json:"playthroughId"`
	RuleID        string           `json:"ruleId"`
	RuleType      catalog.RuleType `json:"ruleType"`
	Level         int              `json:"level"`
	IsActive      bool             `json:"isActive"`
	CurrentAmount *int             `json:"currentAmount,omitempty"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
	StartedAt     time.Time        `json:"startedAt"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
}

// NewRuleInstance creates an active instance of rule at lvl starting at now.
// Legendary rules never carry an expiry or a counter.
func NewRuleInstance(id, playthroughID string, rule *catalog.Rule, lvl *catalog.DifficultyLevel, now time.Time) *RuleInstance {
	inst := &RuleInstance{
		ID:            id,
		PlaythroughID: playthroughID,
		RuleID:        rule.ID,
		RuleType:      rule.Type,
		Level:         lvl.Level,
		IsActive:      true,
		StartedAt:     now,
	}

	if rule.IsLegendary() {
		return inst
	}
	if lvl.DurationSeconds != nil {
		expiresAt := now.Add(time.Duration(*lvl.DurationSeconds) * time.Second)
		inst.ExpiresAt = &expiresAt
	}
	if lvl.Amount != nil {
		amount := *lvl.Amount
		inst.CurrentAmount = &amount
	}
	return inst
}

// IsLegendary reports whether the instance belongs to a legendary rule.
func (r *RuleInstance) IsLegendary() bool {
	return r.RuleType == catalog.RuleTypeLegendary
}

// IsTimed reports whether the instance expires at a known time.
func (r *RuleInstance) IsTimed() bool {
	return r.ExpiresAt != nil
}

// IsCounter reports whether the instance ends when its counter runs out.
func (r *RuleInstance) IsCounter() bool {
	return r.CurrentAmount != nil
}

// IsPermanent reports whether the instance has no predictable end.
func (r *RuleInstance) IsPermanent() bool {
	return r.ExpiresAt == nil && r.CurrentAmount == nil
}

// NaturallyEnded reports whether an active instance has run its course:
// its expiry has passed or its counter reached zero.
func (r *RuleInstance) NaturallyEnded(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return true
	}
	if r.CurrentAmount != nil && *r.CurrentAmount <= 0 {
		return true
	}
	return false
}

// IsLive reports whether the instance is active and has not naturally ended.
func (r *RuleInstance) IsLive(now time.Time) bool {
	return r.IsActive && !r.NaturallyEnded(now)
}

// Complete deactivates the instance at the given time.
func (r *RuleInstance) Complete(at time.Time) {
	r.IsActive = false
	r.CompletedAt = &at
}

// Settle completes a naturally ended instance. Timed instances are stamped
// with their expiry so per-rule cooldowns run from the real end.
func (r *RuleInstance) Settle(now time.Time) bool {
	if !r.NaturallyEnded(now) {
		return false
	}
	at := now
	if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
		at = *r.ExpiresAt
	}
	r.Complete(at)
	return true
}

// EndedAt returns when the instance ended, or nil if it is still live.
// A naturally ended but unsettled timed instance reports its expiry.
func (r *RuleInstance) EndedAt(now time.Time) *time.Time {
	if r.CompletedAt != nil {
		return r.CompletedAt
	}
	if r.NaturallyEnded(now) {
		if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			at := *r.ExpiresAt
			return &at
		}
		return &now
	}
	return nil
}

// EndTime returns EndedAt, or now for an instance that is still live.
func (r *RuleInstance) EndTime(now time.Time) time.Time {
	if at := r.EndedAt(now); at != nil {
		return *at
	}
	return now
}
