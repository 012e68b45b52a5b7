// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package playthrough

import (
	"fmt"
	"math"
	"time"
)

// MinPickInterval is the minimum gap between two rule activations of a playthrough.
const MinPickInterval = 2 * time.Second

// DefaultMaxConcurrentRules is used when a playthrough is created without a limit.
const DefaultMaxConcurrentRules = 3

// Status is the lifecycle state of a playthrough.
type Status string

const (
	StatusSetup     Status = "setup"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// IsValid returns true if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusSetup, StatusActive, StatusPaused, StatusCompleted:
		return true
	default:
		return false
	}
}

// Playthrough is one live game session and its rule scheduling bookkeeping.
type Playthrough struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	GameID    string `json:"gameId"`
	RulesetID string `json:"rulesetId"`
	Status    Status `json:"status"`

	MaxConcurrentRules  int `json:"maxConcurrentRules"`
	RuleCooldownSeconds int `json:"ruleCooldownSeconds"`

	// RuleIDs is the configured pool of rules in play.
	RuleIDs []string `json:"ruleIds"`
	// DefaultRuleIDs are always-on rules excluded from the concurrency count.
	DefaultRuleIDs []string `json:"defaultRuleIds"`

	LastPickAt *time.Time   `json:"lastPickAt,omitempty"`
	Cooldown   CooldownFIFO `json:"cooldownRuleIds"`

	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	EndedAt              *time.Time `json:"endedAt,omitempty"`
	TotalDurationSeconds int64      `json:"totalDurationSeconds"`
}

// New creates a playthrough in the setup state.
func New(id, userID, gameID, rulesetID string, maxConcurrentRules int, now time.Time) (*Playthrough, error) {
	if maxConcurrentRules < 1 {
		return nil, fmt.Errorf("%w: maxConcurrentRules must be at least 1, got %d", ErrInvalidArgument, maxConcurrentRules)
	}

	return &Playthrough{
		ID:                 id,
		UserID:             userID,
		GameID:             gameID,
		RulesetID:          rulesetID,
		Status:             StatusSetup,
		MaxConcurrentRules: maxConcurrentRules,
		RuleIDs:            []string{},
		DefaultRuleIDs:     []string{},
		CreatedAt:          now,
	}, nil
}

func (p *Playthrough) transition(from []Status, to Status) error {
	for _, s := range from {
		if p.Status == s {
			p.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move playthrough %s from %s to %s", ErrInvalidState, p.ID, p.Status, to)
}

// Start moves a playthrough from setup to active.
func (p *Playthrough) Start(now time.Time) error {
	if err := p.transition([]Status{StatusSetup}, StatusActive); err != nil {
		return err
	}
	p.StartedAt = &now
	return nil
}

// Pause moves an active playthrough to paused.
func (p *Playthrough) Pause() error {
	return p.transition([]Status{StatusActive}, StatusPaused)
}

// Resume moves a paused playthrough back to active.
func (p *Playthrough) Resume() error {
	return p.transition([]Status{StatusPaused}, StatusActive)
}

// End completes an active or paused playthrough and records its total duration.
func (p *Playthrough) End(now time.Time) error {
	if err := p.transition([]Status{StatusActive, StatusPaused}, StatusCompleted); err != nil {
		return err
	}
	p.EndedAt = &now
	if p.StartedAt != nil {
		p.TotalDurationSeconds = int64(now.Sub(*p.StartedAt) / time.Second)
	}
	return nil
}

// IsActive reports whether rules may currently be activated.
func (p *Playthrough) IsActive() bool {
	return p.Status == StatusActive
}

// IsCompleted reports whether the playthrough reached its terminal state.
func (p *Playthrough) IsCompleted() bool {
	return p.Status == StatusCompleted
}

func (p *Playthrough) requireSetup(what string) error {
	if p.Status != StatusSetup {
		return fmt.Errorf("%w: %s can only change during setup (status %s)", ErrInvalidState, what, p.Status)
	}
	return nil
}

// SetMaxConcurrentRules changes the concurrency limit. Setup only.
func (p *Playthrough) SetMaxConcurrentRules(n int) error {
	if err := p.requireSetup("maxConcurrentRules"); err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("%w: maxConcurrentRules must be at least 1, got %d", ErrInvalidArgument, n)
	}
	p.MaxConcurrentRules = n
	return nil
}

// SetRuleCooldownSeconds changes the per-rule reactivation gap. Setup only.
func (p *Playthrough) SetRuleCooldownSeconds(n int) error {
	if err := p.requireSetup("ruleCooldownSeconds"); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: ruleCooldownSeconds must not be negative, got %d", ErrInvalidArgument, n)
	}
	p.RuleCooldownSeconds = n
	return nil
}

// SetRuleEnabled toggles a rule in or out of the pool, optionally as an
// always-on default rule. Setup only.
func (p *Playthrough) SetRuleEnabled(ruleID string, enabled, isDefault bool) error {
	if err := p.requireSetup("rule configuration"); err != nil {
		return err
	}
	if ruleID == "" {
		return fmt.Errorf("%w: empty rule ID", ErrInvalidArgument)
	}

	p.RuleIDs = removeID(p.RuleIDs, ruleID)
	p.DefaultRuleIDs = removeID(p.DefaultRuleIDs, ruleID)
	if enabled {
		p.RuleIDs = append(p.RuleIDs, ruleID)
		if isDefault {
			p.DefaultRuleIDs = append(p.DefaultRuleIDs, ruleID)
		}
	}
	return nil
}

// IsDefault reports whether ruleID is an always-on default rule.
func (p *Playthrough) IsDefault(ruleID string) bool {
	return containsID(p.DefaultRuleIDs, ruleID)
}

// InPlay reports whether ruleID is in the configured pool.
func (p *Playthrough) InPlay(ruleID string) bool {
	return containsID(p.RuleIDs, ruleID)
}

// NonDefaultRuleIDs returns the configured pool without default rules.
func (p *Playthrough) NonDefaultRuleIDs() []string {
	out := make([]string, 0, len(p.RuleIDs))
	for _, id := range p.RuleIDs {
		if !p.IsDefault(id) {
			out = append(out, id)
		}
	}
	return out
}

// PoolExhausted reports whether every non-default configured rule is in the
// cooldown FIFO, in which case repetition cannot be avoided.
func (p *Playthrough) PoolExhausted() bool {
	return p.Cooldown.ContainsAll(p.NonDefaultRuleIDs())
}

// RateLimitRemaining returns how long until the next pick is allowed.
func (p *Playthrough) RateLimitRemaining(now time.Time) time.Duration {
	if p.LastPickAt == nil {
		return 0
	}
	remaining := MinPickInterval - now.Sub(*p.LastPickAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RateLimitRemainingSeconds rounds RateLimitRemaining up to whole seconds.
func (p *Playthrough) RateLimitRemainingSeconds(now time.Time) int {
	return int(math.Ceil(p.RateLimitRemaining(now).Seconds()))
}

// RecordPick stamps the pick time and pushes ruleID into the cooldown FIFO.
func (p *Playthrough) RecordPick(ruleID string, now time.Time) {
	p.LastPickAt = &now
	p.Cooldown.Push(ruleID)
}

// CountsTowardLimit reports whether an instance occupies a concurrency slot.
func (p *Playthrough) CountsTowardLimit(inst *RuleInstance) bool {
	return !inst.IsLegendary() && !p.IsDefault(inst.RuleID)
}

// ConcurrencyUsage counts live instances that occupy a concurrency slot.
// Instances that have naturally ended are not counted even before they are settled.
func (p *Playthrough) ConcurrencyUsage(instances []*RuleInstance, now time.Time) int {
	n := 0
	for _, inst := range instances {
		if inst.IsActive && !inst.NaturallyEnded(now) && p.CountsTowardLimit(inst) {
			n++
		}
	}
	return n
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
