// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRuleNotFound indicates that the catalog has no rule with the requested ID.
	ErrRuleNotFound = errors.New("rule not found in catalog")

	// ErrLevelNotFound indicates that the rule exists but does not define the requested level.
	ErrLevelNotFound = errors.New("difficulty level not defined for rule")

	// ErrEmptyCatalog indicates that the catalog holds no rules at all.
	ErrEmptyCatalog = errors.New("rule catalog is empty")
)

// RuleType classifies a rule.
type RuleType string

const (
	RuleTypeBasic     RuleType = "basic"
	RuleTypeCourt     RuleType = "court"
	RuleTypeLegendary RuleType = "legendary"
)

// IsValid returns true if the rule type is known.
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeBasic, RuleTypeCourt, RuleTypeLegendary:
		return true
	default:
		return false
	}
}

// DifficultyLevel defines how long (or how many times) a rule applies at a given level.
// At most one of DurationSeconds and Amount is set; neither means permanent.
type DifficultyLevel struct {
	Level           int  `yaml:"level" json:"level"`
	DurationSeconds *int `yaml:"duration_seconds,omitempty" json:"durationSeconds,omitempty"`
	Amount          *int `yaml:"amount,omitempty" json:"amount,omitempty"`
}

// IsTimed reports whether the level expires after a duration.
func (d DifficultyLevel) IsTimed() bool {
	return d.DurationSeconds != nil
}

// IsCounter reports whether the level ends when a counter runs out.
func (d DifficultyLevel) IsCounter() bool {
	return d.Amount != nil
}

// IsPermanent reports whether the level has neither duration nor counter.
func (d DifficultyLevel) IsPermanent() bool {
	return d.DurationSeconds == nil && d.Amount == nil
}

// Rule is a read-only catalog definition.
type Rule struct {
	ID     string            `yaml:"id" json:"id"`
	Name   string            `yaml:"name" json:"name"`
	Type   RuleType          `yaml:"type" json:"type"`
	Levels []DifficultyLevel `yaml:"levels" json:"levels"`
}

// Level returns the difficulty level definition matching level.
func (r *Rule) Level(level int) (*DifficultyLevel, bool) {
	for i := range r.Levels {
		if r.Levels[i].Level == level {
			return &r.Levels[i], true
		}
	}
	return nil, false
}

// IsLegendary reports whether the rule is a legendary (permanent) rule.
func (r *Rule) IsLegendary() bool {
	return r.Type == RuleTypeLegendary
}

// Validate checks the rule definition for structural errors.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule with empty ID found")
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("rule %s has invalid type %q", r.ID, r.Type)
	}
	if len(r.Levels) == 0 {
		return fmt.Errorf("rule %s defines no difficulty levels", r.ID)
	}

	seen := make(map[int]bool, len(r.Levels))
	for _, lvl := range r.Levels {
		if seen[lvl.Level] {
			return fmt.Errorf("rule %s has duplicate level %d", r.ID, lvl.Level)
		}
		seen[lvl.Level] = true

		if lvl.IsTimed() && lvl.IsCounter() {
			return fmt.Errorf("rule %s level %d defines both duration and amount", r.ID, lvl.Level)
		}
		if lvl.DurationSeconds != nil && *lvl.DurationSeconds <= 0 {
			return fmt.Errorf("rule %s level %d has non-positive duration", r.ID, lvl.Level)
		}
		if lvl.Amount != nil && *lvl.Amount <= 0 {
			return fmt.Errorf("rule %s level %d has non-positive amount", r.ID, lvl.Level)
		}
		if r.IsLegendary() && !lvl.IsPermanent() {
			return fmt.Errorf("legendary rule %s level %d must not define duration or amount", r.ID, lvl.Level)
		}
	}

	return nil
}

// Repository is the read-only rule lookup used by the scheduler.
type Repository interface {
	// FindByID returns the rule or ErrRuleNotFound.
	FindByID(ctx context.Context, ruleID string) (*Rule, error)

	// FindByIDAndLevel returns the rule and its level, or ErrRuleNotFound / ErrLevelNotFound.
	FindByIDAndLevel(ctx context.Context, ruleID string, level int) (*Rule, *DifficultyLevel, error)
}
