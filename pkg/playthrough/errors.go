// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package playthrough

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState indicates the operation is illegal for the current playthrough status.
	ErrInvalidState = errors.New("invalid playthrough state")

	// ErrRateLimited indicates a pick was attempted before the minimum pick interval elapsed.
	ErrRateLimited = errors.New("rule picks are rate limited")

	// ErrCooldownActive indicates the rule is still in the anti-repeat cooldown.
	ErrCooldownActive = errors.New("rule is on cooldown")

	// ErrConcurrencyLimitReached indicates the playthrough already runs its maximum of rules.
	ErrConcurrencyLimitReached = errors.New("concurrent rule limit reached")

	// ErrInvalidDifficultyLevel indicates the rule does not define the requested level.
	ErrInvalidDifficultyLevel = errors.New("invalid difficulty level")

	// ErrNotFound indicates a playthrough, rule, rule instance or queue entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReplacementBlocked indicates the same rule is still genuinely active.
	ErrReplacementBlocked = errors.New("rule is still active")

	// ErrInvalidArgument indicates a malformed configuration value.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ActivationError carries the details of a rejected activation.
// It unwraps to one of the sentinel errors above.
type ActivationError struct {
	Kind    error
	RuleID  string
	Message string

	// RetryAfterSeconds is set for ErrRateLimited.
	RetryAfterSeconds int
	// RemainingPicks is set for ErrCooldownActive.
	RemainingPicks int
	// Current and Max are set for ErrConcurrencyLimitReached.
	Current int
	Max     int
}

func (e *ActivationError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *ActivationError) Unwrap() error {
	return e.Kind
}

// NewRateLimitedError reports the whole seconds left before the next pick.
func NewRateLimitedError(seconds int) *ActivationError {
	unit := "seconds"
	if seconds == 1 {
		unit = "second"
	}
	return &ActivationError{
		Kind:              ErrRateLimited,
		RetryAfterSeconds: seconds,
		Message:           fmt.Sprintf("wait %d %s", seconds, unit),
	}
}

// NewCooldownError reports how many distinct picks remain before ruleID leaves the cooldown.
func NewCooldownError(ruleID string, remainingPicks int) *ActivationError {
	return &ActivationError{
		Kind:           ErrCooldownActive,
		RuleID:         ruleID,
		RemainingPicks: remainingPicks,
		Message:        fmt.Sprintf("rule %s available again after %d more picks", ruleID, remainingPicks),
	}
}

// NewConcurrencyError reports the current usage against the limit.
func NewConcurrencyError(current, max int) *ActivationError {
	return &ActivationError{
		Kind:    ErrConcurrencyLimitReached,
		Current: current,
		Max:     max,
		Message: fmt.Sprintf("%d of %d rules active", current, max),
	}
}

// NewReplacementBlockedError reports that ruleID already has a live instance.
func NewReplacementBlockedError(ruleID string) *ActivationError {
	return &ActivationError{
		Kind:    ErrReplacementBlocked,
		RuleID:  ruleID,
		Message: fmt.Sprintf("rule %s has not ended yet", ruleID),
	}
}

// NewRuleCooldownError reports that ruleID ended less than the per-rule cooldown ago.
func NewRuleCooldownError(ruleID string, seconds int) *ActivationError {
	return &ActivationError{
		Kind:              ErrCooldownActive,
		RuleID:            ruleID,
		RetryAfterSeconds: seconds,
		Message:           fmt.Sprintf("rule %s can be activated again in %d seconds", ruleID, seconds),
	}
}

// Code returns a short machine-readable name for the error kind of err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown_active"
	case errors.Is(err, ErrConcurrencyLimitReached):
		return "concurrency_limit_reached"
	case errors.Is(err, ErrInvalidDifficultyLevel):
		return "invalid_difficulty_level"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrReplacementBlocked):
		return "replacement_blocked"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal"
	}
}
