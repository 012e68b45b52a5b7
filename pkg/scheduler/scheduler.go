// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/AccelByte/extend-playthrough-rules/pkg/clock"
	"github.com/AccelByte/extend-playthrough-rules/pkg/common"
	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
	"github.com/AccelByte/extend-playthrough-rules/pkg/service"

	"github.com/google/uuid"
)

// Scheduler activates rules for playthroughs, directly or through the
// activation queue. Every read-modify-write operation holds the
// playthrough's lock for its whole duration.
type Scheduler struct {
	playthroughs service.PlaythroughRepository
	instances    service.RuleInstanceRepository
	queue        service.QueueRepository
	rules        catalog.Repository
	locker       service.Locker
	clock        clock.Clock
	newID        func() string
}

// Config holds the collaborators of a Scheduler.
type Config struct {
	Playthroughs service.PlaythroughRepository
	Instances    service.RuleInstanceRepository
	Queue        service.QueueRepository
	Rules        catalog.Repository

	// Locker defaults to an in-process MemoryLocker.
	Locker service.Locker
	// Clock defaults to the system clock.
	Clock clock.Clock
	// NewID defaults to random UUIDs.
	NewID func() string
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Locker == nil {
		cfg.Locker = service.NewMemoryLocker()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Scheduler{
		playthroughs: cfg.Playthroughs,
		instances:    cfg.Instances,
		queue:        cfg.Queue,
		rules:        cfg.Rules,
		locker:       cfg.Locker,
		clock:        cfg.Clock,
		newID:        cfg.NewID,
	}
}

func lockKey(playthroughID string) string {
	return "playthrough:" + playthroughID
}

// withLock runs fn while holding the lock for key.
func (s *Scheduler) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer unlock()
	return fn()
}

// lookupRule resolves a rule, translating catalog errors to scheduler error kinds.
// A nil level pointer skips the level lookup.
func (s *Scheduler) lookupRule(ctx context.Context, ruleID string, level *int) (*catalog.Rule, *catalog.DifficultyLevel, error) {
	if level == nil {
		rule, err := s.rules.FindByID(ctx, ruleID)
		if err != nil {
			return nil, nil, translateCatalogError(err)
		}
		return rule, nil, nil
	}

	rule, lvl, err := s.rules.FindByIDAndLevel(ctx, ruleID, *level)
	if err != nil {
		return rule, nil, translateCatalogError(err)
	}
	return rule, lvl, nil
}

func notInPlayError(p *playthrough.Playthrough, ruleID string) error {
	return fmt.Errorf("%w: rule %s is not in play for playthrough %s", playthrough.ErrInvalidArgument, ruleID, p.ID)
}

func translateCatalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrRuleNotFound):
		return fmt.Errorf("%w: %v", playthrough.ErrNotFound, err)
	case errors.Is(err, catalog.ErrLevelNotFound):
		return fmt.Errorf("%w: %v", playthrough.ErrInvalidDifficultyLevel, err)
	default:
		return fmt.Errorf("failed to look up rule: %w", err)
	}
}

// traced runs fn inside a tracing scope named name and records its error.
func traced(ctx context.Context, name string, fn func(scope *common.Scope) error) error {
	scope := common.StartScope(ctx, name)
	defer scope.Finish()

	err := fn(scope)
	if err != nil {
		code := playthrough.Code(err)
		scope.Fail(err, code, code != "internal")
	}
	return err
}
