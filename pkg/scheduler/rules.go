// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/pkg/common"
	"github.com/AccelByte/extend-playthrough-rules/pkg/metrics"
	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

// ActiveRules returns the rule instances still running. Instances that ended
// naturally are marked completed on the way.
func (s *Scheduler) ActiveRules(ctx context.Context, playthroughID string) ([]*playthrough.RuleInstance, error) {
	var live []*playthrough.RuleInstance
	err := traced(ctx, "scheduler.ActiveRules", func(scope *common.Scope) error {
		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			var err error
			live, _, err = s.settle(scope.Ctx, playthroughID)
			return err
		})
	})
	return live, err
}

// SettleExpired marks naturally ended rule instances completed and returns how many were settled.
func (s *Scheduler) SettleExpired(ctx context.Context, playthroughID string) (int, error) {
	var n int
	err := traced(ctx, "scheduler.SettleExpired", func(scope *common.Scope) error {
		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			var err error
			_, n, err = s.settle(scope.Ctx, playthroughID)
			return err
		})
	})
	return n, err
}

func (s *Scheduler) settle(ctx context.Context, playthroughID string) ([]*playthrough.RuleInstance, int, error) {
	if _, err := s.playthroughs.Load(ctx, playthroughID); err != nil {
		return nil, 0, err
	}

	active, err := s.instances.FindActive(ctx, playthroughID)
	if err != nil {
		return nil, 0, err
	}

	now := s.clock.Now()
	live := make([]*playthrough.RuleInstance, 0, len(active))
	settled := make([]*playthrough.RuleInstance, 0)
	for _, inst := range active {
		if inst.Settle(now) {
			settled = append(settled, inst)
			continue
		}
		live = append(live, inst)
	}

	if len(settled) > 0 {
		if err := s.instances.Save(ctx, settled...); err != nil {
			return nil, 0, err
		}
		metrics.SettledTotal.Add(float64(len(settled)))
	}
	return live, len(settled), nil
}

// EndRule explicitly completes a running rule instance.
func (s *Scheduler) EndRule(ctx context.Context, playthroughID, instanceID string) (*playthrough.RuleInstance, error) {
	var out *playthrough.RuleInstance
	err := traced(ctx, "scheduler.EndRule", func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)
		scope.Tag("instance_id", instanceID)
		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			if _, err := s.playthroughs.Load(scope.Ctx, playthroughID); err != nil {
				return err
			}
			inst, err := s.instances.Get(scope.Ctx, playthroughID, instanceID)
			if err != nil {
				return err
			}
			if !inst.IsActive {
				return fmt.Errorf("%w: rule instance %s already completed", playthrough.ErrInvalidState, instanceID)
			}

			inst.Complete(inst.EndTime(s.clock.Now()))
			if err := s.instances.Save(scope.Ctx, inst); err != nil {
				return err
			}
			scope.Log.Infof("ended rule %s (instance %s) on playthrough %s", inst.RuleID, inst.ID, playthroughID)
			out = inst
			return nil
		})
	})
	return out, err
}
