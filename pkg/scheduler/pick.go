// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/AccelByte/extend-playthrough-rules/pkg/common"
	"github.com/AccelByte/extend-playthrough-rules/pkg/metrics"
	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"

	"github.com/sirupsen/logrus"
)

const (
	sourcePick  = "pick"
	sourceQueue = "queue"
)

// Pick activates ruleID at the given difficulty level right away.
//
// Checks run in order and the first failure is returned: playthrough active,
// rule known and in the playthrough's pool, minimum pick interval, anti-repeat
// FIFO (waived when the whole pool is in it), same-rule instance still running,
// concurrency limit, difficulty level.
func (s *Scheduler) Pick(ctx context.Context, playthroughID, ruleID string, level int) (*playthrough.RuleInstance, error) {
	var inst *playthrough.RuleInstance
	err := traced(ctx, "scheduler.Pick", func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)
		scope.Tag("rule_id", ruleID)

		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			p, err := s.playthroughs.Load(scope.Ctx, playthroughID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			if !p.IsActive() {
				return fmt.Errorf("%w: playthrough %s is %s", playthrough.ErrInvalidState, p.ID, p.Status)
			}

			rule, _, err := s.lookupRule(scope.Ctx, ruleID, nil)
			if err != nil {
				return err
			}
			if !p.InPlay(ruleID) {
				return notInPlayError(p, ruleID)
			}

			if seconds := p.RateLimitRemainingSeconds(now); seconds > 0 {
				return playthrough.NewRateLimitedError(seconds)
			}

			if p.Cooldown.Contains(ruleID) {
				if !p.PoolExhausted() {
					return playthrough.NewCooldownError(ruleID, p.Cooldown.PicksUntilRelease(ruleID))
				}
				scope.Log.Infof("rule pool of playthrough %s exhausted, allowing repeat of %s", p.ID, ruleID)
			}

			active, err := s.instances.FindActive(scope.Ctx, p.ID)
			if err != nil {
				return err
			}

			h := historyOf(active, ruleID, now)
			if h.live != nil {
				return playthrough.NewReplacementBlockedError(ruleID)
			}

			if countsTowardLimit(p, rule) {
				if usage := p.ConcurrencyUsage(active, now); usage >= p.MaxConcurrentRules {
					return playthrough.NewConcurrencyError(usage, p.MaxConcurrentRules)
				}
			}

			lvl, ok := rule.Level(level)
			if !ok {
				return fmt.Errorf("%w: rule %s has no level %d", playthrough.ErrInvalidDifficultyLevel, ruleID, level)
			}

			inst, err = s.activate(scope.Ctx, p, activation{
				rule:     rule,
				level:    lvl,
				replaced: h.ended,
				seen:     active,
				source:   sourcePick,
			}, now)
			return err
		})
	})

	result := "activated"
	if err != nil {
		result = playthrough.Code(err)
	}
	metrics.PicksTotal.WithLabelValues(result).Inc()

	return inst, err
}

// activation is one rule about to start on a playthrough.
type activation struct {
	rule     *catalog.Rule
	level    *catalog.DifficultyLevel
	replaced *playthrough.RuleInstance
	// seen are the instances the caller inspected. Naturally ended ones are settled.
	seen []*playthrough.RuleInstance
	// entry is the queue entry being activated, nil for a direct pick.
	entry  *playthrough.QueueEntry
	source string
}

// activate creates the rule instance, completes the replaced instance if any,
// and records the pick on the playthrough. Callers hold the playthrough lock.
//
// Writes go playthrough, queue entry, instances. A failure part way leaves at
// most a recorded pick without a running instance, never a running instance
// the rate limit and anti-repeat FIFO do not know about.
func (s *Scheduler) activate(ctx context.Context, p *playthrough.Playthrough, a activation, now time.Time) (*playthrough.RuleInstance, error) {
	changed := make([]*playthrough.RuleInstance, 0, 2)
	if a.replaced != nil {
		a.replaced.Complete(now)
		changed = append(changed, a.replaced)
	}
	settled := 0
	for _, inst := range a.seen {
		if inst == a.replaced || !inst.IsActive {
			continue
		}
		if inst.Settle(now) {
			changed = append(changed, inst)
			settled++
		}
	}

	inst := playthrough.NewRuleInstance(s.newID(), p.ID, a.rule, a.level, now)
	changed = append(changed, inst)
	p.RecordPick(a.rule.ID, now)

	if err := s.playthroughs.Save(ctx, p); err != nil {
		return nil, err
	}
	if a.entry != nil {
		if err := a.entry.MarkActivated(now); err != nil {
			return nil, err
		}
		if err := s.queue.Save(ctx, a.entry); err != nil {
			return nil, err
		}
	}
	if err := s.instances.Save(ctx, changed...); err != nil {
		logrus.Errorf("pick of rule %s on playthrough %s recorded but instance %s not saved: %v",
			a.rule.ID, p.ID, inst.ID, err)
		return nil, err
	}

	if settled > 0 {
		metrics.SettledTotal.Add(float64(settled))
	}
	metrics.ActivationsTotal.WithLabelValues(a.source, string(a.rule.Type)).Inc()
	logrus.Infof("activated rule %s level %d on playthrough %s via %s (instance %s)",
		a.rule.ID, a.level.Level, p.ID, a.source, inst.ID)
	return inst, nil
}
