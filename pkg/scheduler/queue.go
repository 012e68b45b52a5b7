// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/AccelByte/extend-playthrough-rules/pkg/common"
	"github.com/AccelByte/extend-playthrough-rules/pkg/metrics"
	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

// ReasonCancelled is the failure reason recorded on entries cancelled by request.
const ReasonCancelled = "cancelled by request"

// Result tags the outcome of one ProcessQueue call.
type Result string

const (
	// ResultActivated means one entry was activated.
	ResultActivated Result = "activated"
	// ResultBlocked means pending entries exist but none may activate yet.
	ResultBlocked Result = "blocked"
	// ResultQueueEmpty means there was nothing to process.
	ResultQueueEmpty Result = "queue_empty"
	// ResultSkipped means the playthrough cannot activate rules right now.
	ResultSkipped Result = "skipped"
)

// Outcome reports what ProcessQueue did.
type Outcome struct {
	Result Result
	// Reason explains a blocked or skipped outcome.
	Reason error
	// Entry is the activated entry, or the head entry when blocked.
	Entry *playthrough.QueueEntry
	// Instance is the rule instance created on activation.
	Instance *playthrough.RuleInstance
	// RetryAfter is set when the minimum pick interval has not elapsed.
	RetryAfter time.Duration
}

// Enqueued is the result of Enqueue.
type Enqueued struct {
	Entry      *playthrough.QueueEntry
	Position   int
	ETASeconds int
}

// QueuedRequest is a pending entry annotated with its current ETA.
type QueuedRequest struct {
	Entry *playthrough.QueueEntry
	// Rank is the 1-based place among pending entries.
	Rank       int
	ETASeconds int
}

// Enqueue adds an activation request for ruleID at level to the playthrough's queue.
// A nil queuedBy means the host or system queued it.
func (s *Scheduler) Enqueue(ctx context.Context, playthroughID, ruleID string, level int, queuedBy *string) (*Enqueued, error) {
	var out *Enqueued
	err := traced(ctx, "scheduler.Enqueue", func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)
		scope.Tag("rule_id", ruleID)

		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			p, err := s.playthroughs.Load(scope.Ctx, playthroughID)
			if err != nil {
				return err
			}
			if p.IsCompleted() {
				return fmt.Errorf("%w: playthrough %s is completed", playthrough.ErrInvalidState, p.ID)
			}

			rule, _, err := s.lookupRule(scope.Ctx, ruleID, &level)
			if err != nil {
				return err
			}
			if !p.InPlay(ruleID) {
				return notInPlayError(p, ruleID)
			}

			position, err := s.queue.NextPosition(scope.Ctx, p.ID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			entry := playthrough.NewQueueEntry(s.newID(), p.ID, ruleID, level, position, queuedBy, now)
			if err := s.queue.Save(scope.Ctx, entry); err != nil {
				return err
			}

			pending, err := s.queue.Pending(scope.Ctx, p.ID)
			if err != nil {
				return err
			}
			rank := len(pending)
			for i, e := range pending {
				if e.ID == entry.ID {
					rank = i + 1
					break
				}
			}

			instances, err := s.instances.FindAll(scope.Ctx, p.ID)
			if err != nil {
				return err
			}

			eta := ETA(p, rank, rule, instances, now)
			metrics.EnqueuedTotal.Inc()
			metrics.ETASeconds.Observe(float64(eta))
			scope.Log.Infof("queued rule %s level %d on playthrough %s at position %d (eta %ds)",
				ruleID, level, p.ID, position, eta)

			out = &Enqueued{Entry: entry, Position: position, ETASeconds: eta}
			return nil
		})
	})
	return out, err
}

// candidate is one pending entry evaluated for activation.
type candidate struct {
	entry    *playthrough.QueueEntry
	rule     *catalog.Rule
	level    *catalog.DifficultyLevel
	replaced *playthrough.RuleInstance
	blocks   []error
	fifo     bool
}

func (c *candidate) blockedOnlyByFIFO() bool {
	return c.fifo && len(c.blocks) == 1
}

func evaluate(p *playthrough.Playthrough, c *candidate, instances []*playthrough.RuleInstance, usage int, now time.Time) {
	ruleID := c.rule.ID
	h := historyOf(instances, ruleID, now)
	if h.live != nil {
		c.blocks = append(c.blocks, playthrough.NewReplacementBlockedError(ruleID))
		return
	}
	c.replaced = h.ended

	if remaining := ruleCooldownRemaining(p, h, now); remaining > 0 {
		c.blocks = append(c.blocks, playthrough.NewRuleCooldownError(ruleID, ceilSeconds(remaining)))
	}

	// replacing an ended instance is not a repeat, so the FIFO does not apply
	if c.replaced == nil && p.Cooldown.Contains(ruleID) && !p.PoolExhausted() {
		c.blocks = append(c.blocks, playthrough.NewCooldownError(ruleID, p.Cooldown.PicksUntilRelease(ruleID)))
		c.fifo = true
	}
	// usage already excludes the ended instance being replaced
	if countsTowardLimit(p, c.rule) && usage >= p.MaxConcurrentRules {
		c.blocks = append(c.blocks, playthrough.NewConcurrencyError(usage, p.MaxConcurrentRules))
	}
}

// ProcessQueue attempts exactly one activation from the playthrough's queue.
//
// Pending entries are tried in position order and the first one that passes
// every check is activated, so a blocked head does not hold back later
// entries. When every pending entry is blocked only by the anti-repeat FIFO
// the FIFO is cleared and the head entry is activated.
func (s *Scheduler) ProcessQueue(ctx context.Context, playthroughID string) (*Outcome, error) {
	var out *Outcome
	err := traced(ctx, "scheduler.ProcessQueue", func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)

		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			var err error
			out, err = s.processQueue(scope, playthroughID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.QueueProcessTotal.WithLabelValues(string(out.Result), playthrough.Code(out.Reason)).Inc()
	return out, nil
}

func (s *Scheduler) processQueue(scope *common.Scope, playthroughID string) (*Outcome, error) {
	ctx := scope.Ctx
	p, err := s.playthroughs.Load(ctx, playthroughID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !p.IsActive() {
		return &Outcome{
			Result: ResultSkipped,
			Reason: fmt.Errorf("%w: playthrough %s is %s", playthrough.ErrInvalidState, p.ID, p.Status),
		}, nil
	}
	if remaining := p.RateLimitRemaining(now); remaining > 0 {
		return &Outcome{
			Result:     ResultSkipped,
			Reason:     playthrough.NewRateLimitedError(ceilSeconds(remaining)),
			RetryAfter: remaining,
		}, nil
	}

	pending, err := s.queue.Pending(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	instances, err := s.instances.FindAll(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	usage := p.ConcurrencyUsage(instances, now)

	var head *candidate
	onlyFIFO := true
	for _, entry := range pending {
		rule, lvl, err := s.lookupRule(ctx, entry.RuleID, &entry.DifficultyLevel)
		if err == nil && !p.InPlay(entry.RuleID) {
			err = notInPlayError(p, entry.RuleID)
		}
		if err != nil {
			if !isUnplayable(err) {
				return nil, err
			}
			scope.Log.Warnf("failing queue entry %s of playthrough %s: %v", entry.ID, p.ID, err)
			if err := entry.MarkFailed(now, err.Error()); err != nil {
				return nil, err
			}
			if err := s.queue.Save(ctx, entry); err != nil {
				return nil, err
			}
			continue
		}

		c := &candidate{entry: entry, rule: rule, level: lvl}
		evaluate(p, c, instances, usage, now)
		if len(c.blocks) == 0 {
			return s.activateEntry(ctx, p, c, instances, now)
		}

		scope.Log.Debugf("queue entry %s (rule %s) blocked: %v", entry.ID, entry.RuleID, c.blocks)
		if head == nil {
			head = c
		}
		if !c.blockedOnlyByFIFO() {
			onlyFIFO = false
		}
	}

	if head == nil {
		return &Outcome{Result: ResultQueueEmpty}, nil
	}

	if onlyFIFO {
		scope.Log.Infof("every pending entry of playthrough %s is blocked by the anti-repeat FIFO, clearing it", p.ID)
		p.Cooldown.Clear()
		head.blocks = nil
		return s.activateEntry(ctx, p, head, instances, now)
	}

	return &Outcome{Result: ResultBlocked, Reason: head.blocks[0], Entry: head.entry}, nil
}

// isUnplayable reports whether a pending entry can never activate.
func isUnplayable(err error) bool {
	return errors.Is(err, playthrough.ErrNotFound) ||
		errors.Is(err, playthrough.ErrInvalidDifficultyLevel) ||
		errors.Is(err, playthrough.ErrInvalidArgument)
}

func (s *Scheduler) activateEntry(ctx context.Context, p *playthrough.Playthrough, c *candidate,
	instances []*playthrough.RuleInstance, now time.Time) (*Outcome, error) {
	if err := c.entry.MarkProcessing(); err != nil {
		return nil, err
	}

	inst, err := s.activate(ctx, p, activation{
		rule:     c.rule,
		level:    c.level,
		replaced: c.replaced,
		seen:     instances,
		entry:    c.entry,
		source:   sourceQueue,
	}, now)
	if err != nil {
		return nil, err
	}

	return &Outcome{Result: ResultActivated, Entry: c.entry, Instance: inst}, nil
}

// Drain calls ProcessQueue until it stops activating or limit activations were made.
func (s *Scheduler) Drain(ctx context.Context, playthroughID string, limit int) ([]*Outcome, error) {
	if limit < 1 {
		limit = 1
	}

	outcomes := make([]*Outcome, 0, 1)
	for i := 0; i < limit; i++ {
		out, err := s.ProcessQueue(ctx, playthroughID)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
		if out.Result != ResultActivated {
			break
		}
	}
	return outcomes, nil
}

// QueueStatus returns the pending entries in position order with fresh ETAs.
func (s *Scheduler) QueueStatus(ctx context.Context, playthroughID string) ([]QueuedRequest, error) {
	var out []QueuedRequest
	err := traced(ctx, "scheduler.QueueStatus", func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)

		p, err := s.playthroughs.Load(scope.Ctx, playthroughID)
		if err != nil {
			return err
		}

		pending, err := s.queue.Pending(scope.Ctx, p.ID)
		if err != nil {
			return err
		}
		instances, err := s.instances.FindAll(scope.Ctx, p.ID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		out = make([]QueuedRequest, 0, len(pending))
		for i, entry := range pending {
			rule, err := s.rules.FindByID(scope.Ctx, entry.RuleID)
			if err != nil {
				// a removed rule fails on the next processing pass; estimate as a regular rule
				rule = &catalog.Rule{ID: entry.RuleID}
			}
			out = append(out, QueuedRequest{
				Entry:      entry,
				Rank:       i + 1,
				ETASeconds: ETA(p, i+1, rule, instances, now),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CalculateETA predicts the seconds until a request for ruleID at the given
// 1-based position activates.
func (s *Scheduler) CalculateETA(ctx context.Context, playthroughID string, position int, ruleID string) (int, error) {
	var eta int
	err := traced(ctx, "scheduler.CalculateETA", func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)
		scope.Tag("rule_id", ruleID)

		p, err := s.playthroughs.Load(scope.Ctx, playthroughID)
		if err != nil {
			return err
		}
		rule, _, err := s.lookupRule(scope.Ctx, ruleID, nil)
		if err != nil {
			return err
		}
		instances, err := s.instances.FindAll(scope.Ctx, p.ID)
		if err != nil {
			return err
		}
		eta = ETA(p, position, rule, instances, s.clock.Now())
		return nil
	})
	return eta, err
}

// Cancel withdraws a pending queue entry.
func (s *Scheduler) Cancel(ctx context.Context, playthroughID, entryID string) (*playthrough.QueueEntry, error) {
	var out *playthrough.QueueEntry
	err := traced(ctx, "scheduler.Cancel", func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)
		scope.Tag("entry_id", entryID)
		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			if _, err := s.playthroughs.Load(scope.Ctx, playthroughID); err != nil {
				return err
			}
			entry, err := s.queue.Get(scope.Ctx, playthroughID, entryID)
			if err != nil {
				return err
			}
			if err := entry.Cancel(s.clock.Now(), ReasonCancelled); err != nil {
				return err
			}
			if err := s.queue.Save(scope.Ctx, entry); err != nil {
				return err
			}
			scope.Log.Infof("cancelled queue entry %s of playthrough %s", entryID, playthroughID)
			out = entry
			return nil
		})
	})
	return out, err
}
