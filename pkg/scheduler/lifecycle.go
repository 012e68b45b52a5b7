// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-playthrough-rules/pkg/common"
	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

// ReasonPlaythroughEnded is the failure reason of entries cancelled by End.
const ReasonPlaythroughEnded = "playthrough ended"

// CreateRequest describes a new playthrough.
type CreateRequest struct {
	UserID              string
	GameID              string
	RulesetID           string
	MaxConcurrentRules  int
	RuleCooldownSeconds int
	RuleIDs             []string
	DefaultRuleIDs      []string
}

// RuleToggle enables or disables one rule of the pool.
type RuleToggle struct {
	RuleID    string
	Enabled   bool
	IsDefault bool
}

// ConfigUpdate changes playthrough settings. Nil fields are left untouched.
type ConfigUpdate struct {
	MaxConcurrentRules  *int
	RuleCooldownSeconds *int
	Rules               []RuleToggle
}

// CreatePlaythrough creates a playthrough in setup. A user may own only one
// non-completed playthrough at a time.
func (s *Scheduler) CreatePlaythrough(ctx context.Context, req CreateRequest) (*playthrough.Playthrough, error) {
	var created *playthrough.Playthrough
	err := traced(ctx, "scheduler.CreatePlaythrough", func(scope *common.Scope) error {
		scope.Tag("user_id", req.UserID)
		if req.UserID == "" {
			return fmt.Errorf("%w: userId is required", playthrough.ErrInvalidArgument)
		}

		return s.withLock(scope.Ctx, "user:"+req.UserID, func() error {
			current, err := s.playthroughs.FindCurrentByUser(scope.Ctx, req.UserID)
			if err != nil {
				return err
			}
			if current != nil {
				return fmt.Errorf("%w: user %s already has playthrough %s (%s)",
					playthrough.ErrInvalidState, req.UserID, current.ID, current.Status)
			}

			p, err := playthrough.New(s.newID(), req.UserID, req.GameID, req.RulesetID, req.MaxConcurrentRules, s.clock.Now())
			if err != nil {
				return err
			}
			if err := p.SetRuleCooldownSeconds(req.RuleCooldownSeconds); err != nil {
				return err
			}

			defaults := make(map[string]bool, len(req.DefaultRuleIDs))
			for _, id := range req.DefaultRuleIDs {
				defaults[id] = true
			}
			for _, id := range req.RuleIDs {
				if err := s.enableRule(scope.Ctx, p, RuleToggle{RuleID: id, Enabled: true, IsDefault: defaults[id]}); err != nil {
					return err
				}
				delete(defaults, id)
			}
			// defaults not listed in the pool are still part of it
			for _, id := range req.DefaultRuleIDs {
				if defaults[id] {
					if err := s.enableRule(scope.Ctx, p, RuleToggle{RuleID: id, Enabled: true, IsDefault: true}); err != nil {
						return err
					}
				}
			}

			if err := s.playthroughs.Save(scope.Ctx, p); err != nil {
				return err
			}

			scope.Log.Infof("created playthrough %s for user %s (max %d concurrent rules)", p.ID, p.UserID, p.MaxConcurrentRules)
			created = p
			return nil
		})
	})
	return created, err
}

func (s *Scheduler) enableRule(ctx context.Context, p *playthrough.Playthrough, t RuleToggle) error {
	if t.Enabled {
		if _, _, err := s.lookupRule(ctx, t.RuleID, nil); err != nil {
			return err
		}
	}
	return p.SetRuleEnabled(t.RuleID, t.Enabled, t.IsDefault)
}

// Get returns a playthrough.
func (s *Scheduler) Get(ctx context.Context, playthroughID string) (*playthrough.Playthrough, error) {
	return s.playthroughs.Load(ctx, playthroughID)
}

// ListOpen returns the IDs of every non-completed playthrough.
func (s *Scheduler) ListOpen(ctx context.Context) ([]string, error) {
	return s.playthroughs.ListActive(ctx)
}

// mutate loads a playthrough under its lock, applies fn and saves the result.
func (s *Scheduler) mutate(ctx context.Context, name, playthroughID string, fn func(ctx context.Context, p *playthrough.Playthrough) error) (*playthrough.Playthrough, error) {
	var out *playthrough.Playthrough
	err := traced(ctx, name, func(scope *common.Scope) error {
		scope.Tag("playthrough_id", playthroughID)

		return s.withLock(scope.Ctx, lockKey(playthroughID), func() error {
			p, err := s.playthroughs.Load(scope.Ctx, playthroughID)
			if err != nil {
				return err
			}
			if err := fn(scope.Ctx, p); err != nil {
				return err
			}
			if err := s.playthroughs.Save(scope.Ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
	})
	return out, err
}

// Start moves a playthrough from setup to active.
func (s *Scheduler) Start(ctx context.Context, playthroughID string) (*playthrough.Playthrough, error) {
	return s.mutate(ctx, "scheduler.Start", playthroughID, func(_ context.Context, p *playthrough.Playthrough) error {
		return p.Start(s.clock.Now())
	})
}

// Pause suspends rule activation.
func (s *Scheduler) Pause(ctx context.Context, playthroughID string) (*playthrough.Playthrough, error) {
	return s.mutate(ctx, "scheduler.Pause", playthroughID, func(_ context.Context, p *playthrough.Playthrough) error {
		return p.Pause()
	})
}

// Resume re-enables rule activation after a pause.
func (s *Scheduler) Resume(ctx context.Context, playthroughID string) (*playthrough.Playthrough, error) {
	return s.mutate(ctx, "scheduler.Resume", playthroughID, func(_ context.Context, p *playthrough.Playthrough) error {
		return p.Resume()
	})
}

// End completes the playthrough, every still-active rule instance and
// cancels every pending queue entry.
func (s *Scheduler) End(ctx context.Context, playthroughID string) (*playthrough.Playthrough, error) {
	return s.mutate(ctx, "scheduler.End", playthroughID, func(ctx context.Context, p *playthrough.Playthrough) error {
		now := s.clock.Now()
		if err := p.End(now); err != nil {
			return err
		}

		active, err := s.instances.FindActive(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, inst := range active {
			inst.Complete(inst.EndTime(now))
		}
		if err := s.instances.Save(ctx, active...); err != nil {
			return err
		}

		pending, err := s.queue.Pending(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, entry := range pending {
			if err := entry.Cancel(now, ReasonPlaythroughEnded); err != nil {
				return err
			}
			if err := s.queue.Save(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Configure applies setup-time settings.
func (s *Scheduler) Configure(ctx context.Context, playthroughID string, update ConfigUpdate) (*playthrough.Playthrough, error) {
	return s.mutate(ctx, "scheduler.Configure", playthroughID, func(ctx context.Context, p *playthrough.Playthrough) error {
		if update.MaxConcurrentRules != nil {
			if err := p.SetMaxConcurrentRules(*update.MaxConcurrentRules); err != nil {
				return err
			}
		}
		if update.RuleCooldownSeconds != nil {
			if err := p.SetRuleCooldownSeconds(*update.RuleCooldownSeconds); err != nil {
				return err
			}
		}
		for _, t := range update.Rules {
			if err := s.enableRule(ctx, p, t); err != nil {
				return err
			}
		}
		return nil
	})
}
