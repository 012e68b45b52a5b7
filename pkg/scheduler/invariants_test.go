// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"errors"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

// TestInvariantsUnderRandomTraffic drives a playthrough with a random mix of
// picks, enqueues, queue processing, explicit ends and clock jumps, and checks
// the scheduling invariants after every step.
func TestInvariantsUnderRandomTraffic(t *testing.T) {
	pool := []string{"rule-a", "rule-b", "rule-c", "x1", "x2", "x3", "counter", "legend", "always-on"}

	for seed := int64(1); seed <= 20; seed++ {
		f := newFixture(t)
		p := f.active(CreateRequest{
			MaxConcurrentRules:  2,
			RuleCooldownSeconds: int(seed % 3 * 5),
			RuleIDs:             pool,
			DefaultRuleIDs:      []string{"always-on"},
		})
		rng := rand.New(rand.NewSource(seed))

		for step := 0; step < 200; step++ {
			ruleID := pool[rng.Intn(len(pool))]
			switch op := rng.Intn(10); {
			case op < 3:
				_, err := f.sched.Pick(f.ctx, p.ID, ruleID, 1)
				if err != nil && playthrough.Code(err) == "internal" {
					t.Fatalf("seed %d step %d: Pick() error = %v", seed, step, err)
				}
			case op < 5:
				if _, err := f.sched.Enqueue(f.ctx, p.ID, ruleID, 1, nil); err != nil {
					t.Fatalf("seed %d step %d: Enqueue() error = %v", seed, step, err)
				}
			case op < 8:
				f.process(p)
			case op < 9:
				active, _ := f.store.Instances().FindActive(f.ctx, p.ID)
				if len(active) > 0 {
					target := active[rng.Intn(len(active))]
					if _, err := f.sched.EndRule(f.ctx, p.ID, target.ID); err != nil && !errors.Is(err, playthrough.ErrInvalidState) {
						t.Fatalf("seed %d step %d: EndRule() error = %v", seed, step, err)
					}
				}
			default:
				// counters are consumed by gameplay, outside the scheduler
				active, _ := f.store.Instances().FindActive(f.ctx, p.ID)
				for _, inst := range active {
					if inst.IsCounter() && *inst.CurrentAmount > 0 {
						*inst.CurrentAmount--
						_ = f.store.Instances().Save(f.ctx, inst)
					}
				}
			}

			f.clock.Advance(time.Duration(rng.Intn(4000)) * time.Millisecond)
			checkInvariants(t, f, p.ID)
		}
	}
}

func checkInvariants(t *testing.T, f *fixture, playthroughID string) {
	t.Helper()

	p := f.load(playthroughID)
	instances, err := f.store.Instances().FindAll(f.ctx, playthroughID)
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}

	now := f.clock.Now()
	if usage := p.ConcurrencyUsage(instances, now); usage > p.MaxConcurrentRules {
		t.Fatalf("concurrency usage %d exceeds max %d", usage, p.MaxConcurrentRules)
	}

	activeByRule := map[string]int{}
	starts := make([]time.Time, 0, len(instances))
	for _, inst := range instances {
		if inst.IsActive {
			activeByRule[inst.RuleID]++
			if activeByRule[inst.RuleID] > 1 {
				t.Fatalf("rule %s has %d active instances", inst.RuleID, activeByRule[inst.RuleID])
			}
		}
		starts = append(starts, inst.StartedAt)
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < playthrough.MinPickInterval {
			t.Fatalf("activations %v apart, expected at least %v", gap, playthrough.MinPickInterval)
		}
	}

	if p.Cooldown.Len() > playthrough.CooldownCapacity {
		t.Fatalf("cooldown FIFO holds %d ids", p.Cooldown.Len())
	}
}
