// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package playthrough

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
)

var t0 = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newTestPlaythrough(t *testing.T) *Playthrough {
	t.Helper()
	p, err := New("pt-1", "user-1", "game-1", "ruleset-1", 2, t0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew(t *testing.T) {
	p := newTestPlaythrough(t)
	if p.Status != StatusSetup {
		t.Errorf("Status = %s, want setup", p.Status)
	}
	if p.RuleIDs == nil || p.DefaultRuleIDs == nil {
		t.Error("rule id slices must be non-nil")
	}

	if _, err := New("pt-2", "u", "g", "r", 0, t0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("New(max=0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestStateMachine(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		op      func(p *Playthrough) error
		want    Status
		wantErr bool
	}{
		{"start from setup", StatusSetup, func(p *Playthrough) error { return p.Start(t0) }, StatusActive, false},
		{"start from active", StatusActive, func(p *Playthrough) error { return p.Start(t0) }, StatusActive, true},
		{"pause active", StatusActive, func(p *Playthrough) error { return p.Pause() }, StatusPaused, false},
		{"pause setup", StatusSetup, func(p *Playthrough) error { return p.Pause() }, StatusSetup, true},
		{"resume paused", StatusPaused, func(p *Playthrough) error { return p.Resume() }, StatusActive, false},
		{"resume active", StatusActive, func(p *Playthrough) error { return p.Resume() }, StatusActive, true},
		{"end active", StatusActive, func(p *Playthrough) error { return p.End(t0) }, StatusCompleted, false},
		{"end paused", StatusPaused, func(p *Playthrough) error { return p.End(t0) }, StatusCompleted, false},
		{"end setup", StatusSetup, func(p *Playthrough) error { return p.End(t0) }, StatusSetup, true},
		{"end completed", StatusCompleted, func(p *Playthrough) error { return p.End(t0) }, StatusCompleted, true},
		{"resume completed", StatusCompleted, func(p *Playthrough) error { return p.Resume() }, StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlaythrough(t)
			p.Status = tt.from
			err := tt.op(p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidState) {
				t.Errorf("error = %v, want ErrInvalidState", err)
			}
			if p.Status != tt.want {
				t.Errorf("Status = %s, want %s", p.Status, tt.want)
			}
		})
	}
}

func TestEnd_RecordsDuration(t *testing.T) {
	p := newTestPlaythrough(t)
	if err := p.Start(t0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	end := t0.Add(90*time.Second + 500*time.Millisecond)
	if err := p.End(end); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if p.TotalDurationSeconds != 90 {
		t.Errorf("TotalDurationSeconds = %d, want 90", p.TotalDurationSeconds)
	}
	if p.EndedAt == nil || !p.EndedAt.Equal(end) {
		t.Errorf("EndedAt = %v, want %v", p.EndedAt, end)
	}
}

func TestSetupOnlySettings(t *testing.T) {
	p := newTestPlaythrough(t)

	if err := p.SetMaxConcurrentRules(4); err != nil {
		t.Fatalf("SetMaxConcurrentRules() error = %v", err)
	}
	if err := p.SetMaxConcurrentRules(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetMaxConcurrentRules(0) error = %v, want ErrInvalidArgument", err)
	}
	if err := p.SetRuleCooldownSeconds(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetRuleCooldownSeconds(-1) error = %v, want ErrInvalidArgument", err)
	}
	if err := p.SetRuleEnabled("", true, false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetRuleEnabled(\"\") error = %v, want ErrInvalidArgument", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := p.SetRuleEnabled(id, true, id == "c"); err != nil {
			t.Fatalf("SetRuleEnabled(%s) error = %v", id, err)
		}
	}
	if err := p.SetRuleEnabled("b", false, false); err != nil {
		t.Fatalf("SetRuleEnabled(b, false) error = %v", err)
	}
	if !reflect.DeepEqual(p.RuleIDs, []string{"a", "c"}) {
		t.Errorf("RuleIDs = %v, want [a c]", p.RuleIDs)
	}
	if !p.IsDefault("c") || p.IsDefault("a") {
		t.Errorf("DefaultRuleIDs = %v, want [c]", p.DefaultRuleIDs)
	}
	if !reflect.DeepEqual(p.NonDefaultRuleIDs(), []string{"a"}) {
		t.Errorf("NonDefaultRuleIDs() = %v, want [a]", p.NonDefaultRuleIDs())
	}
	if !p.InPlay("a") || !p.InPlay("c") || p.InPlay("b") {
		t.Errorf("InPlay(a, b, c) = %v, %v, %v, want true, false, true", p.InPlay("a"), p.InPlay("b"), p.InPlay("c"))
	}

	if err := p.Start(t0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.SetMaxConcurrentRules(3); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetMaxConcurrentRules after start error = %v, want ErrInvalidState", err)
	}
	if err := p.SetRuleEnabled("d", true, false); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetRuleEnabled after start error = %v, want ErrInvalidState", err)
	}
}

func TestRateLimit(t *testing.T) {
	p := newTestPlaythrough(t)
	if got := p.RateLimitRemaining(t0); got != 0 {
		t.Errorf("RateLimitRemaining() before any pick = %v, want 0", got)
	}

	p.RecordPick("a", t0)
	tests := []struct {
		after       time.Duration
		wantSeconds int
	}{
		{0, 2},
		{500 * time.Millisecond, 2},
		{1500 * time.Millisecond, 1},
		{2 * time.Second, 0},
		{10 * time.Second, 0},
	}
	for _, tt := range tests {
		if got := p.RateLimitRemainingSeconds(t0.Add(tt.after)); got != tt.wantSeconds {
			t.Errorf("RateLimitRemainingSeconds(+%v) = %d, want %d", tt.after, got, tt.wantSeconds)
		}
	}
}

func TestCooldownFIFO(t *testing.T) {
	var f CooldownFIFO
	if f.Contains("a") || f.Len() != 0 {
		t.Fatal("zero FIFO must be empty")
	}

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.Push(id)
	}
	if f.Len() != CooldownCapacity {
		t.Fatalf("Len() = %d, want %d", f.Len(), CooldownCapacity)
	}
	if got := f.PicksUntilRelease("a"); got != 1 {
		t.Errorf("PicksUntilRelease(a) = %d, want 1", got)
	}
	if got := f.PicksUntilRelease("e"); got != 5 {
		t.Errorf("PicksUntilRelease(e) = %d, want 5", got)
	}

	f.Push("f")
	if f.Contains("a") {
		t.Error("oldest id a not evicted")
	}
	if !reflect.DeepEqual(f.IDs(), []string{"b", "c", "d", "e", "f"}) {
		t.Errorf("IDs() = %v", f.IDs())
	}

	// re-pushing moves the id to the most recent slot without duplicating it
	f.Push("c")
	if !reflect.DeepEqual(f.IDs(), []string{"b", "d", "e", "f", "c"}) {
		t.Errorf("IDs() after re-push = %v", f.IDs())
	}
	if got := f.PicksUntilRelease("zzz"); got != 0 {
		t.Errorf("PicksUntilRelease(absent) = %d, want 0", got)
	}

	f.Clear()
	if f.Len() != 0 || f.Contains("c") {
		t.Error("Clear() left ids behind")
	}
}

func TestCooldownFIFO_PartialFill(t *testing.T) {
	f := NewCooldownFIFO("a", "b")
	if got := f.PicksUntilRelease("a"); got != 4 {
		t.Errorf("PicksUntilRelease(a) = %d, want 4", got)
	}
	if got := f.PicksUntilRelease("b"); got != 5 {
		t.Errorf("PicksUntilRelease(b) = %d, want 5", got)
	}
}

func TestCooldownFIFO_ContainsAll(t *testing.T) {
	f := NewCooldownFIFO("a", "b", "c")
	tests := []struct {
		ids  []string
		want bool
	}{
		{[]string{"a", "b"}, true},
		{[]string{"a", "b", "c"}, true},
		{[]string{"a", "x"}, false},
		{nil, false},
		{[]string{}, false},
	}
	for _, tt := range tests {
		if got := f.ContainsAll(tt.ids); got != tt.want {
			t.Errorf("ContainsAll(%v) = %v, want %v", tt.ids, got, tt.want)
		}
	}
}

func TestCooldownFIFO_JSON(t *testing.T) {
	p := newTestPlaythrough(t)
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if string(raw["cooldownRuleIds"]) != "[]" {
		t.Errorf("empty cooldown encodes as %s, want []", raw["cooldownRuleIds"])
	}

	// decoding re-applies dedup and capacity
	var f CooldownFIFO
	if err := json.Unmarshal([]byte(`["a","b","a","c","d","e","f"]`), &f); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(f.IDs(), []string{"a", "c", "d", "e", "f"}) {
		t.Errorf("IDs() = %v, want [a c d e f]", f.IDs())
	}
	if f.Contains("b") {
		t.Errorf("b should have been evicted: %v", f.IDs())
	}
}

func TestPoolExhausted(t *testing.T) {
	p := newTestPlaythrough(t)
	if p.PoolExhausted() {
		t.Error("empty pool must not count as exhausted")
	}

	for _, id := range []string{"a", "b", "always"} {
		if err := p.SetRuleEnabled(id, true, id == "always"); err != nil {
			t.Fatalf("SetRuleEnabled(%s) error = %v", id, err)
		}
	}
	p.RecordPick("a", t0)
	if p.PoolExhausted() {
		t.Error("pool exhausted with b not picked")
	}
	p.RecordPick("b", t0.Add(2*time.Second))
	if !p.PoolExhausted() {
		t.Error("pool not exhausted although every non-default rule is in the FIFO")
	}
}

func timedRule(id string, seconds int) *catalog.Rule {
	return &catalog.Rule{ID: id, Type: catalog.RuleTypeBasic,
		Levels: []catalog.DifficultyLevel{{Level: 1, DurationSeconds: intPtr(seconds)}}}
}

func TestRuleInstance_Lifecycle(t *testing.T) {
	timed := timedRule("t", 30)
	counter := &catalog.Rule{ID: "c", Type: catalog.RuleTypeCourt, Levels: []catalog.DifficultyLevel{{Level: 1, Amount: intPtr(2)}}}
	legend := &catalog.Rule{ID: "l", Type: catalog.RuleTypeLegendary, Levels: []catalog.DifficultyLevel{{Level: 1}}}

	ti := NewRuleInstance("i1", "pt", timed, &timed.Levels[0], t0)
	if !ti.IsTimed() || ti.ExpiresAt == nil || !ti.ExpiresAt.Equal(t0.Add(30*time.Second)) {
		t.Fatalf("timed instance = %+v", ti)
	}
	if !ti.IsLive(t0.Add(29 * time.Second)) {
		t.Error("timed instance should be live before expiry")
	}
	if !ti.NaturallyEnded(t0.Add(30 * time.Second)) {
		t.Error("timed instance should end at expiry")
	}
	if ti.EndedAt(t0.Add(10*time.Second)) != nil {
		t.Error("EndedAt of live instance must be nil")
	}
	if at := ti.EndedAt(t0.Add(45 * time.Second)); at == nil || !at.Equal(t0.Add(30*time.Second)) {
		t.Errorf("EndedAt after expiry = %v, want expiry", at)
	}
	if !ti.Settle(t0.Add(45 * time.Second)) {
		t.Fatal("Settle() = false for expired instance")
	}
	if ti.IsActive || ti.CompletedAt == nil || !ti.CompletedAt.Equal(t0.Add(30*time.Second)) {
		t.Errorf("settled instance = %+v, want completed at expiry", ti)
	}
	if ti.Settle(t0.Add(50 * time.Second)) {
		t.Error("Settle() on completed instance = true")
	}

	ci := NewRuleInstance("i2", "pt", counter, &counter.Levels[0], t0)
	if !ci.IsCounter() || *ci.CurrentAmount != 2 {
		t.Fatalf("counter instance = %+v", ci)
	}
	if ci.NaturallyEnded(t0.Add(time.Hour)) {
		t.Error("counter with amount left should not end with time")
	}
	*ci.CurrentAmount = 0
	if !ci.NaturallyEnded(t0) {
		t.Error("counter at zero should have ended")
	}
	if got := ci.EndTime(t0.Add(5 * time.Second)); !got.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("EndTime() = %v, want now", got)
	}

	li := NewRuleInstance("i3", "pt", legend, &legend.Levels[0], t0)
	if !li.IsLegendary() || !li.IsPermanent() {
		t.Errorf("legendary instance = %+v, want permanent", li)
	}
	if li.NaturallyEnded(t0.Add(24 * time.Hour)) {
		t.Error("legendary instance must never end naturally")
	}
	li.Complete(t0.Add(time.Minute))
	if li.IsLive(t0.Add(time.Minute)) {
		t.Error("completed instance reported live")
	}
}

func TestConcurrencyUsage(t *testing.T) {
	p := newTestPlaythrough(t)
	for _, id := range []string{"a", "b", "always"} {
		if err := p.SetRuleEnabled(id, true, id == "always"); err != nil {
			t.Fatalf("SetRuleEnabled(%s) error = %v", id, err)
		}
	}

	a := timedRule("a", 60)
	b := timedRule("b", 5)
	always := timedRule("always", 600)
	legend := &catalog.Rule{ID: "l", Type: catalog.RuleTypeLegendary, Levels: []catalog.DifficultyLevel{{Level: 1}}}

	instances := []*RuleInstance{
		NewRuleInstance("1", p.ID, a, &a.Levels[0], t0),
		NewRuleInstance("2", p.ID, b, &b.Levels[0], t0),
		NewRuleInstance("3", p.ID, always, &always.Levels[0], t0),
		NewRuleInstance("4", p.ID, legend, &legend.Levels[0], t0),
	}

	if got := p.ConcurrencyUsage(instances, t0); got != 2 {
		t.Errorf("ConcurrencyUsage(t0) = %d, want 2", got)
	}
	// b has naturally ended but is not yet settled
	if got := p.ConcurrencyUsage(instances, t0.Add(10*time.Second)); got != 1 {
		t.Errorf("ConcurrencyUsage(t0+10s) = %d, want 1", got)
	}
}

func TestQueueEntry(t *testing.T) {
	user := "viewer-1"
	e := NewQueueEntry("q1", "pt", "a", 1, 3, &user, t0)
	if !e.IsPending() || e.Position != 3 || *e.QueuedByUserID != user {
		t.Fatalf("entry = %+v", e)
	}

	if err := e.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if err := e.Cancel(t0, "x"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Cancel() while processing error = %v, want ErrInvalidState", err)
	}
	if err := e.MarkActivated(t0.Add(time.Second)); err != nil {
		t.Fatalf("MarkActivated() error = %v", err)
	}
	if e.Status != QueueStatusActivated || e.ProcessedAt == nil {
		t.Errorf("entry = %+v, want activated with ProcessedAt", e)
	}
	if err := e.MarkFailed(t0, "late"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("MarkFailed() on activated error = %v, want ErrInvalidState", err)
	}

	c := NewQueueEntry("q2", "pt", "a", 1, 4, nil, t0)
	if err := c.Cancel(t0, "changed mind"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if c.Status != QueueStatusCancelled || c.FailureReason != "changed mind" {
		t.Errorf("cancelled entry = %+v", c)
	}

	f := NewQueueEntry("q3", "pt", "gone", 1, 5, nil, t0)
	if err := f.MarkFailed(t0, "rule removed"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if !f.Status.IsTerminal() || f.FailureReason != "rule removed" {
		t.Errorf("failed entry = %+v", f)
	}
	if QueueStatusPending.IsTerminal() || QueueStatusProcessing.IsTerminal() {
		t.Error("pending and processing must not be terminal")
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NewRateLimitedError(2), "rate_limited"},
		{NewCooldownError("a", 3), "cooldown_active"},
		{NewRuleCooldownError("a", 10), "cooldown_active"},
		{NewConcurrencyError(3, 3), "concurrency_limit_reached"},
		{NewReplacementBlockedError("a"), "replacement_blocked"},
		{fmt.Errorf("wrapped: %w", ErrNotFound), "not_found"},
		{ErrInvalidDifficultyLevel, "invalid_difficulty_level"},
		{ErrInvalidArgument, "invalid_argument"},
		{ErrInvalidState, "invalid_state"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}

	rl := NewRateLimitedError(1)
	if rl.Error() != "rule picks are rate limited: wait 1 second" {
		t.Errorf("Error() = %q", rl.Error())
	}
	var actErr *ActivationError
	if !errors.As(fmt.Errorf("pick: %w", NewCooldownError("a", 3)), &actErr) || actErr.RemainingPicks != 3 {
		t.Errorf("errors.As did not expose RemainingPicks: %+v", actErr)
	}
}
