// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"
)

type errorBody struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
	RemainingPicks    int    `json:"remainingPicks"`
	Current           int    `json:"current"`
	Max               int    `json:"max"`
}

func defaultPool() CreatePlaythroughRequest {
	return CreatePlaythroughRequest{
		UserID:             "user-1",
		GameID:             "game-1",
		RulesetID:          "ruleset-1",
		MaxConcurrentRules: 2,
		RuleIDs:            []string{"no-jump", "no-heal", "pistol-only", "one-life"},
	}
}

func TestPlaythroughLifecycle(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	var created playthrough.Playthrough
	api.expect(api.do("POST", "/v1/playthroughs", defaultPool()), http.StatusCreated, &created)
	if created.Status != playthrough.StatusSetup {
		t.Fatalf("status = %s, want %s", created.Status, playthrough.StatusSetup)
	}
	if created.MaxConcurrentRules != 2 {
		t.Errorf("maxConcurrentRules = %d, want 2", created.MaxConcurrentRules)
	}

	base := "/v1/playthroughs/" + created.ID
	steps := []struct {
		path string
		want playthrough.Status
	}{
		{base + "/start", playthrough.StatusActive},
		{base + "/pause", playthrough.StatusPaused},
		{base + "/resume", playthrough.StatusActive},
		{base + "/end", playthrough.StatusCompleted},
	}
	for _, step := range steps {
		var p playthrough.Playthrough
		api.expect(api.do("POST", step.path, nil), http.StatusOK, &p)
		if p.Status != step.want {
			t.Fatalf("POST %s status = %s, want %s", step.path, p.Status, step.want)
		}
	}

	var fetched playthrough.Playthrough
	api.expect(api.do("GET", base, nil), http.StatusOK, &fetched)
	if fetched.Status != playthrough.StatusCompleted {
		t.Errorf("GET status = %s, want completed", fetched.Status)
	}

	var body errorBody
	api.expect(api.do("POST", base+"/resume", nil), http.StatusConflict, &body)
	if body.Code != "invalid_state" {
		t.Errorf("code = %q, want invalid_state", body.Code)
	}
}

func TestCreatePlaythrough_Validation(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
	}{
		{"missing user", CreatePlaythroughRequest{GameID: "g"}, http.StatusBadRequest},
		{"negative limit", CreatePlaythroughRequest{UserID: "u", MaxConcurrentRules: -1}, http.StatusBadRequest},
		{"unknown rule", CreatePlaythroughRequest{UserID: "u2", RuleIDs: []string{"missing"}}, http.StatusNotFound},
		{"unknown field", map[string]string{"userId": "u3", "color": "red"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do("POST", "/v1/playthroughs", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestCreatePlaythrough_OnePerUser(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	api.expect(api.do("POST", "/v1/playthroughs", defaultPool()), http.StatusCreated, nil)

	var body errorBody
	api.expect(api.do("POST", "/v1/playthroughs", defaultPool()), http.StatusConflict, &body)
	if body.Code != "invalid_state" {
		t.Errorf("code = %q, want invalid_state", body.Code)
	}
}

func TestCreatePlaythrough_DefaultLimit(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	var created playthrough.Playthrough
	api.expect(api.do("POST", "/v1/playthroughs", CreatePlaythroughRequest{UserID: "u"}), http.StatusCreated, &created)
	if created.MaxConcurrentRules != playthrough.DefaultMaxConcurrentRules {
		t.Errorf("maxConcurrentRules = %d, want %d", created.MaxConcurrentRules, playthrough.DefaultMaxConcurrentRules)
	}
}

func TestGetPlaythrough_NotFound(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	var body errorBody
	api.expect(api.do("GET", "/v1/playthroughs/missing", nil), http.StatusNotFound, &body)
	if body.Code != "not_found" {
		t.Errorf("code = %q, want not_found", body.Code)
	}
}

func TestConfigure(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	var created playthrough.Playthrough
	api.expect(api.do("POST", "/v1/playthroughs", defaultPool()), http.StatusCreated, &created)
	base := "/v1/playthroughs/" + created.ID

	var updated playthrough.Playthrough
	api.expect(api.do("PUT", base+"/config", ConfigureRequest{
		MaxConcurrentRules:  intPtr(1),
		RuleCooldownSeconds: intPtr(30),
		Rules: []RuleToggleRequest{
			{RuleID: "no-heal", Enabled: false},
			{RuleID: "one-life", Enabled: true, IsDefault: true},
		},
	}), http.StatusOK, &updated)

	if updated.MaxConcurrentRules != 1 || updated.RuleCooldownSeconds != 30 {
		t.Errorf("settings = (%d, %d), want (1, 30)", updated.MaxConcurrentRules, updated.RuleCooldownSeconds)
	}
	for _, id := range updated.RuleIDs {
		if id == "no-heal" {
			t.Errorf("no-heal still in pool: %v", updated.RuleIDs)
		}
	}
	if len(updated.DefaultRuleIDs) != 1 || updated.DefaultRuleIDs[0] != "one-life" {
		t.Errorf("defaultRuleIds = %v, want [one-life]", updated.DefaultRuleIDs)
	}

	var body errorBody
	api.expect(api.do("PUT", base+"/config", ConfigureRequest{MaxConcurrentRules: intPtr(0)}), http.StatusBadRequest, &body)
	if body.Code != "invalid_argument" {
		t.Errorf("code = %q, want invalid_argument", body.Code)
	}

	api.expect(api.do("POST", base+"/start", nil), http.StatusOK, nil)
	api.expect(api.do("PUT", base+"/config", ConfigureRequest{MaxConcurrentRules: intPtr(3)}), http.StatusConflict, nil)
}

func TestPick(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	id := api.startPlaythrough(defaultPool())
	base := "/v1/playthroughs/" + id

	var inst playthrough.RuleInstance
	api.expect(api.do("POST", base+"/picks", PickRequest{RuleID: "no-jump", DifficultyLevel: 1}), http.StatusCreated, &inst)
	if inst.RuleID != "no-jump" || !inst.IsActive {
		t.Fatalf("instance = %+v, want active no-jump", inst)
	}
	if inst.ExpiresAt == nil || !inst.ExpiresAt.Equal(t0.Add(60*time.Second)) {
		t.Errorf("expiresAt = %v, want %v", inst.ExpiresAt, t0.Add(60*time.Second))
	}

	rec := api.do("POST", base+"/picks", PickRequest{RuleID: "no-heal", DifficultyLevel: 1})
	var body errorBody
	api.expect(rec, http.StatusTooManyRequests, &body)
	if body.Code != "rate_limited" || body.RetryAfterSeconds != 2 {
		t.Errorf("body = %+v, want rate_limited with 2s", body)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	api.clock.Advance(2 * time.Second)
	api.expect(api.do("POST", base+"/picks", PickRequest{RuleID: "no-jump", DifficultyLevel: 1}), http.StatusConflict, &body)
	if body.Code != "cooldown_active" {
		t.Errorf("code = %q, want cooldown_active", body.Code)
	}
}

func TestPick_Errors(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	id := api.startPlaythrough(defaultPool())
	base := "/v1/playthroughs/" + id

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"missing rule id", base + "/picks", PickRequest{DifficultyLevel: 1}, http.StatusBadRequest, ""},
		{"unknown rule", base + "/picks", PickRequest{RuleID: "missing", DifficultyLevel: 1}, http.StatusNotFound, "not_found"},
		{"bad level", base + "/picks", PickRequest{RuleID: "no-jump", DifficultyLevel: 9}, http.StatusBadRequest, "invalid_difficulty_level"},
		{"unknown playthrough", "/v1/playthroughs/missing/picks", PickRequest{RuleID: "no-jump", DifficultyLevel: 1}, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do("POST", tt.path, tt.body)
			var body errorBody
			api.expect(rec, tt.wantCode, &body)
			if tt.wantErr != "" && body.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", body.Code, tt.wantErr)
			}
		})
	}
}

func TestPick_RuleNotInPlay(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	req := defaultPool()
	req.RuleIDs = []string{"no-jump"}
	id := api.startPlaythrough(req)
	base := "/v1/playthroughs/" + id

	var body errorBody
	api.expect(api.do("POST", base+"/picks", PickRequest{RuleID: "no-heal", DifficultyLevel: 1}), http.StatusBadRequest, &body)
	if body.Code != "invalid_argument" {
		t.Errorf("pick code = %q, want invalid_argument", body.Code)
	}
	api.expect(api.do("POST", base+"/queue", EnqueueRequest{RuleID: "no-heal", DifficultyLevel: 1}), http.StatusBadRequest, &body)
	if body.Code != "invalid_argument" {
		t.Errorf("enqueue code = %q, want invalid_argument", body.Code)
	}
}

func TestPick_ConcurrencyLimit(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	id := api.startPlaythrough(defaultPool())
	base := "/v1/playthroughs/" + id

	for _, ruleID := range []string{"no-jump", "pistol-only"} {
		api.expect(api.do("POST", base+"/picks", PickRequest{RuleID: ruleID, DifficultyLevel: 1}), http.StatusCreated, nil)
		api.clock.Advance(2 * time.Second)
	}

	var body errorBody
	api.expect(api.do("POST", base+"/picks", PickRequest{RuleID: "no-heal", DifficultyLevel: 1}), http.StatusConflict, &body)
	if body.Code != "concurrency_limit_reached" || body.Current != 2 || body.Max != 2 {
		t.Errorf("body = %+v, want concurrency_limit_reached 2/2", body)
	}

	// legendary rules do not count toward the limit
	api.expect(api.do("POST", base+"/picks", PickRequest{RuleID: "one-life", DifficultyLevel: 1}), http.StatusCreated, nil)
}

func TestPick_NotActive(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	var created playthrough.Playthrough
	api.expect(api.do("POST", "/v1/playthroughs", defaultPool()), http.StatusCreated, &created)

	var body errorBody
	api.expect(api.do("POST", "/v1/playthroughs/"+created.ID+"/picks",
		PickRequest{RuleID: "no-jump", DifficultyLevel: 1}), http.StatusConflict, &body)
	if body.Code != "invalid_state" {
		t.Errorf("code = %q, want invalid_state", body.Code)
	}
}

func TestQueue(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	id := api.startPlaythrough(defaultPool())
	base := "/v1/playthroughs/" + id

	var first, second EnqueueResponse
	api.expect(api.do("POST", base+"/queue", EnqueueRequest{RuleID: "no-jump", DifficultyLevel: 1}), http.StatusAccepted, &first)
	api.expect(api.do("POST", base+"/queue", EnqueueRequest{RuleID: "no-heal", DifficultyLevel: 1}), http.StatusAccepted, &second)
	if first.Position != 1 || second.Position != 2 {
		t.Fatalf("positions = %d, %d, want 1, 2", first.Position, second.Position)
	}
	if first.ETASeconds != 0 || second.ETASeconds != 2 {
		t.Errorf("etas = %d, %d, want 0, 2", first.ETASeconds, second.ETASeconds)
	}

	var pending []QueuedRequestResponse
	api.expect(api.do("GET", base+"/queue", nil), http.StatusOK, &pending)
	if len(pending) != 2 || pending[0].Rank != 1 || pending[1].Entry.RuleID != "no-heal" {
		t.Fatalf("pending = %+v, want no-jump then no-heal", pending)
	}

	var out ProcessResponse
	api.expect(api.do("POST", base+"/queue/process", nil), http.StatusOK, &out)
	if out.Result != scheduler.ResultActivated || out.Instance == nil || out.Instance.RuleID != "no-jump" {
		t.Fatalf("process = %+v, want no-jump activated", out)
	}

	api.expect(api.do("POST", base+"/queue/process", nil), http.StatusOK, &out)
	if out.Result != scheduler.ResultSkipped || out.Code != "rate_limited" || out.RetryAfterSeconds != 2 {
		t.Errorf("process = %+v, want skipped by rate limit", out)
	}

	api.clock.Advance(2 * time.Second)
	api.expect(api.do("POST", base+"/queue/process", nil), http.StatusOK, &out)
	if out.Result != scheduler.ResultActivated || out.Entry.RuleID != "no-heal" {
		t.Fatalf("process = %+v, want no-heal activated", out)
	}

	api.clock.Advance(2 * time.Second)
	api.expect(api.do("POST", base+"/queue/process", nil), http.StatusOK, &out)
	if out.Result != scheduler.ResultQueueEmpty {
		t.Errorf("result = %s, want queue_empty", out.Result)
	}

	var rules []playthrough.RuleInstance
	api.expect(api.do("GET", base+"/rules", nil), http.StatusOK, &rules)
	if len(rules) != 2 {
		t.Errorf("active rules = %d, want 2", len(rules))
	}
}

func TestQueue_Cancel(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	id := api.startPlaythrough(defaultPool())
	base := "/v1/playthroughs/" + id

	var queued EnqueueResponse
	api.expect(api.do("POST", base+"/queue", EnqueueRequest{RuleID: "no-jump", DifficultyLevel: 1}), http.StatusAccepted, &queued)

	var entry playthrough.QueueEntry
	api.expect(api.do("DELETE", base+"/queue/"+queued.Entry.ID, nil), http.StatusOK, &entry)
	if entry.Status != playthrough.QueueStatusCancelled {
		t.Errorf("status = %s, want cancelled", entry.Status)
	}

	api.expect(api.do("DELETE", base+"/queue/"+queued.Entry.ID, nil), http.StatusConflict, nil)
	api.expect(api.do("DELETE", base+"/queue/missing", nil), http.StatusNotFound, nil)

	var pending []QueuedRequestResponse
	api.expect(api.do("GET", base+"/queue", nil), http.StatusOK, &pending)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestQueue_ETA(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	id := api.startPlaythrough(defaultPool())
	base := "/v1/playthroughs/" + id

	var eta map[string]int
	api.expect(api.do("GET", base+"/queue/eta?ruleId=no-jump&position=3", nil), http.StatusOK, &eta)
	if eta["etaSeconds"] != 4 {
		t.Errorf("etaSeconds = %d, want 4", eta["etaSeconds"])
	}

	api.expect(api.do("GET", base+"/queue/eta?ruleId=no-jump&position=0", nil), http.StatusBadRequest, nil)
	api.expect(api.do("GET", base+"/queue/eta?position=1", nil), http.StatusBadRequest, nil)
	api.expect(api.do("GET", base+"/queue/eta?ruleId=missing&position=1", nil), http.StatusNotFound, nil)
}

func TestEndRule(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})
	id := api.startPlaythrough(defaultPool())
	base := "/v1/playthroughs/" + id

	var inst playthrough.RuleInstance
	api.expect(api.do("POST", base+"/picks", PickRequest{RuleID: "pistol-only", DifficultyLevel: 1}), http.StatusCreated, &inst)

	var ended playthrough.RuleInstance
	api.expect(api.do("POST", base+"/rules/"+inst.ID+"/end", nil), http.StatusOK, &ended)
	if ended.IsActive || ended.CompletedAt == nil {
		t.Errorf("instance = %+v, want completed", ended)
	}

	api.expect(api.do("POST", base+"/rules/"+inst.ID+"/end", nil), http.StatusConflict, nil)
	api.expect(api.do("POST", base+"/rules/missing/end", nil), http.StatusNotFound, nil)

	var rules []playthrough.RuleInstance
	api.expect(api.do("GET", base+"/rules", nil), http.StatusOK, &rules)
	if len(rules) != 0 {
		t.Errorf("active rules = %d, want 0", len(rules))
	}
}

func TestRateLimiter(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{RatePerSec: 0.001, Burst: 2})

	api.expect(api.do("GET", "/v1/playthroughs/missing", nil), http.StatusNotFound, nil)
	api.expect(api.do("GET", "/v1/playthroughs/missing", nil), http.StatusNotFound, nil)

	rec := api.do("GET", "/v1/playthroughs/missing", nil)
	api.expect(rec, http.StatusTooManyRequests, nil)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	// health is not throttled
	api.expect(api.do("GET", "/health", nil), http.StatusOK, nil)
}

type failingHealth struct{}

func (failingHealth) Check(context.Context) error { return errors.New("redis down") }

func TestHealth(t *testing.T) {
	api := setupTestAPI(t, RouterOptions{})

	var status map[string]string
	api.expect(api.do("GET", "/health", nil), http.StatusOK, &status)
	if status["status"] != "ok" {
		t.Errorf("status = %q, want ok", status["status"])
	}

	down := setupTestAPI(t, RouterOptions{Health: failingHealth{}})
	api.expect(down.do("GET", "/health", nil), http.StatusServiceUnavailable, &status)
	if !strings.Contains(status["error"], "redis down") {
		t.Errorf("error = %q, want redis down", status["error"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{playthrough.ErrNotFound, http.StatusNotFound},
		{playthrough.NewRateLimitedError(1), http.StatusTooManyRequests},
		{playthrough.NewCooldownError("r", 2), http.StatusConflict},
		{playthrough.NewConcurrencyError(3, 3), http.StatusConflict},
		{playthrough.NewReplacementBlockedError("r"), http.StatusConflict},
		{playthrough.ErrInvalidDifficultyLevel, http.StatusBadRequest},
		{playthrough.ErrInvalidArgument, http.StatusBadRequest},
		{playthrough.ErrInvalidState, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
