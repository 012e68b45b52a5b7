// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/catalog"
	"github.com/AccelByte/extend-playthrough-rules/pkg/clock"
	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"
	"github.com/AccelByte/extend-playthrough-rules/pkg/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

var t0 = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

type testAPI struct {
	t      *testing.T
	router http.Handler
	clock  *clock.Manual
}

// setupTestAPI creates a router over a scheduler backed by miniredis.
func setupTestAPI(t *testing.T, opts RouterOptions) *testAPI {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := catalog.NewRegistry()
	rules := []catalog.Rule{
		{ID: "no-jump", Name: "No Jumping", Type: catalog.RuleTypeBasic,
			Levels: []catalog.DifficultyLevel{{Level: 1, DurationSeconds: intPtr(60)}}},
		{ID: "no-heal", Name: "No Healing", Type: catalog.RuleTypeBasic,
			Levels: []catalog.DifficultyLevel{{Level: 1, DurationSeconds: intPtr(60)}}},
		{ID: "pistol-only", Name: "Pistol Only", Type: catalog.RuleTypeCourt,
			Levels: []catalog.DifficultyLevel{{Level: 1, Amount: intPtr(3)}}},
		{ID: "one-life", Name: "One Life", Type: catalog.RuleTypeLegendary,
			Levels: []catalog.DifficultyLevel{{Level: 1}}},
	}
	for _, r := range rules {
		if err := registry.Register(r); err != nil {
			t.Fatalf("Register(%s) error = %v", r.ID, err)
		}
	}

	clk := clock.NewManual(t0)
	storeCfg := service.RedisStoreConfig{}
	sched := scheduler.New(scheduler.Config{
		Playthroughs: service.NewRedisPlaythroughStore(client, storeCfg),
		Instances:    service.NewRedisRuleInstanceStore(client, storeCfg),
		Queue:        service.NewRedisQueueStore(client, storeCfg),
		Rules:        registry,
		Locker:       service.NewRedisLocker(client, service.RedisLockerConfig{}),
		Clock:        clk,
	})

	if opts.Health == nil {
		opts.Health = service.NewHealthChecker(client)
	}
	return &testAPI{t: t, router: NewRouter(sched, opts), clock: clk}
}

// do sends a request and returns the recorder.
func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// expect asserts the status and decodes the body into out when non-nil.
func (a *testAPI) expect(rec *httptest.ResponseRecorder, status int, out interface{}) {
	a.t.Helper()
	if rec.Code != status {
		a.t.Fatalf("status = %d, want %d (body: %s)", rec.Code, status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
		}
	}
}

// startPlaythrough creates and starts a playthrough and returns its id.
func (a *testAPI) startPlaythrough(req CreatePlaythroughRequest) string {
	a.t.Helper()

	var created struct {
		ID string `json:"id"`
	}
	a.expect(a.do("POST", "/v1/playthroughs", req), http.StatusCreated, &created)
	a.expect(a.do("POST", "/v1/playthroughs/"+created.ID+"/start", nil), http.StatusOK, nil)
	return created.ID
}
