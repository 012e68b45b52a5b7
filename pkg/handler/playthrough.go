// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"context"
	"net/http"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// PlaythroughHandler handles playthrough lifecycle endpoints
type PlaythroughHandler struct {
	scheduler *scheduler.Scheduler
}

// NewPlaythroughHandler creates a new playthrough handler
func NewPlaythroughHandler(s *scheduler.Scheduler) *PlaythroughHandler {
	return &PlaythroughHandler{scheduler: s}
}

// CreatePlaythroughRequest is the request body for creating a playthrough
type CreatePlaythroughRequest struct {
	UserID              string   `json:"userId"`
	GameID              string   `json:"gameId"`
	RulesetID           string   `json:"rulesetId"`
	MaxConcurrentRules  int      `json:"maxConcurrentRules"`
	RuleCooldownSeconds int      `json:"ruleCooldownSeconds"`
	RuleIDs             []string `json:"ruleIds"`
	DefaultRuleIDs      []string `json:"defaultRuleIds"`
}

// RuleToggleRequest enables or disables one rule of the pool
type RuleToggleRequest struct {
	RuleID    string `json:"ruleId"`
	Enabled   bool   `json:"enabled"`
	IsDefault bool   `json:"isDefault"`
}

// ConfigureRequest is the request body for updating playthrough settings
type ConfigureRequest struct {
	MaxConcurrentRules  *int                `json:"maxConcurrentRules,omitempty"`
	RuleCooldownSeconds *int                `json:"ruleCooldownSeconds,omitempty"`
	Rules               []RuleToggleRequest `json:"rules,omitempty"`
}

// Create handles POST /v1/playthroughs
func (h *PlaythroughHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePlaythroughRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxConcurrentRules == 0 {
		req.MaxConcurrentRules = playthrough.DefaultMaxConcurrentRules
	}

	p, err := h.scheduler.CreatePlaythrough(r.Context(), scheduler.CreateRequest{
		UserID:              req.UserID,
		GameID:              req.GameID,
		RulesetID:           req.RulesetID,
		MaxConcurrentRules:  req.MaxConcurrentRules,
		RuleCooldownSeconds: req.RuleCooldownSeconds,
		RuleIDs:             req.RuleIDs,
		DefaultRuleIDs:      req.DefaultRuleIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logrus.Infof("created playthrough %s for user %s", p.ID, p.UserID)
	writeJSON(w, http.StatusCreated, p)
}

// Get handles GET /v1/playthroughs/{id}
func (h *PlaythroughHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.scheduler.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Start handles POST /v1/playthroughs/{id}/start
func (h *PlaythroughHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.Start)
}

// Pause handles POST /v1/playthroughs/{id}/pause
func (h *PlaythroughHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.Pause)
}

// Resume handles POST /v1/playthroughs/{id}/resume
func (h *PlaythroughHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.Resume)
}

// End handles POST /v1/playthroughs/{id}/end
func (h *PlaythroughHandler) End(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.End)
}

func (h *PlaythroughHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, playthroughID string) (*playthrough.Playthrough, error)) {
	p, err := fn(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Configure handles PUT /v1/playthroughs/{id}/config
func (h *PlaythroughHandler) Configure(w http.ResponseWriter, r *http.Request) {
	var req ConfigureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := scheduler.ConfigUpdate{
		MaxConcurrentRules:  req.MaxConcurrentRules,
		RuleCooldownSeconds: req.RuleCooldownSeconds,
	}
	for _, t := range req.Rules {
		update.Rules = append(update.Rules, scheduler.RuleToggle{
			RuleID:    t.RuleID,
			Enabled:   t.Enabled,
			IsDefault: t.IsDefault,
		})
	}

	p, err := h.scheduler.Configure(r.Context(), mux.Vars(r)["id"], update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
