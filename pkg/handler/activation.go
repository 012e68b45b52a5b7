// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"

	"github.com/gorilla/mux"
)

// ActivationHandler handles rule pick, queue and active rule endpoints
type ActivationHandler struct {
	scheduler *scheduler.Scheduler
}

// NewActivationHandler creates a new activation handler
func NewActivationHandler(s *scheduler.Scheduler) *ActivationHandler {
	return &ActivationHandler{scheduler: s}
}

// PickRequest is the request body for a direct pick
type PickRequest struct {
	RuleID          string `json:"ruleId"`
	DifficultyLevel int    `json:"difficultyLevel"`
}

// EnqueueRequest is the request body for queueing an activation
type EnqueueRequest struct {
	RuleID          string  `json:"ruleId"`
	DifficultyLevel int     `json:"difficultyLevel"`
	QueuedByUserID  *string `json:"queuedByUserId,omitempty"`
}

// EnqueueResponse is returned when an activation request is queued
type EnqueueResponse struct {
	Entry      *playthrough.QueueEntry `json:"entry"`
	Position   int                     `json:"position"`
	ETASeconds int                     `json:"etaSeconds"`
}

// QueuedRequestResponse is a pending entry with its current ETA
type QueuedRequestResponse struct {
	Entry      *playthrough.QueueEntry `json:"entry"`
	Rank       int                     `json:"rank"`
	ETASeconds int                     `json:"etaSeconds"`
}

// ProcessResponse reports the outcome of one queue processing step
type ProcessResponse struct {
	Result            scheduler.Result          `json:"result"`
	Reason            string                    `json:"reason,omitempty"`
	Code              string                    `json:"code,omitempty"`
	RetryAfterSeconds int                       `json:"retryAfterSeconds,omitempty"`
	Entry             *playthrough.QueueEntry   `json:"entry,omitempty"`
	Instance          *playthrough.RuleInstance `json:"instance,omitempty"`
}

// Pick handles POST /v1/playthroughs/{id}/picks
func (h *ActivationHandler) Pick(w http.ResponseWriter, r *http.Request) {
	var req PickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RuleID == "" {
		writeError(w, http.StatusBadRequest, "ruleId is required")
		return
	}

	inst, err := h.scheduler.Pick(r.Context(), mux.Vars(r)["id"], req.RuleID, req.DifficultyLevel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

// Enqueue handles POST /v1/playthroughs/{id}/queue
func (h *ActivationHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RuleID == "" {
		writeError(w, http.StatusBadRequest, "ruleId is required")
		return
	}

	queued, err := h.scheduler.Enqueue(r.Context(), mux.Vars(r)["id"], req.RuleID, req.DifficultyLevel, req.QueuedByUserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, EnqueueResponse{
		Entry:      queued.Entry,
		Position:   queued.Position,
		ETASeconds: queued.ETASeconds,
	})
}

// QueueStatus handles GET /v1/playthroughs/{id}/queue
func (h *ActivationHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := h.scheduler.QueueStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]QueuedRequestResponse, 0, len(pending))
	for _, q := range pending {
		resp = append(resp, QueuedRequestResponse{Entry: q.Entry, Rank: q.Rank, ETASeconds: q.ETASeconds})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ProcessQueue handles POST /v1/playthroughs/{id}/queue/process
func (h *ActivationHandler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.scheduler.ProcessQueue(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := ProcessResponse{
		Result:            outcome.Result,
		RetryAfterSeconds: int(math.Ceil(outcome.RetryAfter.Seconds())),
		Entry:             outcome.Entry,
		Instance:          outcome.Instance,
	}
	if outcome.Reason != nil {
		resp.Reason = outcome.Reason.Error()
		resp.Code = playthrough.Code(outcome.Reason)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ETA handles GET /v1/playthroughs/{id}/queue/eta?ruleId=...&position=...
func (h *ActivationHandler) ETA(w http.ResponseWriter, r *http.Request) {
	ruleID := r.URL.Query().Get("ruleId")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "ruleId is required")
		return
	}
	position, err := strconv.Atoi(r.URL.Query().Get("position"))
	if err != nil || position < 1 {
		writeError(w, http.StatusBadRequest, "position must be a positive integer")
		return
	}

	eta, err := h.scheduler.CalculateETA(r.Context(), mux.Vars(r)["id"], position, ruleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"etaSeconds": eta})
}

// Cancel handles DELETE /v1/playthroughs/{id}/queue/{entryId}
func (h *ActivationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entry, err := h.scheduler.Cancel(r.Context(), vars["id"], vars["entryId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ActiveRules handles GET /v1/playthroughs/{id}/rules
func (h *ActivationHandler) ActiveRules(w http.ResponseWriter, r *http.Request) {
	instances, err := h.scheduler.ActiveRules(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if instances == nil {
		instances = []*playthrough.RuleInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

// EndRule handles POST /v1/playthroughs/{id}/rules/{instanceId}/end
func (h *ActivationHandler) EndRule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	inst, err := h.scheduler.EndRule(r.Context(), vars["id"], vars["instanceId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}
