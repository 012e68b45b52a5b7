// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
	"github.com/AccelByte/extend-playthrough-rules/pkg/service"

	"github.com/sirupsen/logrus"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	RuleID            string `json:"ruleId,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	RemainingPicks    int    `json:"remainingPicks,omitempty"`
	Current           int    `json:"current,omitempty"`
	Max               int    `json:"max,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps a scheduler error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, playthrough.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, playthrough.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, playthrough.ErrInvalidDifficultyLevel),
		errors.Is(err, playthrough.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, playthrough.ErrInvalidState),
		errors.Is(err, playthrough.ErrCooldownActive),
		errors.Is(err, playthrough.ErrConcurrencyLimitReached),
		errors.Is(err, playthrough.ErrReplacementBlocked):
		return http.StatusConflict
	case errors.Is(err, service.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its status, code and activation details.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Code: playthrough.Code(err)}
	if status == http.StatusInternalServerError {
		logrus.Errorf("request failed: %v", err)
		resp.Error = "internal error"
	}

	var actErr *playthrough.ActivationError
	if errors.As(err, &actErr) {
		resp.RuleID = actErr.RuleID
		resp.RetryAfterSeconds = actErr.RetryAfterSeconds
		resp.RemainingPicks = actErr.RemainingPicks
		resp.Current = actErr.Current
		resp.Max = actErr.Max
		if actErr.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(actErr.RetryAfterSeconds))
		}
	}

	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
