// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"context"
	"net/http"

	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"

	"github.com/gorilla/mux"
)

// HealthCheck reports whether the backing stores are reachable.
type HealthCheck interface {
	Check(ctx context.Context) error
}

// RouterOptions tunes the HTTP API.
type RouterOptions struct {
	// RatePerSec and Burst throttle requests per client. Zero disables throttling.
	RatePerSec float64
	Burst      int

	Health HealthCheck
}

// NewRouter creates the playthrough API router
func NewRouter(s *scheduler.Scheduler, opts RouterOptions) http.Handler {
	r := mux.NewRouter()

	playthroughs := NewPlaythroughHandler(s)
	activations := NewActivationHandler(s)

	r.Use(requestLogger)

	r.HandleFunc("/health", healthHandler(opts.Health)).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	if opts.RatePerSec > 0 {
		v1.Use(NewRateLimiter(opts.RatePerSec, opts.Burst).Middleware)
	}

	v1.HandleFunc("/playthroughs", playthroughs.Create).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}", playthroughs.Get).Methods("GET")
	v1.HandleFunc("/playthroughs/{id}/start", playthroughs.Start).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}/pause", playthroughs.Pause).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}/resume", playthroughs.Resume).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}/end", playthroughs.End).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}/config", playthroughs.Configure).Methods("PUT")

	v1.HandleFunc("/playthroughs/{id}/picks", activations.Pick).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}/queue", activations.Enqueue).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}/queue", activations.QueueStatus).Methods("GET")
	v1.HandleFunc("/playthroughs/{id}/queue/process", activations.ProcessQueue).Methods("POST")
	v1.HandleFunc("/playthroughs/{id}/queue/eta", activations.ETA).Methods("GET")
	v1.HandleFunc("/playthroughs/{id}/queue/{entryId}", activations.Cancel).Methods("DELETE")
	v1.HandleFunc("/playthroughs/{id}/rules", activations.ActiveRules).Methods("GET")
	v1.HandleFunc("/playthroughs/{id}/rules/{instanceId}/end", activations.EndRule).Methods("POST")

	return r
}

func healthHandler(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check.Check(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
