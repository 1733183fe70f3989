// Package handler exposes readiness/liveness for Kubernetes, load balancers, and CI.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger reports storage reachability. Satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports policy engine health. Satisfied by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz.
type Handler struct {
	db     Pinger
	policy PolicyChecker
}

// New returns a health Handler. Either dependency may be nil; nil checks pass.
func New(db Pinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, policy: policy}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthz runs the dependency checks with a short deadline. 200 when all
// pass, 503 otherwise, with per-check detail either way.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			resp.Checks["database"] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			resp.Checks["policy"] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["policy"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
