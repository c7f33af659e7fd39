package handlers

import (
	"context"
	"net/http"
	"time"
)

// DatabasePinger is satisfied by the persistence adapter in use
// (*pgxpool.Pool or a memorydb.Store stand-in) for readiness checks.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db DatabasePinger
}

func NewHealthHandler(db DatabasePinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthResponse struct {
	Status  string
	Uptime  string
	Checks  map[string]string
}

var startTime = time.Now()

// GetHealth handles GET /health.
func GetHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Uptime: time.Since(startTime).String()})
}

// GetLiveness handles GET /health/live.
func GetLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, struct{ Status string }{"alive"})
}

// GetReadiness handles GET /health/ready.
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, struct{ Status string }{"ready"})
}

// GetHealthDetailed handles GET /health/detailed.
func (h *HealthHandler) GetHealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"api": "healthy"}
	status := "ok"
	httpStatus := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "healthy"
	}

	respondJSON(w, httpStatus, healthResponse{Status: status, Uptime: time.Since(startTime).String(), Checks: checks})
}
