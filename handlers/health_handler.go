package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/case-events/services/events"
	"github.com/upb/case-events/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Events    *events.Status    `json:"events,omitempty"`
}

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// EventStatusProvider reports the event store's storage mode
type EventStatusProvider interface {
	Status() events.Status
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     Pinger
	events EventStatusProvider
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when no
// database is configured.
func NewHealthHandler(db Pinger, events EventStatusProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		events: events,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: always 200 while the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
// A degraded event store (memory fallback) still serves traffic, so it is
// reported without failing readiness. A failed database ping does fail it.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			ready = false
		} else {
			checks["database"] = "healthy"
		}
	}

	var status *events.Status
	if h.events != nil {
		st := h.events.Status()
		status = &st
		switch {
		case !st.Registered:
			checks["events"] = "not_registered"
			ready = false
		case st.Degraded:
			checks["events"] = "degraded"
		default:
			checks["events"] = "healthy"
		}
	}

	overall := "healthy"
	httpStatus := http.StatusOK
	if !ready {
		overall = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else if checks["events"] == "degraded" {
		overall = "degraded"
	}

	response := HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Events:    status,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
