package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/case-events/middleware"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/services/events"
	"github.com/upb/case-events/utils"
	"go.uber.org/zap"
)

// EventService is the part of events.Service the HTTP layer needs
type EventService interface {
	GetCaseTimeline(ctx context.Context, q events.TimelineQuery) ([]models.EventRecord, error)
	GetEventFeed(ctx context.Context, q events.FeedQuery) ([]models.EventRecord, error)
	MarkRead(ctx context.Context, eventID, requesterID string) (bool, error)
	EmitCaseEvent(ctx context.Context, req events.CaseEventRequest) (*models.EventEntry, error)
	EffectiveLimit(limit int) int
}

// CreateCaseEventRequest is the body of POST /api/v1/cases/{caseID}/events.
// The actor is always the authenticated caller.
type CreateCaseEventRequest struct {
	Type          string          `json:"type" validate:"required,max=100"`
	Category      string          `json:"category,omitempty" validate:"omitempty,max=100"`
	ActorType     string          `json:"actor_type,omitempty" validate:"omitempty,oneof=applicant staff system"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	TrackingID    string          `json:"tracking_id,omitempty" validate:"omitempty,max=64"`
	CorrelationID string          `json:"correlation_id,omitempty" validate:"omitempty,max=128"`
	CapturedAt    *time.Time      `json:"captured_at,omitempty"`
}

// EventListResponse wraps a page of events
type EventListResponse struct {
	Events []models.EventRecord `json:"events"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Count  int                  `json:"count"`
}

// EmitResponse reports the outcome of an emit. Captured is false when
// capture policy suppressed the event.
type EmitResponse struct {
	Captured bool               `json:"captured"`
	Event    *models.EventEntry `json:"event,omitempty"`
}

// MarkReadResponse reports whether the event was marked
type MarkReadResponse struct {
	EventID string `json:"event_id"`
	Marked  bool   `json:"marked"`
}

// EventHandler handles case event HTTP requests
type EventHandler struct {
	events EventService
	logger *zap.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(events EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// page holds the filters shared by the timeline and the feed
type page struct {
	limit      int
	offset     int
	types      []string
	categories []string
	since      *time.Time
	until      *time.Time
}

func parsePage(r *http.Request) (page, error) {
	q := r.URL.Query()
	var p page
	var err error

	if p.limit, err = utils.QueryInt(q, "limit", 0); err != nil {
		return p, err
	}
	if p.offset, err = utils.QueryInt(q, "offset", 0); err != nil {
		return p, err
	}
	if p.since, err = utils.QueryTime(q, "since"); err != nil {
		return p, err
	}
	if p.until, err = utils.QueryTime(q, "until"); err != nil {
		return p, err
	}
	p.types = utils.QueryList(q, "type")
	p.categories = utils.QueryList(q, "category")
	return p, nil
}

// HandleCaseTimeline handles GET /api/v1/cases/{caseID}/events
func (h *EventHandler) HandleCaseTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")

	p, err := parsePage(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	records, err := h.events.GetCaseTimeline(ctx, events.TimelineQuery{
		CaseID:      caseID,
		RequesterID: middleware.RequesterID(ctx),
		Limit:       p.limit,
		Offset:      p.offset,
		Types:       p.types,
		Categories:  p.categories,
		Since:       p.since,
		Until:       p.until,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("case timeline served",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("case_id", caseID),
		zap.Int("count", len(records)))

	h.writeList(w, records, p)
}

// HandleEventFeed handles GET /api/v1/events
func (h *EventHandler) HandleEventFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := parsePage(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	q := r.URL.Query()
	records, err := h.events.GetEventFeed(ctx, events.FeedQuery{
		RequesterID:  middleware.RequesterID(ctx),
		Limit:        p.limit,
		Offset:       p.offset,
		Types:        p.types,
		Categories:   p.categories,
		SubjectTypes: utils.QueryList(q, "subject_type"),
		SubjectID:    q.Get("subject_id"),
		Since:        p.since,
		Until:        p.until,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeList(w, records, p)
}

func (h *EventHandler) writeList(w http.ResponseWriter, records []models.EventRecord, p page) {
	if err := utils.WriteOK(w, EventListResponse{
		Events: records,
		Limit:  h.events.EffectiveLimit(p.limit),
		Offset: max(p.offset, 0),
		Count:  len(records),
	}); err != nil {
		h.logger.Error("failed to write event list response", zap.Error(err))
	}
}

// HandleMarkRead handles POST /api/v1/events/{eventID}/read
func (h *EventHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "eventID")

	marked, err := h.events.MarkRead(ctx, eventID, middleware.RequesterID(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if !marked {
		_ = utils.WriteNotFound(w, "Event not found")
		return
	}

	if err := utils.WriteOK(w, MarkReadResponse{EventID: eventID, Marked: true}); err != nil {
		h.logger.Error("failed to write mark read response", zap.Error(err))
	}
}

// HandleEmitCaseEvent handles POST /api/v1/cases/{caseID}/events
func (h *EventHandler) HandleEmitCaseEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")

	var req CreateCaseEventRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var actor *models.Actor
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		actor = &models.Actor{
			Type:        req.ActorType,
			ID:          claims.Sub,
			DisplayName: claims.Name,
			Email:       claims.Email,
		}
	}

	var payload interface{}
	if len(req.Payload) > 0 {
		payload = req.Payload
	}

	entry, err := h.events.EmitCaseEvent(ctx, events.CaseEventRequest{
		CaseID:        caseID,
		Type:          req.Type,
		Category:      req.Category,
		Actor:         actor,
		ActorType:     req.ActorType,
		Payload:       payload,
		TrackingID:    req.TrackingID,
		CorrelationID: req.CorrelationID,
		CapturedAt:    req.CapturedAt,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if entry == nil {
		h.logger.Debug("event suppressed by capture policy",
			zap.String("case_id", caseID),
			zap.String("event_type", req.Type))
		if err := utils.WriteOK(w, EmitResponse{Captured: false}); err != nil {
			h.logger.Error("failed to write emit response", zap.Error(err))
		}
		return
	}

	h.logger.Info("case event captured",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("event_id", entry.ID.String()),
		zap.String("case_id", caseID),
		zap.String("event_type", entry.EventType))

	if err := utils.WriteCreated(w, EmitResponse{Captured: true, Event: entry}); err != nil {
		h.logger.Error("failed to write emit response", zap.Error(err))
	}
}
