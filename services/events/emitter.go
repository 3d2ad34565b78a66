package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
	"github.com/upb/case-events/services"
	"github.com/upb/case-events/services/taxonomy"
	"go.uber.org/zap"
)

// EmitRequest describes an event to capture. Only Type is required; the
// rest is derived from the taxonomy when left empty.
type EmitRequest struct {
	Type          string          `json:"type" validate:"required"`
	Category      string          `json:"category,omitempty"`
	Severity      models.Severity `json:"severity,omitempty"`
	Source        models.Source   `json:"source,omitempty"`
	Subject       models.Subject  `json:"subject"`
	Actor         models.Actor    `json:"actor"`
	Payload       interface{}     `json:"payload,omitempty"`
	TrackingID    string          `json:"tracking_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CapturedAt    *time.Time      `json:"captured_at,omitempty"`
	CapturedBy    string          `json:"captured_by,omitempty"`
}

// CaseEventRequest is the case-scoped form of EmitRequest. Actor may be
// given whole or through the ActorID/ActorType/ActorName shorthand.
type CaseEventRequest struct {
	CaseID        string
	Type          string
	Category      string
	Actor         *models.Actor
	ActorID       string
	ActorType     string
	ActorName     string
	Payload       interface{}
	TrackingID    string
	CorrelationID string
	CapturedAt    *time.Time
}

// Emit validates, filters by capture policy and records an event. It
// returns (nil, nil) when policy suppresses the event. A missing event
// table is not an error: the event is kept in memory instead.
func (s *Service) Emit(ctx context.Context, req EmitRequest) (*models.EventEntry, error) {
	backend, err := s.registered()
	if err != nil {
		return nil, err
	}

	eventType := strings.ToLower(strings.TrimSpace(req.Type))
	if eventType == "" {
		return nil, services.ErrEventTypeRequired
	}
	catalogType, ok := taxonomy.GetType(eventType)
	if !ok {
		return nil, services.NewValidationError(services.CodeUnknownEventType, "unknown event type").
			WithDetail("type", eventType)
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = catalogType.CategoryID
	}
	if category == "" {
		category = taxonomy.Uncategorized
	}

	if !s.policy.IsCaptureEnabled(ctx, category, eventType, &catalogType) {
		s.metrics.Suppressed(category)
		s.logger.Debug("event suppressed by capture policy",
			zap.String("category", category),
			zap.String("event_type", eventType),
		)
		return nil, nil
	}

	subject, err := normalizeSubject(req.Subject)
	if err != nil {
		return nil, err
	}

	source := req.Source
	if source == "" {
		source = catalogType.Source
	}
	severity := req.Severity
	if !severity.IsValid() {
		severity = catalogType.Severity
	}

	payload, err := encodePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	capturedAt := s.now()
	if req.CapturedAt != nil && !req.CapturedAt.IsZero() {
		capturedAt = *req.CapturedAt
	}
	capturedBy := req.CapturedBy
	if capturedBy == "" {
		capturedBy = s.cfg.CapturedBy
	}
	trackingID := req.TrackingID
	if trackingID == "" {
		trackingID = deriveTrackingID(subject)
	}

	entry := &models.EventEntry{
		ID:            uuid.New(),
		Category:      category,
		EventType:     eventType,
		Severity:      severity,
		Source:        source,
		Subject:       subject,
		Actor:         s.normalizeActor(ctx, backend, req.Actor, source),
		Payload:       payload,
		TrackingID:    trackingID,
		CorrelationID: req.CorrelationID,
		CapturedBy:    capturedBy,
		CapturedAt:    capturedAt.UTC(),
	}

	persisted := true
	if err := backend.Events.InsertEntry(ctx, entry); err != nil {
		if !repositories.IsTableMissing(err) {
			return nil, services.WrapInternal("failed to persist event", err)
		}
		persisted = false
		s.fallback("emit", err)
	} else {
		s.healthy()
		s.writeOutbox(ctx, backend, entry, catalogType.Label)
	}

	s.buffer.Put(*entry)
	s.metrics.Captured(category, !persisted)
	s.notify(entry)

	return entry, nil
}

// writeOutbox inserts the outbox record once. Failures are logged only.
func (s *Service) writeOutbox(ctx context.Context, backend *Backend, entry *models.EventEntry, label string) {
	record, err := models.NewOutboxRecord(entry, label, s.now().UTC())
	if err == nil {
		err = backend.Events.InsertOutbox(ctx, record)
	}
	if err != nil {
		s.metrics.OutboxFailed()
		s.logger.Error("failed to write event outbox record",
			zap.String("event_id", entry.ID.String()),
			zap.String("event_type", entry.EventType),
			zap.Error(err),
		)
	}
}

func (s *Service) notify(entry *models.EventEntry) {
	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	if hooks == nil {
		return
	}
	snapshot := *entry
	hooks.Dispatch(&snapshot)
}

// EmitCaseEvent emits an event about a case
func (s *Service) EmitCaseEvent(ctx context.Context, req CaseEventRequest) (*models.EventEntry, error) {
	caseID := strings.TrimSpace(req.CaseID)
	if caseID == "" {
		return nil, services.ErrCaseIDRequired
	}

	actor := models.Actor{Type: req.ActorType, ID: req.ActorID, DisplayName: req.ActorName}
	if req.Actor != nil {
		actor = *req.Actor
	}

	return s.Emit(ctx, EmitRequest{
		Type:          req.Type,
		Category:      req.Category,
		Subject:       models.Subject{Type: models.SubjectTypeCase, ID: caseID},
		Actor:         actor,
		Payload:       req.Payload,
		TrackingID:    req.TrackingID,
		CorrelationID: req.CorrelationID,
		CapturedAt:    req.CapturedAt,
	})
}

// SeedEvents emits a batch in order, stopping at the first error
func (s *Service) SeedEvents(ctx context.Context, reqs []EmitRequest) error {
	for i, req := range reqs {
		if _, err := s.Emit(ctx, req); err != nil {
			return fmt.Errorf("seed event %d (%s): %w", i, req.Type, err)
		}
	}
	return nil
}

func normalizeSubject(in models.Subject) (models.Subject, error) {
	subject := models.Subject{
		Type: strings.ToLower(strings.TrimSpace(in.Type)),
		ID:   strings.TrimSpace(in.ID),
	}
	if subject.Type == "" {
		subject.Type = models.SubjectTypeCase
	}
	if subject.Type == models.SubjectTypeCase && subject.ID == "" {
		return subject, services.ErrSubjectIDRequired
	}
	return subject, nil
}

// defaultActorType maps an event source to the actor that usually causes it
func defaultActorType(source models.Source) string {
	switch source {
	case models.SourcePortal:
		return models.ActorTypeApplicant
	case models.SourceAdmin:
		return models.ActorTypeStaff
	default:
		return models.ActorTypeSystem
	}
}

// normalizeActor fills in the actor type and, when a user directory is
// available, the actor's name and email.
func (s *Service) normalizeActor(ctx context.Context, backend *Backend, in models.Actor, source models.Source) models.Actor {
	actor := models.Actor{
		Type:        strings.TrimSpace(in.Type),
		ID:          strings.TrimSpace(in.ID),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Email:       strings.TrimSpace(in.Email),
	}
	if actor.Type == "" {
		actor.Type = defaultActorType(source)
	}

	if actor.ID == "" || actor.DisplayName != "" || backend.Users == nil {
		return actor
	}
	user, err := backend.Users.GetByCognitoSub(ctx, actor.ID)
	if err != nil {
		s.logger.Debug("actor lookup failed", zap.String("actor_id", actor.ID), zap.Error(err))
		return actor
	}
	if user != nil {
		actor.DisplayName = user.DisplayName
		if actor.Email == "" {
			actor.Email = user.Email
		}
	}
	return actor
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(bytes.TrimSpace(p)) == 0 || string(bytes.TrimSpace(p)) == "null" {
			return json.RawMessage(`{}`), nil
		}
		if !json.Valid(p) {
			return nil, services.ErrInvalidPayload
		}
		return append(json.RawMessage(nil), p...), nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, services.NewValidationError(services.CodeInvalidPayload, "payload is not serializable").
			WithDetail("error", err.Error())
	}
	if string(data) == "null" {
		return json.RawMessage(`{}`), nil
	}
	return data, nil
}

// deriveTrackingID renders the human-facing case reference, e.g. CASE-000042
func deriveTrackingID(subject models.Subject) string {
	if subject.Type != models.SubjectTypeCase || subject.ID == "" {
		return ""
	}
	if n, err := strconv.ParseInt(subject.ID, 10, 64); err == nil && n >= 0 {
		return fmt.Sprintf("CASE-%06d", n)
	}
	return "CASE-" + strings.ToUpper(subject.ID)
}
