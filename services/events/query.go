package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
	"github.com/upb/case-events/services"
	"go.uber.org/zap"
)

// TimelineQuery selects the events of a single case
type TimelineQuery struct {
	CaseID      string
	RequesterID string
	Limit       int
	Offset      int
	Types       []string
	Categories  []string
	Since       *time.Time
	Until       *time.Time
}

// FeedQuery selects events across subjects. SubjectTypes defaults to cases.
type FeedQuery struct {
	RequesterID  string
	Limit        int
	Offset       int
	Types        []string
	Categories   []string
	SubjectTypes []string
	SubjectID    string
	Since        *time.Time
	Until        *time.Time
}

// GetCaseTimeline returns a case's events, newest first
func (s *Service) GetCaseTimeline(ctx context.Context, q TimelineQuery) ([]models.EventRecord, error) {
	caseID := strings.TrimSpace(q.CaseID)
	if caseID == "" {
		return []models.EventRecord{}, nil
	}

	return s.list(ctx, "timeline", repositories.EventFilter{
		SubjectTypes: []string{models.SubjectTypeCase},
		SubjectID:    caseID,
		Types:        normalizeTokens(q.Types),
		Categories:   normalizeTokens(q.Categories),
		Since:        q.Since,
		Until:        q.Until,
		RequesterID:  strings.TrimSpace(q.RequesterID),
		Limit:        s.EffectiveLimit(q.Limit),
		Offset:       clampOffset(q.Offset),
	})
}

// GetEventFeed returns events across subjects, newest first
func (s *Service) GetEventFeed(ctx context.Context, q FeedQuery) ([]models.EventRecord, error) {
	subjectTypes := normalizeTokens(q.SubjectTypes)
	if len(subjectTypes) == 0 {
		subjectTypes = []string{models.SubjectTypeCase}
	}

	return s.list(ctx, "feed", repositories.EventFilter{
		SubjectTypes: subjectTypes,
		SubjectID:    strings.TrimSpace(q.SubjectID),
		Types:        normalizeTokens(q.Types),
		Categories:   normalizeTokens(q.Categories),
		Since:        q.Since,
		Until:        q.Until,
		RequesterID:  strings.TrimSpace(q.RequesterID),
		Limit:        s.EffectiveLimit(q.Limit),
		Offset:       clampOffset(q.Offset),
	})
}

func (s *Service) list(ctx context.Context, operation string, filter repositories.EventFilter) ([]models.EventRecord, error) {
	backend, err := s.registered()
	if err != nil {
		return nil, err
	}

	start := s.now()
	rows, err := backend.Events.ListEvents(ctx, filter)
	s.metrics.ObserveQuery(operation, s.now().Sub(start).Seconds())
	if err != nil {
		if !repositories.IsTableMissing(err) {
			return nil, services.WrapInternal("failed to list events", err)
		}
		s.fallback(operation, err)
		rows, err = s.buffer.ListEvents(ctx, filter)
		if err != nil {
			return nil, services.WrapInternal("failed to list buffered events", err)
		}
	} else {
		s.healthy()
	}

	records := make([]models.EventRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row, filter.RequesterID != ""))
	}
	return records, nil
}

// MarkRead records that requesterID has read the event. It reports false
// for ids that do not name a known event. Marking twice is harmless.
func (s *Service) MarkRead(ctx context.Context, eventID, requesterID string) (bool, error) {
	backend, err := s.registered()
	if err != nil {
		return false, err
	}

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, services.ErrEventIDRequired
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return false, services.ErrRequesterRequired
	}
	id, err := uuid.Parse(eventID)
	if err != nil {
		s.logger.Debug("mark read on malformed event id", zap.String("event_id", eventID))
		return false, nil
	}

	readAt := s.now().UTC()
	ok, err := backend.Events.MarkRead(ctx, id, requesterID, readAt)
	if err != nil {
		if !repositories.IsTableMissing(err) {
			return false, services.WrapInternal("failed to mark event read", err)
		}
		s.fallback("mark_read", err)
		return s.buffer.MarkRead(ctx, id, requesterID, readAt)
	}

	s.healthy()
	if ok {
		// keep the buffered copy consistent for a later fallback read
		_, _ = s.buffer.MarkRead(ctx, id, requesterID, readAt)
	}
	return ok, nil
}

// normalizeTokens splits comma separated values, trims, lowercases and
// removes duplicates while keeping first-seen order.
func normalizeTokens(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			token := strings.ToLower(strings.TrimSpace(part))
			if token == "" {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

// EffectiveLimit is the page size a query with the given limit is served with
func (s *Service) EffectiveLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
