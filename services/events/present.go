package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/upb/case-events/models"
	"github.com/upb/case-events/services/taxonomy"
)

// variant maps a severity to the alert style the UI renders
func variant(severity models.Severity) string {
	if severity.IsValid() {
		return string(severity)
	}
	return string(models.SeverityInfo)
}

// decodeEventData parses a payload into an object. Non-object payloads are
// wrapped under "value"; unparseable ones become an empty object.
func decodeEventData(payload json.RawMessage) map[string]interface{} {
	if len(payload) == 0 {
		return map[string]interface{}{}
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil || v == nil {
		return map[string]interface{}{}
	}
	if obj, ok := v.(map[string]interface{}); ok {
		return obj
	}
	return map[string]interface{}{"value": v}
}

func payloadString(data map[string]interface{}, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// toRecord flattens a stored row. Without a requester the read flag is
// always false.
func toRecord(row *models.EventRow, hasRequester bool) models.EventRecord {
	e := row.Entry
	data := decodeEventData(e.Payload)

	name := firstNonEmpty(
		row.ActorUserName,
		e.Actor.DisplayName,
		row.ActorUserEmail,
		payloadString(data, "actor_name"),
		payloadString(data, "actor_email"),
		e.Actor.ID,
		"System",
	)
	email := firstNonEmpty(row.ActorUserEmail, e.Actor.Email, payloadString(data, "actor_email"))

	var caseID *int64
	if e.Subject.Type == models.SubjectTypeCase {
		if n, err := strconv.ParseInt(e.Subject.ID, 10, 64); err == nil {
			caseID = &n
		}
	}

	return models.EventRecord{
		ID:             e.ID.String(),
		Category:       e.Category,
		CategoryLabel:  taxonomy.CategoryLabel(e.Category),
		EventType:      e.EventType,
		EventTypeLabel: taxonomy.Label(e.EventType),
		Severity:       e.Severity,
		Variant:        variant(e.Severity),
		Source:         e.Source,
		SubjectType:    e.Subject.Type,
		SubjectID:      e.Subject.ID,
		CaseID:         caseID,
		ActorType:      e.Actor.Type,
		ActorID:        e.Actor.ID,
		ActorName:      name,
		ActorEmail:     email,
		EventData:      data,
		TrackingID:     e.TrackingID,
		CorrelationID:  e.CorrelationID,
		CapturedBy:     e.CapturedBy,
		CapturedAt:     e.CapturedAt.UTC().Format(time.RFC3339),
		IsRead:         hasRequester && row.IsRead,
	}
}
