package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery state of an outbox record
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusDelivered OutboxStatus = "delivered"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxRecord hands a captured event off to downstream delivery.
// Consumers own everything after insertion.
type OutboxRecord struct {
	EventID       uuid.UUID       `json:"event_id" db:"event_id"`
	Payload       json.RawMessage `json:"payload" db:"payload"` // JSONB, denormalized OutboxPayload
	Status        OutboxStatus    `json:"status" db:"status"`
	Attempts      int             `json:"attempts" db:"attempts"`
	NextAttemptAt time.Time       `json:"next_attempt_at" db:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the OutboxRecord model
func (OutboxRecord) TableName() string {
	return "case_event_outbox"
}

// OutboxPayload is the denormalized event copy carried by an outbox record,
// so delivery never has to join back to the entry table.
type OutboxPayload struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Label         string          `json:"label"`
	Category      string          `json:"category"`
	Severity      Severity        `json:"severity"`
	Source        Source          `json:"source"`
	Subject       Subject         `json:"subject"`
	Actor         Actor           `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
	TrackingID    string          `json:"tracking_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CapturedAt    string          `json:"captured_at"`
	CapturedBy    string          `json:"captured_by"`
}

// NewOutboxRecord builds a pending outbox record for an entry
func NewOutboxRecord(entry *EventEntry, label string, now time.Time) (*OutboxRecord, error) {
	payload := OutboxPayload{
		ID:            entry.ID.String(),
		Type:          entry.EventType,
		Label:         label,
		Category:      entry.Category,
		Severity:      entry.Severity,
		Source:        entry.Source,
		Subject:       entry.Subject,
		Actor:         entry.Actor,
		Payload:       entry.Payload,
		TrackingID:    entry.TrackingID,
		CorrelationID: entry.CorrelationID,
		CapturedAt:    entry.CapturedAt.UTC().Format(time.RFC3339Nano),
		CapturedBy:    entry.CapturedBy,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxRecord{
		EventID:       entry.ID,
		Payload:       data,
		Status:        OutboxStatusPending,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}
