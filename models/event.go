package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity is the default alert level of an event type
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// IsValid checks if the severity is one of the known levels
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Source identifies which surface of the application produced an event
type Source string

const (
	SourcePortal Source = "portal"
	SourceAdmin  Source = "admin"
	SourceSystem Source = "system"
)

// Subject and actor discriminators
const (
	SubjectTypeCase = "case"

	ActorTypeApplicant = "applicant"
	ActorTypeStaff     = "staff"
	ActorTypeSystem    = "system"
)

// Subject is the entity an event is about
type Subject struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Actor is the entity that caused an event
type Actor struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// EventEntry is a captured event. Entries are written once and never updated.
type EventEntry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Category      string          `json:"category" db:"category"`
	EventType     string          `json:"event_type" db:"event_type"`
	Severity      Severity        `json:"severity" db:"severity"`
	Source        Source          `json:"source" db:"source"`
	Subject       Subject         `json:"subject"`
	Actor         Actor           `json:"actor"`
	Payload       json.RawMessage `json:"payload" db:"payload"` // JSONB
	TrackingID    string          `json:"tracking_id,omitempty" db:"tracking_id"`
	CorrelationID string          `json:"correlation_id,omitempty" db:"correlation_id"`
	CapturedBy    string          `json:"captured_by" db:"captured_by"`
	CapturedAt    time.Time       `json:"captured_at" db:"captured_at"`
}

// TableName returns the table name for the EventEntry model
func (EventEntry) TableName() string {
	return "case_events"
}

// EventReceipt records that a recipient has read an event
type EventReceipt struct {
	EventID     uuid.UUID `json:"event_id" db:"event_id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	ReadAt      time.Time `json:"read_at" db:"read_at"`
}

// TableName returns the table name for the EventReceipt model
func (EventReceipt) TableName() string {
	return "case_event_receipts"
}

// EventRow is an entry as read back from storage, joined with the
// requester's receipt and any actor profile found for the actor id.
type EventRow struct {
	Entry          EventEntry
	IsRead         bool
	ActorUserName  string
	ActorUserEmail string
}

// EventRecord is the flattened shape returned to callers of the query API
type EventRecord struct {
	ID             string                 `json:"id"`
	Category       string                 `json:"category"`
	CategoryLabel  string                 `json:"category_label"`
	EventType      string                 `json:"event_type"`
	EventTypeLabel string                 `json:"event_type_label"`
	Severity       Severity               `json:"severity"`
	Variant        string                 `json:"variant"`
	Source         Source                 `json:"source"`
	SubjectType    string                 `json:"subject_type"`
	SubjectID      string                 `json:"subject_id"`
	CaseID         *int64                 `json:"case_id,omitempty"`
	ActorType      string                 `json:"actor_type"`
	ActorID        string                 `json:"actor_id,omitempty"`
	ActorName      string                 `json:"actor_name"`
	ActorEmail     string                 `json:"actor_email,omitempty"`
	EventData      map[string]interface{} `json:"event_data"`
	TrackingID     string                 `json:"tracking_id,omitempty"`
	CorrelationID  string                 `json:"correlation_id,omitempty"`
	CapturedBy     string                 `json:"captured_by"`
	CapturedAt     string                 `json:"captured_at"`
	IsRead         bool                   `json:"is_read"`
}
