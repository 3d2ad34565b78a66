package models

import (
	"encoding/json"
	"time"
)

// EventType is a catalog entry describing one kind of event
type EventType struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Severity   Severity `json:"severity"`
	Source     Source   `json:"source"`
	CategoryID string   `json:"category_id"`
	Locked     bool     `json:"locked"` // capture cannot be disabled
	Draft      bool     `json:"draft"`  // not yet fully wired
}

// EventCategory groups related event types
type EventCategory struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	Types       []EventType `json:"types"`
}

// CaptureScope is the runtime config scope holding capture overrides
const CaptureScope = "event_capture"

// CaptureState is the taxonomy tree merged with persisted capture overrides
type CaptureState struct {
	Categories []CategoryRules `json:"categories"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

// Category returns the rules for a category, if present
func (s *CaptureState) Category(id string) (*CategoryRules, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Categories {
		if s.Categories[i].ID == id {
			return &s.Categories[i], true
		}
	}
	return nil, false
}

// CategoryRules is the capture state of a category and its types
type CategoryRules struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	Locked      bool       `json:"locked"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Types       []TypeRule `json:"types"`
}

// Type returns the rule for a type within the category, if present
func (c *CategoryRules) Type(id string) (*TypeRule, bool) {
	for i := range c.Types {
		if c.Types[i].ID == id {
			return &c.Types[i], true
		}
	}
	return nil, false
}

// TypeRule is the capture state of a single event type
type TypeRule struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Enabled    bool       `json:"enabled"`
	Locked     bool       `json:"locked"`
	Draft      bool       `json:"draft"`
	Overridden bool       `json:"overridden"` // a type-level override row exists
	UpdatedBy  string     `json:"updated_by,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// CaptureRuleRow is one persisted override in the runtime config table.
// TypeID is empty for category-level rows.
type CaptureRuleRow struct {
	Scope      string          `json:"scope" db:"scope"`
	CategoryID string          `json:"category_id" db:"category_id"`
	TypeID     string          `json:"type_id" db:"type_id"`
	Value      json.RawMessage `json:"value" db:"value"` // JSONB CaptureRuleValue
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the CaptureRuleRow model
func (CaptureRuleRow) TableName() string {
	return "runtime_config"
}

// Key renders the row key for logs and diagnostics
func (r CaptureRuleRow) Key() string {
	if r.TypeID == "" {
		return r.CategoryID
	}
	return r.CategoryID + "/" + r.TypeID
}

// CaptureRuleValue is the JSON value stored for an override
type CaptureRuleValue struct {
	Enabled   bool      `json:"enabled"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
