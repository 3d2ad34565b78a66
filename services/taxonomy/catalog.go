// Package taxonomy holds the static catalog of event categories and types
// the capture engine accepts. The catalog is read-only at runtime.
package taxonomy

import (
	"strings"

	"github.com/upb/case-events/models"
)

// Uncategorized is the category recorded for types that declare none
const Uncategorized = "uncategorized"

var catalog = []models.EventCategory{
	{
		ID:          "case_lifecycle",
		Label:       "Case lifecycle",
		Description: "Creation, status transitions, assignment and closure of cases.",
		Severity:    models.SeverityInfo,
		Types: []models.EventType{
			{ID: "case_created", Label: "Case created", Severity: models.SeveritySuccess, Source: models.SourcePortal},
			{ID: "status_changed", Label: "Status changed", Severity: models.SeverityInfo, Source: models.SourceAdmin, Locked: true},
			{ID: "case_assigned", Label: "Case assigned", Severity: models.SeverityInfo, Source: models.SourceAdmin},
			{ID: "case_closed", Label: "Case closed", Severity: models.SeveritySuccess, Source: models.SourceAdmin, Locked: true},
			{ID: "case_reopened", Label: "Case reopened", Severity: models.SeverityWarning, Source: models.SourceAdmin},
		},
	},
	{
		ID:          "documents",
		Label:       "Documents",
		Description: "Uploads, reviews and removal of case documents.",
		Severity:    models.SeverityInfo,
		Types: []models.EventType{
			{ID: "document_uploaded", Label: "Document uploaded", Severity: models.SeverityInfo, Source: models.SourcePortal},
			{ID: "document_reviewed", Label: "Document reviewed", Severity: models.SeveritySuccess, Source: models.SourceAdmin},
			{ID: "document_rejected", Label: "Document rejected", Severity: models.SeverityWarning, Source: models.SourceAdmin},
			{ID: "document_deleted", Label: "Document deleted", Severity: models.SeverityWarning, Source: models.SourceAdmin, Locked: true},
		},
	},
	{
		ID:          "assessments",
		Label:       "Assessments",
		Description: "Eligibility and scoring assessments run against a case.",
		Severity:    models.SeverityInfo,
		Types: []models.EventType{
			{ID: "assessment_started", Label: "Assessment started", Severity: models.SeverityInfo, Source: models.SourceAdmin},
			{ID: "assessment_completed", Label: "Assessment completed", Severity: models.SeveritySuccess, Source: models.SourceAdmin},
			{ID: "assessment_failed", Label: "Assessment failed", Severity: models.SeverityError, Source: models.SourceSystem},
		},
	},
	{
		ID:          "messaging",
		Label:       "Messaging",
		Description: "Messages and comments exchanged between applicants and staff.",
		Severity:    models.SeverityInfo,
		Types: []models.EventType{
			{ID: "message_sent", Label: "Message sent", Severity: models.SeverityInfo, Source: models.SourcePortal},
			{ID: "message_received", Label: "Message received", Severity: models.SeverityInfo, Source: models.SourceAdmin},
			{ID: "comment_added", Label: "Comment added", Severity: models.SeverityInfo, Source: models.SourceAdmin},
		},
	},
	{
		ID:          "workflow",
		Label:       "Workflow",
		Description: "Progress of a case through its configured workflow steps.",
		Severity:    models.SeverityInfo,
		Types: []models.EventType{
			{ID: "step_completed", Label: "Step completed", Severity: models.SeveritySuccess, Source: models.SourceSystem},
			{ID: "step_skipped", Label: "Step skipped", Severity: models.SeverityWarning, Source: models.SourceSystem, Draft: true},
			{ID: "deadline_missed", Label: "Deadline missed", Severity: models.SeverityError, Source: models.SourceSystem, Draft: true},
		},
	},
	{
		ID:          "access",
		Label:       "Access & compliance",
		Description: "Permission changes and exports of case records.",
		Severity:    models.SeverityWarning,
		Types: []models.EventType{
			{ID: "permission_changed", Label: "Permission changed", Severity: models.SeverityWarning, Source: models.SourceAdmin, Locked: true},
			{ID: "record_exported", Label: "Record exported", Severity: models.SeverityWarning, Source: models.SourceAdmin, Locked: true},
			{ID: "record_viewed", Label: "Record viewed", Severity: models.SeverityInfo, Source: models.SourceAdmin},
		},
	},
}

var (
	typeIndex     map[string]models.EventType
	categoryIndex map[string]int
)

func init() {
	typeIndex = make(map[string]models.EventType)
	categoryIndex = make(map[string]int, len(catalog))
	for i := range catalog {
		categoryIndex[catalog[i].ID] = i
		for j := range catalog[i].Types {
			catalog[i].Types[j].CategoryID = catalog[i].ID
			typeIndex[catalog[i].Types[j].ID] = catalog[i].Types[j]
		}
	}
}

// ListCategories returns a copy of the catalog in display order
func ListCategories() []models.EventCategory {
	out := make([]models.EventCategory, len(catalog))
	for i, c := range catalog {
		out[i] = c
		out[i].Types = append([]models.EventType(nil), c.Types...)
	}
	return out
}

// GetCategory looks up a category by id
func GetCategory(id string) (models.EventCategory, bool) {
	i, ok := categoryIndex[id]
	if !ok {
		return models.EventCategory{}, false
	}
	c := catalog[i]
	c.Types = append([]models.EventType(nil), c.Types...)
	return c, true
}

// GetType looks up an event type by id
func GetType(id string) (models.EventType, bool) {
	t, ok := typeIndex[id]
	return t, ok
}

// HasType reports whether typeID belongs to categoryID
func HasType(categoryID, typeID string) bool {
	t, ok := typeIndex[typeID]
	return ok && t.CategoryID == categoryID
}

// Label returns the display label for a type, humanizing unknown ids
func Label(typeID string) string {
	if t, ok := typeIndex[typeID]; ok {
		return t.Label
	}
	return Humanize(typeID)
}

// CategoryLabel returns the display label for a category
func CategoryLabel(categoryID string) string {
	if i, ok := categoryIndex[categoryID]; ok {
		return catalog[i].Label
	}
	return Humanize(categoryID)
}

// Humanize turns "status_changed" into "Status changed"
func Humanize(id string) string {
	s := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(id))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
