package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/case-events/models"
)

// ErrTableMissing reports that a backing table does not exist. Callers
// treat it as degraded mode rather than a failure.
var ErrTableMissing = errors.New("backing table does not exist")

// IsTableMissing checks whether err was caused by a missing table
func IsTableMissing(err error) bool {
	return errors.Is(err, ErrTableMissing)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// EventFilter selects events for timeline and feed reads.
// Empty slices mean "no restriction"; Since and Until are inclusive.
type EventFilter struct {
	SubjectTypes []string
	SubjectID    string
	Types        []string
	Categories   []string
	Since        *time.Time
	Until        *time.Time
	RequesterID  string
	Limit        int
	Offset       int
}

// EventRepository persists event entries, outbox records and receipts
type EventRepository interface {
	// InsertEntry writes a new event entry
	InsertEntry(ctx context.Context, entry *models.EventEntry) error

	// InsertOutbox writes the outbox hand-off record for an entry
	InsertOutbox(ctx context.Context, record *models.OutboxRecord) error

	// ListEvents returns entries matching the filter, newest first
	ListEvents(ctx context.Context, filter EventFilter) ([]*models.EventRow, error)

	// MarkRead upserts a receipt and reports whether a row was affected
	MarkRead(ctx context.Context, eventID uuid.UUID, recipientID string, readAt time.Time) (bool, error)
}

// CaptureRuleRepository persists capture overrides in the runtime config table
type CaptureRuleRepository interface {
	// EnsureTable creates the runtime config table if it does not exist
	EnsureTable(ctx context.Context) error

	// ListByScope returns every override row for a scope
	ListByScope(ctx context.Context, scope string) ([]*models.CaptureRuleRow, error)

	// Upsert inserts or replaces the row keyed by (scope, category_id, type_id)
	Upsert(ctx context.Context, row *models.CaptureRuleRow) error
}

// UserRepository reads the profiles used to resolve actor names
type UserRepository interface {
	// GetByCognitoSub retrieves a user by Cognito subject, nil when absent
	GetByCognitoSub(ctx context.Context, sub string) (*models.User, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Events       EventRepository
	CaptureRules CaptureRuleRepository
	Users        UserRepository
}
