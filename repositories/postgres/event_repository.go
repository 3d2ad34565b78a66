package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
	"go.uber.org/zap"
)

// EventRepository implements the repositories.EventRepository interface
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// InsertEntry writes a new event entry
func (r *EventRepository) InsertEntry(ctx context.Context, entry *models.EventEntry) error {
	query := `
		INSERT INTO case_events (
			id, category, event_type, severity, source, subject_type, subject_id,
			actor_type, actor_id, actor_display_name, actor_email, payload,
			tracking_id, correlation_id, captured_by, captured_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		entry.ID,
		entry.Category,
		entry.EventType,
		entry.Severity,
		entry.Source,
		entry.Subject.Type,
		entry.Subject.ID,
		entry.Actor.Type,
		nullString(entry.Actor.ID),
		nullString(entry.Actor.DisplayName),
		nullString(entry.Actor.Email),
		string(entry.Payload),
		nullString(entry.TrackingID),
		nullString(entry.CorrelationID),
		entry.CapturedBy,
		entry.CapturedAt,
	)
	if err != nil {
		return wrapQueryError("failed to insert event entry", err)
	}

	r.logger.Debug("event entry inserted",
		zap.String("id", entry.ID.String()),
		zap.String("event_type", entry.EventType),
	)
	return nil
}

// InsertOutbox writes the outbox record for an entry
func (r *EventRepository) InsertOutbox(ctx context.Context, record *models.OutboxRecord) error {
	query := `
		INSERT INTO case_event_outbox (event_id, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.EventID,
		string(record.Payload),
		record.Status,
		record.Attempts,
		record.NextAttemptAt,
		record.CreatedAt,
	)
	if err != nil {
		return wrapQueryError("failed to insert outbox record", err)
	}
	return nil
}

// ListEvents returns entries matching the filter ordered by captured_at
// then id, both descending.
func (r *EventRepository) ListEvents(ctx context.Context, filter repositories.EventFilter) ([]*models.EventRow, error) {
	query, args := buildListQuery(filter)

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryError("failed to list events", err)
	}
	defer rows.Close()

	var out []*models.EventRow
	for rows.Next() {
		row := &models.EventRow{}
		e := &row.Entry
		var (
			actorID, actorName, actorEmail sql.NullString
			tracking, correlation          sql.NullString
			userName, userEmail            sql.NullString
			payload                        []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.Category,
			&e.EventType,
			&e.Severity,
			&e.Source,
			&e.Subject.Type,
			&e.Subject.ID,
			&e.Actor.Type,
			&actorID,
			&actorName,
			&actorEmail,
			&payload,
			&tracking,
			&correlation,
			&e.CapturedBy,
			&e.CapturedAt,
			&row.IsRead,
			&userName,
			&userEmail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Actor.ID = actorID.String
		e.Actor.DisplayName = actorName.String
		e.Actor.Email = actorEmail.String
		e.Payload = payload
		e.TrackingID = tracking.String
		e.CorrelationID = correlation.String
		row.ActorUserName = userName.String
		row.ActorUserEmail = userEmail.String
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return out, nil
}

// buildListQuery renders the timeline/feed query. Placeholders are
// numbered in the order arguments are appended.
func buildListQuery(filter repositories.EventFilter) (string, []interface{}) {
	var (
		args  []interface{}
		where []string
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	readExpr := "FALSE"
	receiptJoin := ""
	if filter.RequesterID != "" {
		receiptJoin = "LEFT JOIN case_event_receipts r ON r.event_id = e.id AND r.recipient_id = " + arg(filter.RequesterID)
		readExpr = "(r.read_at IS NOT NULL)"
	}

	if len(filter.SubjectTypes) > 0 {
		where = append(where, "e.subject_type = ANY("+arg(pq.Array(filter.SubjectTypes))+")")
	}
	if filter.SubjectID != "" {
		where = append(where, "e.subject_id = "+arg(filter.SubjectID))
	}
	if len(filter.Types) > 0 {
		where = append(where, "e.event_type = ANY("+arg(pq.Array(filter.Types))+")")
	}
	if len(filter.Categories) > 0 {
		where = append(where, "e.category = ANY("+arg(pq.Array(filter.Categories))+")")
	}
	if filter.Since != nil {
		where = append(where, "e.captured_at >= "+arg(*filter.Since))
	}
	if filter.Until != nil {
		where = append(where, "e.captured_at <= "+arg(*filter.Until))
	}

	var b strings.Builder
	b.WriteString(`
		SELECT e.id, e.category, e.event_type, e.severity, e.source, e.subject_type, e.subject_id,
		       e.actor_type, e.actor_id, e.actor_display_name, e.actor_email, e.payload,
		       e.tracking_id, e.correlation_id, e.captured_by, e.captured_at,
		       ` + readExpr + `, u.display_name, u.email
		FROM case_events e
		`)
	if receiptJoin != "" {
		b.WriteString(receiptJoin + "\n\t\t")
	}
	b.WriteString("LEFT JOIN users u ON u.cognito_sub = e.actor_id\n")
	if len(where) > 0 {
		b.WriteString("\t\tWHERE " + strings.Join(where, " AND ") + "\n")
	}
	b.WriteString("\t\tORDER BY e.captured_at DESC, e.id DESC\n")
	b.WriteString("\t\tLIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset))

	return b.String(), args
}

// MarkRead records that recipientID read the event. Repeated calls keep
// the latest read time. Unknown events affect no rows.
func (r *EventRepository) MarkRead(ctx context.Context, eventID uuid.UUID, recipientID string, readAt time.Time) (bool, error) {
	query := `
		INSERT INTO case_event_receipts (event_id, recipient_id, read_at)
		SELECT id, $2, $3 FROM case_events WHERE id = $1
		ON CONFLICT (event_id, recipient_id)
		DO UPDATE SET read_at = GREATEST(case_event_receipts.read_at, EXCLUDED.read_at)
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, eventID, recipientID, readAt)
	if err != nil {
		return false, wrapQueryError("failed to mark event read", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
