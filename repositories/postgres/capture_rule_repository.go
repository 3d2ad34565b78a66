package postgres

import (
	"context"
	"fmt"

	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
	"go.uber.org/zap"
)

// CaptureRuleRepository stores capture overrides in runtime_config
type CaptureRuleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCaptureRuleRepository creates a new capture rule repository
func NewCaptureRuleRepository(db *DB, logger *zap.Logger) repositories.CaptureRuleRepository {
	return &CaptureRuleRepository{
		db:     db,
		logger: logger,
	}
}

const runtimeConfigSchema = `
	CREATE TABLE IF NOT EXISTS runtime_config (
		scope VARCHAR(100) NOT NULL,
		category_id VARCHAR(100) NOT NULL,
		type_id VARCHAR(100) NOT NULL DEFAULT '',
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (scope, category_id, type_id)
	)
`

// EnsureTable creates the runtime config table if it does not exist
func (r *CaptureRuleRepository) EnsureTable(ctx context.Context) error {
	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, runtimeConfigSchema); err != nil {
		return fmt.Errorf("failed to ensure runtime_config table: %w", err)
	}
	return nil
}

// ListByScope returns every row in a scope, category rows first
func (r *CaptureRuleRepository) ListByScope(ctx context.Context, scope string) ([]*models.CaptureRuleRow, error) {
	query := `
		SELECT scope, category_id, type_id, value, updated_at
		FROM runtime_config
		WHERE scope = $1
		ORDER BY category_id, type_id
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, wrapQueryError("failed to list capture rules", err)
	}
	defer rows.Close()

	var out []*models.CaptureRuleRow
	for rows.Next() {
		row := &models.CaptureRuleRow{}
		var value []byte
		if err := rows.Scan(&row.Scope, &row.CategoryID, &row.TypeID, &value, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capture rule: %w", err)
		}
		row.Value = value
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capture rules: %w", err)
	}

	return out, nil
}

// Upsert inserts or replaces the row keyed by (scope, category_id, type_id)
func (r *CaptureRuleRepository) Upsert(ctx context.Context, row *models.CaptureRuleRow) error {
	query := `
		INSERT INTO runtime_config (scope, category_id, type_id, value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, category_id, type_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		row.Scope,
		row.CategoryID,
		row.TypeID,
		string(row.Value),
		row.UpdatedAt,
	)
	if err != nil {
		return wrapQueryError("failed to upsert capture rule", err)
	}

	r.logger.Debug("capture rule saved", zap.String("key", row.Key()))
	return nil
}
