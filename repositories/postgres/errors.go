package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/case-events/repositories"
)

// undefinedTable is the SQLSTATE Postgres reports for a missing relation
const undefinedTable pq.ErrorCode = "42P01"

// isUndefinedTable checks for a "relation does not exist" error
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == undefinedTable
	}
	return false
}

// wrapQueryError wraps err with context, tagging missing relations with
// repositories.ErrTableMissing so callers can switch to degraded mode.
func wrapQueryError(op string, err error) error {
	if isUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %v", op, repositories.ErrTableMissing, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
