package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
	"go.uber.org/zap"
)

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCognitoSub retrieves a user by Cognito subject. A missing user is
// not an error: the returned user is nil.
func (r *UserRepository) GetByCognitoSub(ctx context.Context, sub string) (*models.User, error) {
	query := `
		SELECT id, email, cognito_sub, COALESCE(display_name, ''), role, created_at, updated_at
		FROM users
		WHERE cognito_sub = $1
	`

	executor := GetExecutor(ctx, r.db)
	user := &models.User{}

	err := executor.QueryRowContext(ctx, query, sub).Scan(
		&user.ID,
		&user.Email,
		&user.CognitoSub,
		&user.DisplayName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapQueryError("failed to get user by cognito sub", err)
	}

	return user, nil
}
