package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/case-events/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap adapts an existing pool, e.g. one opened by the host application
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// eventSchema creates the event tables. The runtime config table is created
// lazily by CaptureRuleRepository.EnsureTable.
const eventSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		cognito_sub VARCHAR(255) NOT NULL UNIQUE,
		display_name VARCHAR(255),
		role VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS case_events (
		id UUID PRIMARY KEY,
		category VARCHAR(100) NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		source VARCHAR(20) NOT NULL,
		subject_type VARCHAR(50) NOT NULL,
		subject_id VARCHAR(255) NOT NULL,
		actor_type VARCHAR(50) NOT NULL,
		actor_id VARCHAR(255),
		actor_display_name VARCHAR(255),
		actor_email VARCHAR(255),
		payload JSONB NOT NULL DEFAULT '{}'::jsonb,
		tracking_id VARCHAR(100),
		correlation_id VARCHAR(255),
		captured_by VARCHAR(255) NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS case_event_receipts (
		event_id UUID NOT NULL REFERENCES case_events(id) ON DELETE CASCADE,
		recipient_id VARCHAR(255) NOT NULL,
		read_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (event_id, recipient_id)
	);

	CREATE TABLE IF NOT EXISTS case_event_outbox (
		event_id UUID PRIMARY KEY REFERENCES case_events(id) ON DELETE CASCADE,
		payload JSONB NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_case_events_subject ON case_events(subject_type, subject_id, captured_at DESC);
	CREATE INDEX IF NOT EXISTS idx_case_events_captured_at ON case_events(captured_at DESC);
	CREATE INDEX IF NOT EXISTS idx_case_events_correlation_id ON case_events(correlation_id);
	CREATE INDEX IF NOT EXISTS idx_case_event_outbox_pending ON case_event_outbox(status, next_attempt_at);
`

// InitEventSchema creates the user, entry, receipt and outbox tables
func (db *DB) InitEventSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, eventSchema); err != nil {
		return fmt.Errorf("failed to initialize event schema: %w", err)
	}
	db.logger.Info("event schema initialized successfully")
	return nil
}
