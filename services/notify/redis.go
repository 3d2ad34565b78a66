// Package notify publishes captured events to downstream listeners.
package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/upb/case-events/config"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/services/events"
	"github.com/upb/case-events/services/taxonomy"
	"go.uber.org/zap"
)

// Publisher is the subset of the Redis client used for notifications
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NewClient connects to Redis. It returns nil when no address is configured.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisHook returns a hook that publishes each event, in its outbox
// payload shape, on channel.
func NewRedisHook(pub Publisher, channel string, logger *zap.Logger) events.Hook {
	return func(ctx context.Context, entry *models.EventEntry) error {
		record, err := models.NewOutboxRecord(entry, taxonomy.Label(entry.EventType), entry.CapturedAt)
		if err != nil {
			return fmt.Errorf("failed to encode event notification: %w", err)
		}

		receivers, err := pub.Publish(ctx, channel, string(record.Payload)).Result()
		if err != nil {
			return fmt.Errorf("failed to publish event %s: %w", entry.ID, err)
		}

		logger.Debug("event notification published",
			zap.String("event_id", entry.ID.String()),
			zap.String("channel", channel),
			zap.Int64("receivers", receivers),
		)
		return nil
	}
}
