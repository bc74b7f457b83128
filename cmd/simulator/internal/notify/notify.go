package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/pkg/models"
)

// Notifier shows a message to whoever watches the feed.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier { return &LogNotifier{logger: logger} }

func (l *LogNotifier) Notify(ctx context.Context, n models.Notification) error {
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("description", n.Description),
		zap.String("severity", n.Severity),
	}
	if n.Severity == models.SeverityDestructive {
		l.logger.Warn("Notification", fields...)
	} else {
		l.logger.Info("Notification", fields...)
	}
	return nil
}

// RedisPublisher is the slice of *redis.Client the notifier needs.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes notifications for the gateway to fan out.
type RedisNotifier struct {
	rdb     RedisPublisher
	channel string
}

func NewRedisNotifier(rdb RedisPublisher) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: models.NotificationsChannel}
}

func (r *RedisNotifier) Notify(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
