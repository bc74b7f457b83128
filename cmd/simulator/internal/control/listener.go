package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/pkg/models"
)

// Feed is the start/stop surface of the scheduler.
type Feed interface {
	Start(ctx context.Context)
	Stop()
}

// Listener applies ControlCommands published on the control channel.
type Listener struct {
	rdb    *redis.Client
	feed   Feed
	logger *zap.Logger
}

func NewListener(rdb *redis.Client, feed Feed, logger *zap.Logger) *Listener {
	return &Listener{rdb: rdb, feed: feed, logger: logger}
}

// Run blocks until ctx is done. The subscription is confirmed before Run starts reading.
func (l *Listener) Run(ctx context.Context) error {
	pubsub := l.rdb.Subscribe(ctx, models.ControlChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", models.ControlChannel, err)
	}
	l.logger.Info("Listening for feed control", zap.String("channel", models.ControlChannel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.Handle(ctx, []byte(msg.Payload))
		}
	}
}

// Handle applies a single encoded command. Bad payloads are logged and dropped.
func (l *Listener) Handle(ctx context.Context, payload []byte) {
	var cmd models.ControlCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		l.logger.Warn("Invalid control payload", zap.Error(err))
		return
	}

	switch cmd.Action {
	case models.ControlStart:
		l.feed.Start(ctx)
	case models.ControlStop:
		l.feed.Stop()
	default:
		l.logger.Warn("Unknown control action", zap.String("action", cmd.Action))
	}
}
