package repository

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/market-beat/pkg/models"
)

// Compile-time check to ensure RedisStore implements AssetStore
var _ AssetStore = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // Protects access to pubsub if needed
}

// NewRedisStore opens the shared subscription, which always carries feed notifications.
func NewRedisStore(client *redis.Client) *RedisStore {
	ps := client.Subscribe(context.Background(), models.NotificationsChannel)
	return &RedisStore{
		client: client,
		pubsub: ps,
	}
}

// GetSnapshots fetches the latest cached update for a list of assets (MGET)
func (r *RedisStore) GetSnapshots(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = models.SnapshotKey(id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			snapshots = append(snapshots, payload)
		}
	}
	return snapshots, nil
}

// SubscribeToFeed tells Redis we want to listen to this asset's channel
func (r *RedisStore) SubscribeToFeed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, models.AssetChannel(id))
}

// UnsubscribeFromFeed tells Redis to stop sending messages for this channel
func (r *RedisStore) UnsubscribeFromFeed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, models.AssetChannel(id))
}

// PublishControl asks the simulator to start or stop its feed.
func (r *RedisStore) PublishControl(ctx context.Context, action string) error {
	payload, err := json.Marshal(models.ControlCommand{Action: action, RequestedAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, models.ControlChannel, payload).Err()
}

// RunPubSub is a blocking loop that routes Redis messages to h until ctx ends
// or the subscription is closed.
func (r *RedisStore) RunPubSub(ctx context.Context, h FeedHandler) {
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			switch {
			case msg.Channel == models.NotificationsChannel:
				h.Notify(msg.Payload)
			case strings.HasPrefix(msg.Channel, models.AssetChannelPrefix):
				h.Broadcast(strings.TrimPrefix(msg.Channel, models.AssetChannelPrefix), msg.Payload)
			}
		}
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
