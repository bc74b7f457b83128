package repository

import (
	"context"
)

// FeedHandler receives messages from the upstream pub/sub.
type FeedHandler interface {
	Broadcast(assetID string, payload string)
	Notify(payload string)
}

type AssetStore interface {
	GetSnapshots(ctx context.Context, ids []string) ([]string, error)
	SubscribeToFeed(ctx context.Context, id string) error
	UnsubscribeFromFeed(ctx context.Context, id string) error
	PublishControl(ctx context.Context, action string) error
	RunPubSub(ctx context.Context, h FeedHandler)
	Close() error
}
