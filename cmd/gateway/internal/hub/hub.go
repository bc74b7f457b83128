package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/cmd/gateway/internal/highlight"
	"github.com/shubham-shewale/market-beat/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/market-beat/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

type Hub struct {
	clients     map[ClientInterface]bool
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool

	store     repository.AssetStore
	logger    *zap.Logger
	clock     highlight.Clock
	highlight *highlight.Coordinator
	mu        sync.RWMutex
	refCount  map[string]int

	cancel context.CancelFunc
}

func NewHub(store repository.AssetStore, logger *zap.Logger, clock highlight.Clock, opts highlight.Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:     make(map[ClientInterface]bool),
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		store:       store,
		logger:      logger,
		clock:       clock,
		refCount:    make(map[string]int),
		cancel:      cancel,
	}
	opts.OnMark = func(ids []string) { h.sendHighlight(protocol.TypeHighlight, ids) }
	h.highlight = highlight.New(clock, opts, func(ids []string) { h.sendHighlight(protocol.TypeHighlightClear, ids) })

	go h.store.RunPubSub(ctx, h)

	return h
}

// Register makes client reachable for feed notifications before it subscribes to anything.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest, validAssets map[string]bool) {
	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(client, req, validAssets)
	case protocol.ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case protocol.ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	case protocol.ActionStartFeed:
		h.handleControl(client, req, models.ControlStart)
	case protocol.ActionStopFeed:
		h.handleControl(client, req, models.ControlStop)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, req protocol.WSRequest, validAssets map[string]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	var valid []string
	for _, id := range req.Payload.Assets {
		if validAssets[id] {
			// Idempotency: Ignore if already subscribed
			if h.clientSubs[client] != nil && h.clientSubs[client][id] {
				continue
			}
			valid = append(valid, id)
		}
	}

	if len(valid) == 0 {
		h.sendError(client, req.ID, "No valid/new assets provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}

	for _, id := range valid {
		h.clientSubs[client][id] = true
		if h.subscribers[id] == nil {
			h.subscribers[id] = make(map[ClientInterface]bool)
		}
		h.subscribers[id][client] = true

		// Manage upstream subscription (Ref counting)
		h.refCount[id]++
		if h.refCount[id] == 1 {
			if err := h.store.SubscribeToFeed(context.Background(), id); err != nil {
				h.logger.Error("Failed to subscribe upstream", zap.String("asset", id), zap.Error(err))
			}
		}
	}

	h.sendAck(client, req.ID, "success", fmt.Sprintf("Subscribed to %v", valid))

	// Send Snapshots (Async to avoid blocking lock)
	go func(targets []string) {
		snapshots, err := h.store.GetSnapshots(context.Background(), targets)
		if err != nil {
			h.logger.Warn("Snapshot lookup failed", zap.Strings("assets", targets), zap.Error(err))
			return
		}
		for _, snap := range snapshots {
			if msg, err := protocol.Envelope(protocol.TypeAsset, snap); err == nil {
				client.SendBytes(msg)
			}
		}
	}(valid)
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	if subs, ok := h.clientSubs[client]; ok {
		for _, id := range req.Payload.Assets {
			if subs[id] {
				delete(subs, id)
				delete(h.subscribers[id], client)
				removed = append(removed, id)
				h.decreaseRefCount(id)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, "success", fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Assets))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for id := range subs {
			delete(h.subscribers[id], client)
			h.decreaseRefCount(id)
		}
		// Clear the map but keep the client registered
		h.clientSubs[client] = make(map[string]bool)
	}
	h.sendAck(client, req.ID, "success", "Unsubscribed from all assets")
}

func (h *Hub) handleControl(client ClientInterface, req protocol.WSRequest, action string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.store.PublishControl(ctx, action); err != nil {
		h.logger.Error("Failed to publish control command", zap.String("action", action), zap.Error(err))
		h.sendError(client, req.ID, "Feed control unavailable")
		return
	}
	h.sendAck(client, req.ID, "success", "Feed "+action+" requested")
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for id := range subs {
			delete(h.subscribers[id], client)
			h.decreaseRefCount(id)
		}
		delete(h.clientSubs, client)
	}
	delete(h.clients, client)
	client.Close()
}

// Broadcast forwards an asset update to its subscribers and feeds the highlight coordinator.
func (h *Hub) Broadcast(assetID string, payload string) {
	var update models.AssetUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		h.logger.Warn("Invalid asset update", zap.String("asset", assetID), zap.Error(err))
		return
	}

	msg, err := protocol.Envelope(protocol.TypeAsset, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	for client := range h.subscribers[assetID] {
		client.SendBytes(msg)
	}
	h.mu.RUnlock()

	// Simulator stamps are shifted onto the local clock so the hold runs from
	// receipt, whatever the clock skew or pipeline latency.
	received := h.clock.Now()
	shift := received.Sub(time.UnixMilli(update.MarketUpdatedAt))
	h.highlight.Record(assetID, time.UnixMilli(update.Asset.LastUpdated).Add(shift), received)
}

// Notify forwards a feed notification to every connected client.
func (h *Hub) Notify(payload string) {
	msg, err := protocol.Envelope(protocol.TypeNotification, payload)
	if err != nil {
		h.logger.Warn("Invalid notification", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.SendBytes(msg)
	}
}

// sendHighlight tells each client about the ids it is subscribed to.
func (h *Hub) sendHighlight(msgType string, ids []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client, subs := range h.clientSubs {
		var mine []string
		for _, id := range ids {
			if subs[id] {
				mine = append(mine, id)
			}
		}
		if len(mine) > 0 {
			client.SendJSON(protocol.WSResponse{Type: msgType, Data: protocol.HighlightData{IDs: mine}})
		}
	}
}

// Shutdown stops the pub/sub loop and pending highlight timers.
func (h *Hub) Shutdown() {
	h.cancel()
	h.highlight.Stop()
}

func (h *Hub) decreaseRefCount(id string) {
	h.refCount[id]--
	if h.refCount[id] <= 0 {
		if err := h.store.UnsubscribeFromFeed(context.Background(), id); err != nil {
			h.logger.Error("Failed to unsubscribe upstream", zap.String("asset", id), zap.Error(err))
		}
		delete(h.refCount, id)
		delete(h.subscribers, id)
	}
}

func (h *Hub) sendAck(c ClientInterface, id, status, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: status, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Message: msg})
}
