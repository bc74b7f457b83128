package testutils

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shubham-shewale/market-beat/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/market-beat/cmd/gateway/internal/repository"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	// If it's a response, store it
	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

// ByType returns the structured messages of one type.
func (m *MockClient) ByType(msgType string) []protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []protocol.WSResponse
	for _, msg := range m.Messages {
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

// RawTypes decodes the "type" field of every raw message.
func (m *MockClient) RawTypes() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []string
	for _, raw := range m.RawBytes {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(raw), &env); err == nil {
			out = append(out, env.Type)
		}
	}
	return out
}

// MockAssetStore simulates Redis
type MockAssetStore struct {
	SubscribedChannels map[string]int // asset -> count
	Controls           []string
	ControlErr         error
	Snapshots          []string
	Mu                 sync.Mutex
}

var _ repository.AssetStore = (*MockAssetStore)(nil)

func NewMockStore() *MockAssetStore {
	return &MockAssetStore{SubscribedChannels: make(map[string]int)}
}

func (m *MockAssetStore) GetSnapshots(ctx context.Context, ids []string) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Snapshots, nil
}

func (m *MockAssetStore) SubscribeToFeed(ctx context.Context, id string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[id]++
	return nil
}

func (m *MockAssetStore) UnsubscribeFromFeed(ctx context.Context, id string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[id]--
	if m.SubscribedChannels[id] <= 0 {
		delete(m.SubscribedChannels, id)
	}
	return nil
}

func (m *MockAssetStore) PublishControl(ctx context.Context, action string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ControlErr != nil {
		return m.ControlErr
	}
	m.Controls = append(m.Controls, action)
	return nil
}

func (m *MockAssetStore) RunPubSub(ctx context.Context, h repository.FeedHandler) {
	// No-op for unit tests
}

func (m *MockAssetStore) Close() error { return nil }

func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("Assertion failed: %s", msg)
	}
}
