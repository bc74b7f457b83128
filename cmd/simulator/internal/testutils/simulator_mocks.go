package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/feed"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
	Closed     bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockKafkaWriter) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Messages)
}

// MockClock only moves when told to.
type MockClock struct {
	CurrentTime time.Time
	mu          sync.Mutex
}

func NewMockClock(t time.Time) *MockClock { return &MockClock{CurrentTime: t} }

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) { m.Advance(d) }

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}

// MockRand replays Ints and Floats in order, then falls back to ValInt / ValFloat.
type MockRand struct {
	ValInt   int
	ValFloat float64
	Ints     []int
	Floats   []float64
}

func (m *MockRand) Intn(n int) int {
	v := m.ValInt
	if len(m.Ints) > 0 {
		v, m.Ints = m.Ints[0], m.Ints[1:]
	}
	if v >= n {
		v = n - 1
	}
	return v
}

func (m *MockRand) Float64() float64 {
	if len(m.Floats) > 0 {
		v := m.Floats[0]
		m.Floats = m.Floats[1:]
		return v
	}
	return m.ValFloat
}

type MockKafkaConn struct {
	CreatedTopics []kafka.TopicConfig
	Partitions    int
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	m.CreatedTopics = append(m.CreatedTopics, topics...)
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	// Simulate "Ready" state immediately
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy   *MockKafkaConn
	FailAddrs map[string]bool
	Dialed    []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (feed.KafkaConn, error) {
	m.Dialed = append(m.Dialed, address)
	if m.FailAddrs[address] {
		return nil, errors.New("connection refused")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}

// MockNotifier records every notification it receives.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []models.Notification
}

func (m *MockNotifier) Notify(ctx context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

func (m *MockNotifier) Titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, n := range m.Sent {
		out[i] = n.Title
	}
	return out
}
