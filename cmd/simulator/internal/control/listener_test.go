package control_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/control"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

type spyFeed struct {
	mu    sync.Mutex
	calls []string
}

func (s *spyFeed) Start(ctx context.Context) { s.record("start") }
func (s *spyFeed) Stop()                     { s.record("stop") }

func (s *spyFeed) record(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *spyFeed) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestHandle_Actions(t *testing.T) {
	feed := &spyFeed{}
	l := control.NewListener(nil, feed, zap.NewNop())

	l.Handle(context.Background(), []byte(`{"action":"start"}`))
	l.Handle(context.Background(), []byte(`{"action":"stop"}`))
	l.Handle(context.Background(), []byte(`{"action":"explode"}`))
	l.Handle(context.Background(), []byte(`{broken`))

	got := feed.Calls()
	if len(got) != 2 || got[0] != "start" || got[1] != "stop" {
		t.Errorf("Expected [start stop], got %v", got)
	}
}

func TestRun_ReceivesFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	feed := &spyFeed{}
	l := control.NewListener(rdb, feed, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Poll until the subscription is live, then publish
	for i := 0; i < 50 && len(mr.PubSubChannels("")) == 0; i++ {
		time.Sleep(20 * time.Millisecond)
	}
	mr.Publish(models.ControlChannel, `{"action":"stop"}`)

	deadline := time.Now().Add(2 * time.Second)
	for len(feed.Calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned error: %v", err)
	}
	if got := feed.Calls(); len(got) != 1 || got[0] != "stop" {
		t.Errorf("Expected [stop], got %v", got)
	}
}
