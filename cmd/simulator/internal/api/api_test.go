package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/api"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/store"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/testutils"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

type fakeFeed struct {
	mu      sync.Mutex
	running bool
}

func (f *fakeFeed) Start(ctx context.Context) { f.set(true) }
func (f *fakeFeed) Stop()                     { f.set(false) }

func (f *fakeFeed) set(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = v
}

func (f *fakeFeed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func setup(t *testing.T) (*httptest.Server, *fakeFeed) {
	t.Helper()
	now := time.UnixMilli(1_700_000_000_000)
	seed, err := models.SeedAssets(now.UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.New(testutils.NewMockClock(now), seed)
	if err != nil {
		t.Fatal(err)
	}
	feed := &fakeFeed{}
	srv := httptest.NewServer(api.NewHandler(context.Background(), st, feed, zap.NewNop()).Routes())
	t.Cleanup(srv.Close)
	return srv, feed
}

func TestListAssets(t *testing.T) {
	srv, _ := setup(t)

	resp, err := http.Get(srv.URL + "/assets")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body api.MarketResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Assets) != 5 || body.Assets[0].ID != "bitcoin" {
		t.Errorf("Unexpected assets %+v", body.Assets)
	}
	if body.LastUpdated != 1_700_000_000_000 {
		t.Errorf("Unexpected last_updated %d", body.LastUpdated)
	}
}

func TestGetAsset(t *testing.T) {
	srv, _ := setup(t)

	resp, err := http.Get(srv.URL + "/assets/tether")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var asset models.Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		t.Fatal(err)
	}
	if asset.Symbol != "USDT" {
		t.Errorf("Expected USDT, got %s", asset.Symbol)
	}

	missing, err := http.Get(srv.URL + "/assets/dogecoin")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", missing.StatusCode)
	}
}

func TestFeedControl(t *testing.T) {
	srv, feed := setup(t)

	resp, err := http.Post(srv.URL+"/feed/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || !feed.Running() {
		t.Errorf("Start failed: status=%d running=%v", resp.StatusCode, feed.Running())
	}

	resp, err = http.Post(srv.URL+"/feed/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if feed.Running() {
		t.Error("Expected feed stopped")
	}

	resp, err = http.Get(srv.URL + "/feed")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status api.FeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Running {
		t.Error("Status should report stopped")
	}
}
