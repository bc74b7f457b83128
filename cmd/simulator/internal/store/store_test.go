package store_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/store"
	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/testutils"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func setup(t *testing.T) (*store.MarketState, *testutils.MockClock) {
	t.Helper()
	clock := testutils.NewMockClock(epoch)
	seed, err := models.SeedAssets(epoch.UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	s, err := store.New(clock, seed)
	if err != nil {
		t.Fatal(err)
	}
	return s, clock
}

func TestNew_SeedOrderAndStamp(t *testing.T) {
	s, _ := setup(t)

	want := []string{"bitcoin", "ethereum", "tether", "bnb", "solana"}
	if got := s.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
	if s.Len() != 5 {
		t.Errorf("Expected 5 assets, got %d", s.Len())
	}
	if s.LastUpdated() != epoch.UnixMilli() {
		t.Errorf("Expected initial stamp %d, got %d", epoch.UnixMilli(), s.LastUpdated())
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := store.New(testutils.NewMockClock(epoch), []models.Asset{{ID: "a"}, {ID: "a"}})
	if !errors.Is(err, store.ErrDuplicateAsset) {
		t.Errorf("Expected ErrDuplicateAsset, got %v", err)
	}
}

func TestMergeUpdate_OnlyProvidedFields(t *testing.T) {
	s, clock := setup(t)
	before, _ := s.GetByID("ethereum")

	clock.Advance(1500 * time.Millisecond)
	if err := s.MergeUpdate("ethereum", models.AssetPatch{CurrentPrice: models.Float64(3500.00)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := s.GetByID("ethereum")
	if after.CurrentPrice != 3500.00 {
		t.Errorf("Expected price 3500, got %v", after.CurrentPrice)
	}

	after.CurrentPrice = before.CurrentPrice
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Other fields changed.\nbefore: %+v\nafter:  %+v", before, after)
	}

	if s.LastUpdated() != clock.Now().UnixMilli() {
		t.Errorf("Expected global stamp %d, got %d", clock.Now().UnixMilli(), s.LastUpdated())
	}
}

func TestMergeUpdate_UnknownIDIsObservableMiss(t *testing.T) {
	s, clock := setup(t)
	snapshot := s.GetAll()
	stamp := s.LastUpdated()

	clock.Advance(time.Second)
	err := s.MergeUpdate("dogecoin", models.AssetPatch{CurrentPrice: models.Float64(1)})
	if !errors.Is(err, models.ErrAssetNotFound) {
		t.Fatalf("Expected ErrAssetNotFound, got %v", err)
	}
	if s.LastUpdated() != stamp {
		t.Error("A miss must not advance the global stamp")
	}
	if !reflect.DeepEqual(snapshot, s.GetAll()) {
		t.Error("A miss must not change any record")
	}
}

func TestGetAll_ReturnsCopies(t *testing.T) {
	s, _ := setup(t)

	all := s.GetAll()
	all[0].CurrentPrice = 0
	all[0].PriceHistory7d[0] = -1
	*all[0].MaxSupply = 1

	btc, _ := s.GetByID("bitcoin")
	if btc.CurrentPrice != 65432.10 || btc.PriceHistory7d[0] != 64200 || *btc.MaxSupply != 21000000 {
		t.Errorf("External mutation leaked into the store: %+v", btc)
	}
}

func TestReplaceAll(t *testing.T) {
	s, clock := setup(t)
	clock.Advance(time.Minute)

	err := s.ReplaceAll([]models.Asset{{ID: "x", Rank: 1}, {ID: "y", Rank: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Unexpected ids %v", got)
	}
	if _, ok := s.GetByID("bitcoin"); ok {
		t.Error("Old records should be gone")
	}
	if s.LastUpdated() != clock.Now().UnixMilli() {
		t.Error("ReplaceAll must stamp the global time")
	}

	if err := s.ReplaceAll([]models.Asset{{ID: "z"}, {ID: "z"}}); !errors.Is(err, store.ErrDuplicateAsset) {
		t.Errorf("Expected ErrDuplicateAsset, got %v", err)
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Rejected replacement must keep state, got %v", got)
	}
}

func TestSubscribe_ReceivesChanges(t *testing.T) {
	s, clock := setup(t)
	var changes []store.Change
	s.Subscribe(func(c store.Change) { changes = append(changes, c) })

	clock.Advance(10 * time.Millisecond)
	_ = s.MergeUpdate("solana", models.AssetPatch{Volume24h: models.Float64(1)})
	_ = s.MergeUpdate("nope", models.AssetPatch{})
	_ = s.ReplaceAll(s.GetAll())

	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes (miss excluded), got %d", len(changes))
	}
	if changes[0].Replaced || len(changes[0].Assets) != 1 || changes[0].Assets[0].ID != "solana" {
		t.Errorf("Unexpected merge change: %+v", changes[0])
	}
	if changes[0].MarketUpdatedAt != clock.Now().UnixMilli() {
		t.Errorf("Change should carry the global stamp")
	}
	if !changes[1].Replaced || len(changes[1].Assets) != 5 {
		t.Errorf("Unexpected replace change: %+v", changes[1])
	}
}
