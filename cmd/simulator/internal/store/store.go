package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shubham-shewale/market-beat/pkg/models"
)

var ErrDuplicateAsset = errors.New("duplicate asset id")

type Clock interface {
	Now() time.Time
}

// Change describes one successful write.
type Change struct {
	Assets          []models.Asset // records as written, in display order
	MarketUpdatedAt int64          // unix milli
	Replaced        bool           // true for ReplaceAll
}

// Listener is called after every write, outside the read lock. It must not write back.
type Listener func(Change)

// MarketState is the ordered asset collection and its global "last updated" stamp.
// Writers are serialized; readers always receive copies.
type MarketState struct {
	mu          sync.RWMutex
	assets      []models.Asset
	index       map[string]int
	lastUpdated int64

	clock Clock

	// wmu orders writes and their notifications
	wmu       sync.Mutex
	listeners []Listener
}

func New(clock Clock, seed []models.Asset) (*MarketState, error) {
	assets, index, err := build(seed)
	if err != nil {
		return nil, err
	}
	return &MarketState{
		assets:      assets,
		index:       index,
		lastUpdated: clock.Now().UnixMilli(),
		clock:       clock,
	}, nil
}

func build(records []models.Asset) ([]models.Asset, map[string]int, error) {
	assets := make([]models.Asset, len(records))
	index := make(map[string]int, len(records))
	for i, a := range records {
		if _, dup := index[a.ID]; dup {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateAsset, a.ID)
		}
		index[a.ID] = i
		assets[i] = a.Clone()
	}
	return assets, index, nil
}

// Subscribe registers l for every later write.
func (s *MarketState) Subscribe(l Listener) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *MarketState) GetAll() []models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Asset, len(s.assets))
	for i, a := range s.assets {
		out[i] = a.Clone()
	}
	return out
}

func (s *MarketState) GetByID(id string) (models.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Asset{}, false
	}
	return s.assets[i].Clone(), true
}

// IDs returns the asset ids in display order.
func (s *MarketState) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.assets))
	for i, a := range s.assets {
		ids[i] = a.ID
	}
	return ids
}

func (s *MarketState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// LastUpdated is the unix milli stamp of the most recent write.
func (s *MarketState) LastUpdated() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// MergeUpdate overwrites the provided fields of asset id and stamps the global time.
// An unknown id leaves the state untouched and returns models.ErrAssetNotFound.
func (s *MarketState) MergeUpdate(id string, patch models.AssetPatch) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("merge %q: %w", id, models.ErrAssetNotFound)
	}
	patch.Apply(&s.assets[i])
	s.lastUpdated = s.clock.Now().UnixMilli()
	change := Change{
		Assets:          []models.Asset{s.assets[i].Clone()},
		MarketUpdatedAt: s.lastUpdated,
	}
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// ReplaceAll swaps the whole collection and stamps the global time.
func (s *MarketState) ReplaceAll(records []models.Asset) error {
	assets, index, err := build(records)
	if err != nil {
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	s.assets = assets
	s.index = index
	s.lastUpdated = s.clock.Now().UnixMilli()
	change := Change{MarketUpdatedAt: s.lastUpdated, Replaced: true}
	change.Assets = make([]models.Asset, len(assets))
	for i, a := range assets {
		change.Assets[i] = a.Clone()
	}
	s.mu.Unlock()

	s.notify(change)
	return nil
}

func (s *MarketState) notify(c Change) {
	for _, l := range s.listeners {
		l(c)
	}
}
