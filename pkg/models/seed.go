package models

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// HistoryPoints is the fixed length of Asset.PriceHistory7d.
const HistoryPoints = 7

//go:embed seed_assets.yaml
var seedYAML []byte

// SeedAssets returns the default market, stamped with now (unix milli).
func SeedAssets(now int64) ([]Asset, error) {
	return ParseAssets(seedYAML, now)
}

// ParseAssets decodes a YAML asset list and checks the seed invariants:
// unique ids, dense ranks in list order, a full price history and non-negative prices.
func ParseAssets(data []byte, now int64) ([]Asset, error) {
	var assets []Asset
	if err := yaml.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}

	seen := make(map[string]bool, len(assets))
	for i := range assets {
		a := &assets[i]
		if a.ID == "" {
			return nil, fmt.Errorf("asset #%d: missing id", i+1)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("asset %q: duplicate id", a.ID)
		}
		seen[a.ID] = true

		if a.Rank != i+1 {
			return nil, fmt.Errorf("asset %q: rank %d out of display order (want %d)", a.ID, a.Rank, i+1)
		}
		if len(a.PriceHistory7d) != HistoryPoints {
			return nil, fmt.Errorf("asset %q: price history has %d points, want %d", a.ID, len(a.PriceHistory7d), HistoryPoints)
		}
		if a.CurrentPrice < 0 {
			return nil, fmt.Errorf("asset %q: negative price %v", a.ID, a.CurrentPrice)
		}
		a.LastUpdated = now
	}
	return assets, nil
}
