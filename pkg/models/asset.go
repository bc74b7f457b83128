package models

// Asset is one row of the market table.
type Asset struct {
	ID                    string    `json:"id" yaml:"id"`
	Rank                  int       `json:"rank" yaml:"rank"`
	Name                  string    `json:"name" yaml:"name"`
	Symbol                string    `json:"symbol" yaml:"symbol"`
	Logo                  string    `json:"logo" yaml:"logo"`
	CurrentPrice          float64   `json:"current_price" yaml:"current_price"`
	PriceChangePercent1h  float64   `json:"price_change_percent_1h" yaml:"price_change_percent_1h"`
	PriceChangePercent24h float64   `json:"price_change_percent_24h" yaml:"price_change_percent_24h"`
	PriceChangePercent7d  float64   `json:"price_change_percent_7d" yaml:"price_change_percent_7d"`
	MarketCap             float64   `json:"market_cap" yaml:"market_cap"`
	Volume24h             float64   `json:"volume_24h" yaml:"volume_24h"`
	CirculatingSupply     float64   `json:"circulating_supply" yaml:"circulating_supply"`
	MaxSupply             *float64  `json:"max_supply" yaml:"max_supply"` // nil = unbounded
	PriceHistory7d        []float64 `json:"price_history_7d" yaml:"price_history_7d"`
	LastUpdated           int64     `json:"last_updated" yaml:"-"` // unix milli
}

// Clone returns a deep copy so callers never share the history slice or max supply.
func (a Asset) Clone() Asset {
	out := a
	if a.PriceHistory7d != nil {
		out.PriceHistory7d = append([]float64(nil), a.PriceHistory7d...)
	}
	if a.MaxSupply != nil {
		v := *a.MaxSupply
		out.MaxSupply = &v
	}
	return out
}

// AssetPatch carries a partial update. nil fields are left untouched.
// ID and PriceHistory7d are immutable and therefore absent.
type AssetPatch struct {
	Rank                  *int
	Name                  *string
	Symbol                *string
	Logo                  *string
	CurrentPrice          *float64
	PriceChangePercent1h  *float64
	PriceChangePercent24h *float64
	PriceChangePercent7d  *float64
	MarketCap             *float64
	Volume24h             *float64
	CirculatingSupply     *float64
	MaxSupply             *float64
	LastUpdated           *int64
}

// Apply overwrites exactly the provided fields of a.
func (p AssetPatch) Apply(a *Asset) {
	if p.Rank != nil {
		a.Rank = *p.Rank
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Symbol != nil {
		a.Symbol = *p.Symbol
	}
	if p.Logo != nil {
		a.Logo = *p.Logo
	}
	if p.CurrentPrice != nil {
		a.CurrentPrice = *p.CurrentPrice
	}
	if p.PriceChangePercent1h != nil {
		a.PriceChangePercent1h = *p.PriceChangePercent1h
	}
	if p.PriceChangePercent24h != nil {
		a.PriceChangePercent24h = *p.PriceChangePercent24h
	}
	if p.PriceChangePercent7d != nil {
		a.PriceChangePercent7d = *p.PriceChangePercent7d
	}
	if p.MarketCap != nil {
		a.MarketCap = *p.MarketCap
	}
	if p.Volume24h != nil {
		a.Volume24h = *p.Volume24h
	}
	if p.CirculatingSupply != nil {
		a.CirculatingSupply = *p.CirculatingSupply
	}
	if p.MaxSupply != nil {
		v := *p.MaxSupply
		a.MaxSupply = &v
	}
	if p.LastUpdated != nil {
		a.LastUpdated = *p.LastUpdated
	}
}

// Float64 and Int64 are helpers for building patches inline.
func Float64(v float64) *float64 { return &v }
func Int64(v int64) *int64       { return &v }
