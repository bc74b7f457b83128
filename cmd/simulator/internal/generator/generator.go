package generator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shubham-shewale/market-beat/pkg/models"
)

var ErrInvalidVolatility = errors.New("invalid volatility")

const (
	percentSwing    = 3.0  // cosmetic % fields are drawn from [-3, 3]
	largeMoveChance = 0.95 // draws above this scale the move
	largeMoveFactor = 1.5
)

// Params bound the random walk. Both values are the maximum percent swing per tick.
type Params struct {
	PriceVolatility  float64
	VolumeVolatility float64
}

// Validate keeps the ranges well defined and the price non-negative.
func (p Params) Validate() error {
	if math.IsNaN(p.PriceVolatility) || p.PriceVolatility < 0 || p.PriceVolatility > 100 {
		return fmt.Errorf("%w: price volatility %v outside [0, 100]", ErrInvalidVolatility, p.PriceVolatility)
	}
	if math.IsNaN(p.VolumeVolatility) || p.VolumeVolatility < 0 {
		return fmt.Errorf("%w: volume volatility %v is negative", ErrInvalidVolatility, p.VolumeVolatility)
	}
	return nil
}

// Quote is one synthetic market move.
type Quote struct {
	Price     float64
	Volume    float64
	Change1h  float64
	Change24h float64
	Change7d  float64
}

// Compute draws a new quote from the current price and volume.
// The percentage fields are resampled independently of the price move.
func Compute(price, volume float64, p Params, r Rand) Quote {
	priceDelta := (r.Float64()*2 - 1) * p.PriceVolatility
	volumeDelta := (r.Float64()*2 - 1) * p.VolumeVolatility

	return Quote{
		Price:     RoundPrice(price * (1 + priceDelta/100)),
		Volume:    math.Round(volume * (1 + volumeDelta/100)),
		Change1h:  percentChange(r),
		Change24h: percentChange(r),
		Change7d:  percentChange(r),
	}
}

// RoundPrice applies the precision tier for the magnitude of price:
// 6 places below 0.01, 4 below 1, otherwise 2.
func RoundPrice(price float64) float64 {
	places := int32(2)
	switch {
	case price < 0.01:
		places = 6
	case price < 1:
		places = 4
	}
	return decimal.NewFromFloat(price).Round(places).InexactFloat64()
}

func percentChange(r Rand) float64 {
	change := r.Float64()*2*percentSwing - percentSwing
	if r.Float64() > largeMoveChance {
		change *= largeMoveFactor
	}
	return decimal.NewFromFloat(change).Round(2).InexactFloat64()
}

// Lookup is the read side of the asset store.
type Lookup interface {
	GetByID(id string) (models.Asset, bool)
}

// Generator produces patches for assets held in a Lookup.
type Generator struct {
	assets Lookup
	params Params
	rand   Rand
}

func NewGenerator(assets Lookup, params Params, rnd Rand) (*Generator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Generator{assets: assets, params: params, rand: rnd}, nil
}

// Next builds the update for id, stamped with now.
// An unknown id is reported as models.ErrAssetNotFound instead of a zero quote.
func (g *Generator) Next(id string, now time.Time) (models.AssetPatch, error) {
	asset, ok := g.assets.GetByID(id)
	if !ok {
		return models.AssetPatch{}, fmt.Errorf("generate %q: %w", id, models.ErrAssetNotFound)
	}

	q := Compute(asset.CurrentPrice, asset.Volume24h, g.params, g.rand)
	return models.AssetPatch{
		CurrentPrice:          models.Float64(q.Price),
		PriceChangePercent1h:  models.Float64(q.Change1h),
		PriceChangePercent24h: models.Float64(q.Change24h),
		PriceChangePercent7d:  models.Float64(q.Change7d),
		Volume24h:             models.Float64(q.Volume),
		LastUpdated:           models.Int64(now.UnixMilli()),
	}, nil
}
