package generator

import (
	"math/rand"
	"time"
)

// for deterministic testing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// for deterministic values
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealRand is not safe for concurrent use; the scheduler serializes ticks.
type RealRand struct{ *rand.Rand }

func NewRealRand(seed int64) RealRand { return RealRand{rand.New(rand.NewSource(seed))} }

func (r RealRand) Intn(n int) int   { return r.Rand.Intn(n) }
func (r RealRand) Float64() float64 { return r.Rand.Float64() }

// Shuffle permutes ids in place (Fisher-Yates), so every ordering is reachable.
func Shuffle(ids []string, r Rand) {
	for i := len(ids) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}
