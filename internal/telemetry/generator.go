package telemetry

import (
	"math"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/facebookgo/clock"
)

// Rand is the subset of *rand.Rand the generator draws from.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Generator builds Records from an owned PRNG and clock. A single Generator
// may be shared by many goroutines.
type Generator struct {
	mu    sync.Mutex
	rnd   Rand
	clock clock.Clock
}

type Option func(*Generator)

// WithSeed makes the generated sequence reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rnd = rand.New(rand.NewPCG(seed, seed))
	}
}

func WithRand(r Rand) Option {
	return func(g *Generator) {
		g.rnd = r
	}
}

func WithClock(c clock.Clock) Option {
	return func(g *Generator) {
		g.clock = c
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if g.clock == nil {
		g.clock = clock.New()
	}
	return g
}

func (g *Generator) Generate() Record {
	g.mu.Lock()
	device := MinDevice + g.rnd.IntN(MaxDevice-MinDevice+1)
	cpu := MinCPU + g.rnd.Float64()*(MaxCPU-MinCPU)
	rps := MinRPS + g.rnd.IntN(MaxRPS-MinRPS+1)
	g.mu.Unlock()

	return Record{
		DeviceID:  DevicePrefix + strconv.Itoa(device),
		Timestamp: g.clock.Now().Unix(),
		CPU:       round2(cpu),
		RPS:       rps,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
