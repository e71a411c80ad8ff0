package metropolis

import (
	"math/rand/v2"
)

// Rand is the random number source of a random walk.
type Rand interface {
	// Uniform returns a number in [0, 1).
	Uniform() float64
	// Gaussian returns a standard normal number.
	Gaussian() float64
	// Intn returns a number in [0, n).
	Intn(n int) int
}

// PCG is a Rand backed by the PCG generator.
// Walks seeded with the same seed but different streams are independent.
type PCG struct {
	r *rand.Rand
}

// NewPCG returns a PCG generator for the given seed and stream.
func NewPCG(seed, stream uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed, stream))}
}

func (p *PCG) Uniform() float64  { return p.r.Float64() }
func (p *PCG) Gaussian() float64 { return p.r.NormFloat64() }
func (p *PCG) Intn(n int) int    { return p.r.IntN(n) }
