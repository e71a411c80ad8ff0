package wavefunction

import (
	"math"
)

// Gaussian is the envelope psi = exp(-alpha * sum_k x_k^2).
// For a harmonic oscillator of frequency omega, the exact ground state has alpha = omega/2.
type Gaussian struct {
	next  float64
	alpha float64

	x []float64

	pending bool
	k       int
	xkOld   float64
}

// NewGaussian returns a Gaussian component with the initial parameter alpha.
func NewGaussian(alpha float64) *Gaussian {
	return &Gaussian{next: alpha, alpha: alpha}
}

func (g *Gaussian) NumParameters() int { return 1 }

func (g *Gaussian) SetParameters(theta []float64) {
	g.next = theta[0]
}

// Alpha returns the parameter in effect.
func (g *Gaussian) Alpha() float64 { return g.alpha }

func (g *Gaussian) Initialize(x []float64) {
	g.alpha = g.next
	g.x = append(g.x[:0], x...)
	g.pending = false
}

func (g *Gaussian) Propose(x []float64, k int) (float64, error) {
	if err := checkCoordinate(k, len(g.x)); err != nil {
		return math.NaN(), err
	}
	if g.pending {
		g.Rollback()
	}
	g.pending, g.k, g.xkOld = true, k, g.x[k]
	g.x[k] = x[k]
	return math.Exp(2 * g.alpha * (g.xkOld*g.xkOld - g.x[k]*g.x[k])), nil
}

func (g *Gaussian) Commit() {
	g.pending = false
}

func (g *Gaussian) Rollback() {
	if !g.pending {
		return
	}
	g.x[g.k] = g.xkOld
	g.pending = false
}

func (g *Gaussian) Gradient(k int) float64 {
	return -2 * g.alpha * g.x[k]
}

func (g *Gaussian) Laplacian() float64 {
	return -2 * g.alpha * float64(len(g.x))
}

func (g *Gaussian) ParameterGradient(dst []float64) {
	clear(dst)
	var r2 float64
	for _, v := range g.x {
		r2 += v * v
	}
	dst[0] = -r2
}
