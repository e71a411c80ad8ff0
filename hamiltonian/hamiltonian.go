// Package hamiltonian implements the potential energy terms of the local energy.
// The kinetic term is supplied by the trial wavefunction.
package hamiltonian

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Hamiltonian evaluates the potential energy of a configuration of particles.
type Hamiltonian interface {
	// External returns the energy of the particles in the external potential.
	External(x []float64) float64
	// Interaction returns the energy of the particle-particle interaction.
	Interaction(x []float64) float64
}

// Coulomb is the repulsive Coulomb interaction sum_{i<j} 1/r_ij, optionally screened to exp(-r_ij/ScreeningLength)/r_ij.
type Coulomb struct {
	// Dims is the dimension of each particle, one when unset.
	Dims            int
	Enabled         bool
	ScreeningLength float64
}

// Energy returns the interaction energy of x.
func (in Coulomb) Energy(x []float64) float64 {
	if !in.Enabled {
		return 0
	}
	dims := max(in.Dims, 1)
	particles := len(x) / dims
	var e float64
	for p := range particles {
		for q := p + 1; q < particles; q++ {
			var r2 float64
			for d := range dims {
				diff := x[p*dims+d] - x[q*dims+d]
				r2 += diff * diff
			}
			r := math.Sqrt(r2)
			v := 1 / r
			if in.ScreeningLength > 0 {
				v *= math.Exp(-r / in.ScreeningLength)
			}
			e += v
		}
	}
	return e
}

// HarmonicOscillator is the isotropic trap 1/2 omega^2 r^2.
type HarmonicOscillator struct {
	Omega float64
	Coulomb
}

func (h HarmonicOscillator) External(x []float64) float64 {
	return 0.5 * h.Omega * h.Omega * floats.Dot(x, x)
}

func (h HarmonicOscillator) Interaction(x []float64) float64 {
	return h.Coulomb.Energy(x)
}

// DoubleWell is the harmonic trap split along the first dimension into two wells a distance B apart,
// 1/2 omega^2 (r^2 + B^2/4 - B |sum_i x_i|).
type DoubleWell struct {
	Omega float64
	B     float64
	// Dims is the dimension of each particle, one when unset.
	Dims  int
	Coulomb
}

func (h DoubleWell) External(x []float64) float64 {
	dims := max(h.Dims, 1)
	var r2, sumX float64
	for i, v := range x {
		r2 += v * v
		if i%dims == 0 {
			sumX += v
		}
	}
	return 0.5 * h.Omega * h.Omega * (r2 + 0.25*h.B*h.B - h.B*math.Abs(sumX))
}

func (h DoubleWell) Interaction(x []float64) float64 {
	return h.Coulomb.Energy(x)
}
