// Package exactdiag computes reference energies of non-interacting systems by exact diagonalization.
package exactdiag

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/vmc/basis"
)

// Grid is a uniform grid of Points points on [-Length, Length].
type Grid struct {
	Points int
	Length float64
}

func (g Grid) spacing() float64 {
	return 2 * g.Length / float64(g.Points-1)
}

// Levels returns the eigenvalues, in ascending order, of the one dimensional Hamiltonian -1/2 d^2/dx^2 + potential(x).
// The kinetic term is discretized by the three point finite difference on g, with the wavefunction vanishing outside the grid.
func Levels(potential func(x float64) float64, g Grid) ([]float64, error) {
	if g.Points < 3 || g.Length <= 0 {
		return nil, errors.Errorf("%+v", g)
	}
	h := g.spacing()
	n := g.Points
	hamiltonian := mat.NewSymDense(n, nil)
	for i := range n {
		x := -g.Length + float64(i)*h
		hamiltonian.SetSym(i, i, 1/(h*h)+potential(x))
		if i+1 < n {
			hamiltonian.SetSym(i, i+1, -0.5/(h*h))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(hamiltonian, false); !ok {
		return nil, errors.Errorf("eigen decomposition failed %+v", g)
	}
	return eig.Values(nil), nil
}

// HarmonicOscillator returns the closed form ground state energy of particles non-interacting fermions of spin 1/2 in an isotropic harmonic trap.
func HarmonicOscillator(omega float64, particles, dims int) float64 {
	up := (particles + 1) / 2
	down := particles - up
	qns := basis.QuantumNumbers(up, dims)
	var e float64
	for i, qn := range qns {
		e += basis.ShellEnergy(qn)
		if i < down {
			e += basis.ShellEnergy(qn)
		}
	}
	return omega * e
}

// Reference is a reference energy together with how it was obtained.
type Reference struct {
	Energy float64
	Method string
}

func (r Reference) String() string {
	return fmt.Sprintf("%f (%s)", r.Energy, r.Method)
}
