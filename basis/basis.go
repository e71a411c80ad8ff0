// Package basis implements the single-particle basis functions used by orbital-bearing wavefunction components.
package basis

import (
	"math"
)

// Basis evaluates a family of one-dimensional basis functions and their derivatives with respect to x.
type Basis interface {
	Evaluate(x float64, n int) float64
	Derivative(x float64, n int) float64
	SecondDerivative(x float64, n int) float64
}

// Hermite is the Hermite polynomial basis H_n(sqrt(omega) x).
// Multiplied by a Gaussian envelope exp(-omega x^2/2), these are the eigenfunctions of the harmonic oscillator with frequency omega.
type Hermite struct {
	sqrtOmega float64
}

// NewHermite returns the Hermite basis scaled for the frequency omega.
func NewHermite(omega float64) Hermite {
	return Hermite{sqrtOmega: math.Sqrt(omega)}
}

func (h Hermite) Evaluate(x float64, n int) float64 {
	return hermite(h.sqrtOmega*x, n)
}

func (h Hermite) Derivative(x float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return h.sqrtOmega * 2 * float64(n) * hermite(h.sqrtOmega*x, n-1)
}

func (h Hermite) SecondDerivative(x float64, n int) float64 {
	if n <= 1 {
		return 0
	}
	omega := h.sqrtOmega * h.sqrtOmega
	return omega * 4 * float64(n) * float64(n-1) * hermite(h.sqrtOmega*x, n-2)
}

// hermite evaluates the physicists' Hermite polynomial by the three term recurrence.
func hermite(x float64, n int) float64 {
	if n == 0 {
		return 1
	}
	prev, cur := 1.0, 2*x
	for k := 2; k <= n; k++ {
		prev, cur = cur, 2*x*cur-2*float64(k-1)*prev
	}
	return cur
}

// QuantumNumbers returns the quantum numbers of the lowest count orbitals of a separable dims dimensional system, filled shell by shell.
// Within a shell of total degree s, tuples are ordered with the first dimension taking the largest value first.
// For example in two dimensions, the first three orbitals are (0,0), (1,0), (0,1).
func QuantumNumbers(count, dims int) [][]int {
	qns := make([][]int, 0, count)
	tuple := make([]int, dims)
	for shell := 0; len(qns) < count; shell++ {
		qns = compositions(qns, tuple, 0, shell, count)
	}
	return qns
}

func compositions(qns [][]int, tuple []int, d, remaining, count int) [][]int {
	if len(qns) >= count {
		return qns
	}
	if d == len(tuple)-1 {
		tuple[d] = remaining
		return append(qns, append([]int(nil), tuple...))
	}
	for v := remaining; v >= 0; v-- {
		tuple[d] = v
		qns = compositions(qns, tuple, d+1, remaining-v, count)
	}
	return qns
}

// ShellEnergy returns the harmonic oscillator energy of an orbital with quantum numbers qn, in units of omega.
func ShellEnergy(qn []int) float64 {
	e := float64(len(qn)) / 2
	for _, n := range qn {
		e += float64(n)
	}
	return e
}
