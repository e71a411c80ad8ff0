package wavefunction

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fumin/vmc/basis"
)

// SlaterDeterminant is the product of a spin-up and a spin-down determinant of single-particle orbitals.
// The first ceil(N/2) particles are spin up, the rest spin down.
// Orbitals are products over dimensions of basis functions, filled shell by shell.
//
// The inverse of each determinant matrix is maintained lazily: a proposal marks it stale, and it is recomputed in full right before it is next read.
// A full O(n^3) inversion is preferred over the Sherman-Morrison update for its numerical robustness.
type SlaterDeterminant struct {
	dims   int
	basis  basis.Basis
	blocks []*determinant
	x      []float64

	pending bool
	k       int
	xkOld   float64
	moved   *determinant
}

// NewSlaterDeterminant returns a Slater determinant of particles particles in dims dimensions over the basis b.
func NewSlaterDeterminant(particles, dims int, b basis.Basis) *SlaterDeterminant {
	s := &SlaterDeterminant{dims: dims, basis: b}
	nUp, nDown := (particles+1)/2, particles/2
	qns := basis.QuantumNumbers(nUp, dims)
	s.blocks = append(s.blocks, newDeterminant(0, nUp, dims, qns))
	if nDown > 0 {
		s.blocks = append(s.blocks, newDeterminant(nUp, nDown, dims, qns[:nDown]))
	}
	return s
}

func (s *SlaterDeterminant) NumParameters() int { return 0 }

func (s *SlaterDeterminant) SetParameters(theta []float64) {}

func (s *SlaterDeterminant) Initialize(x []float64) {
	s.x = append(s.x[:0], x...)
	s.pending = false
	for _, d := range s.blocks {
		for i := range d.n {
			d.fillRow(s.x, s.basis, i)
		}
		d.invOK = false
	}
}

func (s *SlaterDeterminant) Propose(x []float64, k int) (float64, error) {
	if err := checkCoordinate(k, len(s.x)); err != nil {
		return math.NaN(), err
	}
	if s.pending {
		s.Rollback()
	}
	s.pending, s.k, s.xkOld = true, k, s.x[k]
	s.x[k] = x[k]

	d, i := s.locate(k)
	s.moved = d
	r := d.propose(s.x, s.basis, i)
	return r * r, nil
}

func (s *SlaterDeterminant) Commit() {
	if !s.pending {
		return
	}
	s.pending = false
}

func (s *SlaterDeterminant) Rollback() {
	if !s.pending {
		return
	}
	s.x[s.k] = s.xkOld
	s.moved.rollback()
	s.pending = false
}

func (s *SlaterDeterminant) Gradient(k int) float64 {
	d, i := s.locate(k)
	return d.gradient(i, k%s.dims)
}

func (s *SlaterDeterminant) Laplacian() float64 {
	var lap float64
	for _, d := range s.blocks {
		inv := d.inverse()
		for i := range d.n {
			for dim := range s.dims {
				var g, l float64
				da, d2a := d.da[i][dim*d.n:(dim+1)*d.n], d.d2a[i][dim*d.n:(dim+1)*d.n]
				for j := range d.n {
					g += da[j] * inv.At(j, i)
					l += d2a[j] * inv.At(j, i)
				}
				lap += l - g*g
			}
		}
	}
	return lap
}

func (s *SlaterDeterminant) ParameterGradient(dst []float64) {
	clear(dst)
}

// locate returns the determinant holding coordinate k and the particle's row within it.
func (s *SlaterDeterminant) locate(k int) (*determinant, int) {
	p := k / s.dims
	for _, d := range s.blocks {
		if p < d.first+d.n {
			return d, p - d.first
		}
	}
	panic("unreachable")
}

// determinant holds the matrix a(i, j) = phi_j(r_i) of one spin species, its inverse, and the first and second derivatives of every row.
type determinant struct {
	first int
	n     int
	dims  int
	qns   [][]int

	a *mat.Dense
	// da[i][d*n+j] is d phi_j(r_i) / dx_{i,d}, and d2a the corresponding second derivative.
	da  [][]float64
	d2a [][]float64

	// inv is the inverse of a if invOK, and spare holds the inverse before the pending proposal.
	inv     *mat.Dense
	invOK   bool
	spare   *mat.Dense
	spareOK bool

	row      int
	savedA   []float64
	savedDa  []float64
	savedD2a []float64
	// phi, dphi, d2phi are per dimension basis function buffers.
	phi, dphi, d2phi []float64
}

func newDeterminant(first, n, dims int, qns [][]int) *determinant {
	d := &determinant{first: first, n: n, dims: dims, qns: qns}
	d.a = mat.NewDense(n, n, nil)
	d.inv = mat.NewDense(n, n, nil)
	d.spare = mat.NewDense(n, n, nil)
	d.da, d.d2a = make([][]float64, n), make([][]float64, n)
	for i := range n {
		d.da[i] = make([]float64, dims*n)
		d.d2a[i] = make([]float64, dims*n)
	}
	d.savedA = make([]float64, n)
	d.savedDa = make([]float64, dims*n)
	d.savedD2a = make([]float64, dims*n)
	d.phi, d.dphi, d.d2phi = make([]float64, dims), make([]float64, dims), make([]float64, dims)
	return d
}

// fillRow evaluates every orbital and its derivatives at the position of particle i.
func (d *determinant) fillRow(x []float64, b basis.Basis, i int) {
	r := x[(d.first+i)*d.dims : (d.first+i+1)*d.dims]
	row := d.a.RawRowView(i)
	for j, qn := range d.qns {
		for dim, n := range qn {
			d.phi[dim] = b.Evaluate(r[dim], n)
			d.dphi[dim] = b.Derivative(r[dim], n)
			d.d2phi[dim] = b.SecondDerivative(r[dim], n)
		}

		row[j] = 1
		for dim := range d.dims {
			row[j] *= d.phi[dim]
			first, second := d.dphi[dim], d.d2phi[dim]
			for other := range d.dims {
				if other == dim {
					continue
				}
				first *= d.phi[other]
				second *= d.phi[other]
			}
			d.da[i][dim*d.n+j] = first
			d.d2a[i][dim*d.n+j] = second
		}
	}
}

// propose replaces row i and returns the determinant ratio det(a_new) / det(a_old).
func (d *determinant) propose(x []float64, b basis.Basis, i int) float64 {
	inv := d.inverse()

	d.row = i
	copy(d.savedA, d.a.RawRowView(i))
	copy(d.savedDa, d.da[i])
	copy(d.savedD2a, d.d2a[i])
	d.fillRow(x, b, i)
	r := RowRatio(inv, d.a.RawRowView(i), i)

	d.inv, d.spare = d.spare, d.inv
	d.invOK, d.spareOK = false, true
	return r
}

func (d *determinant) rollback() {
	copy(d.a.RawRowView(d.row), d.savedA)
	copy(d.da[d.row], d.savedDa)
	copy(d.d2a[d.row], d.savedD2a)
	d.inv, d.spare = d.spare, d.inv
	d.invOK, d.spareOK = d.spareOK, false
}

func (d *determinant) gradient(i, dim int) float64 {
	inv := d.inverse()
	var g float64
	for j, v := range d.da[i][dim*d.n : (dim+1)*d.n] {
		g += v * inv.At(j, i)
	}
	return g
}

// inverse returns the inverse of a, recomputing it if stale.
func (d *determinant) inverse() *mat.Dense {
	if d.invOK {
		return d.inv
	}
	if err := d.inv.Inverse(d.a); err != nil {
		log.Printf("slater determinant rows %d-%d: %v", d.first, d.first+d.n, err)
	}
	d.invOK = true
	return d.inv
}

// RowRatio returns det(a_new) / det(a_old) when a_new is a_old with row p replaced by row.
// inv is the inverse of a_old.
func RowRatio(inv mat.Matrix, row []float64, p int) float64 {
	var r float64
	for j, v := range row {
		r += v * inv.At(j, p)
	}
	return r
}
