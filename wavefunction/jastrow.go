package wavefunction

import (
	"math"
)

// PadeJastrow is the correlation factor psi = exp(sum_{i<j} a_ij r_ij / (1 + beta r_ij)).
// The cusp factor a_ij depends on whether particles i and j have parallel spins, with the first ceil(N/2) particles spin up.
type PadeJastrow struct {
	particles int
	dims      int
	next      float64
	beta      float64

	x []float64
	// a and r are the cusp factors and pairwise distances, indexed by particle pairs.
	a [][]float64
	r [][]float64

	pending bool
	k       int
	xkOld   float64
	savedR  []float64
}

// NewPadeJastrow returns a Pade-Jastrow factor with the initial parameter beta.
func NewPadeJastrow(particles, dims int, beta float64) *PadeJastrow {
	j := &PadeJastrow{particles: particles, dims: dims, next: beta, beta: beta}
	parallel, antiparallel := 1/float64(dims+1), 1.0
	if dims > 1 {
		antiparallel = 1 / float64(dims-1)
	}
	nUp := (particles + 1) / 2
	j.a, j.r = make([][]float64, particles), make([][]float64, particles)
	for p := range particles {
		j.a[p], j.r[p] = make([]float64, particles), make([]float64, particles)
		for q := range particles {
			switch {
			case p == q:
			case (p < nUp) == (q < nUp):
				j.a[p][q] = parallel
			default:
				j.a[p][q] = antiparallel
			}
		}
	}
	j.savedR = make([]float64, particles)
	return j
}

func (j *PadeJastrow) NumParameters() int { return 1 }

func (j *PadeJastrow) SetParameters(theta []float64) {
	j.next = theta[0]
}

func (j *PadeJastrow) Initialize(x []float64) {
	j.beta = j.next
	j.x = append(j.x[:0], x...)
	j.pending = false
	for p := range j.particles {
		for q := p + 1; q < j.particles; q++ {
			j.r[p][q] = j.distance(p, q)
			j.r[q][p] = j.r[p][q]
		}
	}
}

func (j *PadeJastrow) Propose(x []float64, k int) (float64, error) {
	if err := checkCoordinate(k, len(j.x)); err != nil {
		return math.NaN(), err
	}
	if j.pending {
		j.Rollback()
	}
	j.pending, j.k, j.xkOld = true, k, j.x[k]
	j.x[k] = x[k]

	p := k / j.dims
	copy(j.savedR, j.r[p])
	var diff float64
	for q := range j.particles {
		if q == p {
			continue
		}
		r := j.distance(p, q)
		diff += j.f(p, q, r) - j.f(p, q, j.r[p][q])
		j.r[p][q], j.r[q][p] = r, r
	}
	return math.Exp(2 * diff), nil
}

func (j *PadeJastrow) Commit() {
	j.pending = false
}

func (j *PadeJastrow) Rollback() {
	if !j.pending {
		return
	}
	j.x[j.k] = j.xkOld
	p := j.k / j.dims
	copy(j.r[p], j.savedR)
	for q, r := range j.savedR {
		j.r[q][p] = r
	}
	j.pending = false
}

func (j *PadeJastrow) Gradient(k int) float64 {
	p, d := k/j.dims, k%j.dims
	var g float64
	for q := range j.particles {
		if q == p {
			continue
		}
		r := j.r[p][q]
		g += j.df(p, q, r) * (j.x[k] - j.x[q*j.dims+d]) / r
	}
	return g
}

func (j *PadeJastrow) Laplacian() float64 {
	var lap float64
	for p := range j.particles {
		for q := range j.particles {
			if q == p {
				continue
			}
			r := j.r[p][q]
			lap += j.d2f(p, q, r) + float64(j.dims-1)*j.df(p, q, r)/r
		}
	}
	return lap
}

func (j *PadeJastrow) ParameterGradient(dst []float64) {
	clear(dst)
	for p := range j.particles {
		for q := p + 1; q < j.particles; q++ {
			r := j.r[p][q]
			denom := 1 + j.beta*r
			dst[0] -= j.a[p][q] * r * r / (denom * denom)
		}
	}
}

func (j *PadeJastrow) distance(p, q int) float64 {
	var r2 float64
	for d := range j.dims {
		diff := j.x[p*j.dims+d] - j.x[q*j.dims+d]
		r2 += diff * diff
	}
	return math.Sqrt(r2)
}

func (j *PadeJastrow) f(p, q int, r float64) float64 {
	return j.a[p][q] * r / (1 + j.beta*r)
}

func (j *PadeJastrow) df(p, q int, r float64) float64 {
	denom := 1 + j.beta*r
	return j.a[p][q] / (denom * denom)
}

func (j *PadeJastrow) d2f(p, q int, r float64) float64 {
	denom := 1 + j.beta*r
	return -2 * j.a[p][q] * j.beta / (denom * denom * denom)
}
