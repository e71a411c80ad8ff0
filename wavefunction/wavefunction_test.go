package wavefunction

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/vmc/basis"
)

type system struct {
	particles int
	dims      int
}

func (s system) String() string { return fmt.Sprintf("%dP%dD", s.particles, s.dims) }

func newComponents(s system) map[string]Component {
	return map[string]Component{
		"gaussian": NewGaussian(0.37),
		"slater":   NewSlaterDeterminant(s.particles, s.dims, basis.NewHermite(0.8)),
		"jastrow":  NewPadeJastrow(s.particles, s.dims, 0.6),
	}
}

func randConfig(rng *rand.Rand, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	return x
}

// snapshot collects every derivative a component exposes.
func snapshot(c Component, dof int) []float64 {
	s := make([]float64, 0, dof+2)
	for k := range dof {
		s = append(s, c.Gradient(k))
	}
	s = append(s, c.Laplacian())
	pg := make([]float64, 2)
	c.ParameterGradient(pg)
	return append(s, pg...)
}

func TestRollback(t *testing.T) {
	t.Parallel()
	systems := []system{{particles: 1, dims: 2}, {particles: 2, dims: 2}, {particles: 6, dims: 2}, {particles: 3, dims: 3}}
	for _, s := range systems {
		for name, c := range newComponents(s) {
			t.Run(fmt.Sprintf("%s %s", s, name), func(t *testing.T) {
				t.Parallel()
				rng := rand.New(rand.NewPCG(1, 2))
				dof := s.particles * s.dims
				x := randConfig(rng, dof)
				c.Initialize(x)

				for range 20 {
					before := snapshot(c, dof)
					k := rng.IntN(dof)
					y := slices.Clone(x)
					y[k] += rng.NormFloat64()
					if _, err := c.Propose(y, k); err != nil {
						t.Fatalf("%+v", err)
					}
					c.Rollback()
					if after := snapshot(c, dof); !slices.Equal(after, before) {
						t.Fatalf("%v, expected %v", after, before)
					}

					// Rollback without a proposal is a no-op.
					c.Rollback()
					c.Commit()
					if after := snapshot(c, dof); !slices.Equal(after, before) {
						t.Fatalf("%v, expected %v", after, before)
					}
				}
			})
		}
	}
}

func TestSlaterRollbackState(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(3, 4))
	s := NewSlaterDeterminant(6, 2, basis.NewHermite(1))
	x := randConfig(rng, 12)
	s.Initialize(x)
	for _, d := range s.blocks {
		d.inverse()
	}

	for k := range 12 {
		a := mat.DenseCopyOf(s.blocks[k/6].a)
		inv := mat.DenseCopyOf(s.blocks[k/6].inv)
		y := slices.Clone(x)
		y[k] += 0.5
		if _, err := s.Propose(y, k); err != nil {
			t.Fatalf("%+v", err)
		}
		// Reading a gradient forces the stale inverse to be recomputed.
		s.Gradient(k)
		s.Rollback()
		d := s.blocks[k/6]
		if !mat.Equal(d.a, a) {
			t.Fatalf("%d %v, expected %v", k, mat.Formatted(d.a), mat.Formatted(a))
		}
		if !d.invOK || !mat.Equal(d.inv, inv) {
			t.Fatalf("%d %v, expected %v", k, mat.Formatted(d.inv), mat.Formatted(inv))
		}
	}
}

func TestProductRatioOrder(t *testing.T) {
	t.Parallel()
	s := system{particles: 4, dims: 2}
	dof := s.particles * s.dims
	newProduct := func(order []string) *Product {
		cs := newComponents(s)
		components := make([]Component, 0, len(order))
		for _, name := range order {
			components = append(components, cs[name])
		}
		return NewProduct(dof, components...)
	}
	a := newProduct([]string{"gaussian", "slater", "jastrow"})
	b := newProduct([]string{"jastrow", "gaussian", "slater"})

	rng := rand.New(rand.NewPCG(5, 6))
	x := randConfig(rng, dof)
	a.Initialize(x)
	b.Initialize(x)
	for range 50 {
		k := rng.IntN(dof)
		y := slices.Clone(x)
		y[k] += rng.NormFloat64()
		ra, err := a.Propose(y, k)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		rb, err := b.Propose(y, k)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if math.Abs(ra-rb) > 1e-12*math.Abs(ra) {
			t.Fatalf("%f %f", ra, rb)
		}
		if math.Abs(a.Kinetic()-b.Kinetic()) > 1e-9*max(1, math.Abs(a.Kinetic())) {
			t.Fatalf("%f %f", a.Kinetic(), b.Kinetic())
		}
		a.Commit()
		b.Commit()
		x = y
	}
}

func TestGaussianKinetic(t *testing.T) {
	t.Parallel()
	var systems []system
	for _, particles := range []int{1, 2, 6} {
		for _, dims := range []int{2, 3} {
			systems = append(systems, system{particles: particles, dims: dims})
		}
	}
	for _, s := range systems {
		t.Run(s.String(), func(t *testing.T) {
			t.Parallel()
			const alpha = 0.43
			rng := rand.New(rand.NewPCG(7, uint64(s.particles*10+s.dims)))
			dof := s.particles * s.dims
			g := NewGaussian(alpha)
			x := randConfig(rng, dof)
			g.Initialize(x)

			var r2 float64
			for _, v := range x {
				r2 += v * v
			}
			// (laplacian psi) / psi for psi = exp(-alpha r^2).
			want := -2*alpha*float64(dof) + 4*alpha*alpha*r2

			got := g.Laplacian()
			for k := range dof {
				got += g.Gradient(k) * g.Gradient(k)
			}
			if math.Abs(got-want) > 1e-12*max(1, math.Abs(want)) {
				t.Fatalf("%f, expected %f", got, want)
			}
		})
	}
}

func TestRowRatio(t *testing.T) {
	t.Parallel()
	for _, n := range []int{2, 4} {
		t.Run(fmt.Sprintf("%d", n), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(8, uint64(n)))
			for range 100 {
				a := mat.NewDense(n, n, nil)
				for i := range n {
					for j := range n {
						a.Set(i, j, rng.Float64()*2-1)
					}
				}
				var inv mat.Dense
				if err := inv.Inverse(a); err != nil {
					continue
				}
				p := rng.IntN(n)
				row := make([]float64, n)
				for j := range row {
					row[j] = rng.Float64()*2 - 1
				}
				b := mat.DenseCopyOf(a)
				b.SetRow(p, row)

				want := mat.Det(b) / mat.Det(a)
				got := RowRatio(&inv, row, p)
				if math.Abs(got-want) > 1e-10*math.Abs(want) {
					t.Fatalf("%g, expected %g", got, want)
				}
			}
		})
	}
}

// TestDerivatives compares analytic derivatives with finite differences of ln(psi), obtained from proposal ratios.
func TestDerivatives(t *testing.T) {
	t.Parallel()
	systems := []system{{particles: 2, dims: 2}, {particles: 6, dims: 2}, {particles: 4, dims: 3}}
	for _, s := range systems {
		for name, c := range newComponents(s) {
			t.Run(fmt.Sprintf("%s %s", s, name), func(t *testing.T) {
				t.Parallel()
				rng := rand.New(rand.NewPCG(9, 10))
				dof := s.particles * s.dims
				x := randConfig(rng, dof)
				c.Initialize(x)

				const eps = 1e-4
				// dlnpsi returns ln(psi(x + h e_k)) - ln(psi(x)).
				dlnpsi := func(k int, h float64) float64 {
					y := slices.Clone(x)
					y[k] += h
					r, err := c.Propose(y, k)
					if err != nil {
						t.Fatalf("%+v", err)
					}
					c.Rollback()
					return 0.5 * math.Log(r)
				}
				var lap float64
				for k := range dof {
					plus, minus := dlnpsi(k, eps), dlnpsi(k, -eps)
					g := (plus - minus) / (2 * eps)
					if v := c.Gradient(k); math.Abs(v-g) > 1e-5*max(1, math.Abs(g)) {
						t.Fatalf("k %d: %f, expected %f", k, v, g)
					}
					lap += (plus + minus) / (eps * eps)
				}
				if v := c.Laplacian(); math.Abs(v-lap) > 1e-3*max(1, math.Abs(lap)) {
					t.Fatalf("%f, expected %f", v, lap)
				}
			})
		}
	}
}

// TestIncremental checks that a long chain of incremental updates agrees with a fresh initialization.
func TestIncremental(t *testing.T) {
	t.Parallel()
	s := system{particles: 6, dims: 2}
	dof := s.particles * s.dims
	rng := rand.New(rand.NewPCG(11, 12))
	x := randConfig(rng, dof)
	incremental := newComponents(s)
	for _, c := range incremental {
		c.Initialize(x)
	}

	for range 200 {
		k := rng.IntN(dof)
		y := slices.Clone(x)
		y[k] += rng.Float64() - 0.5
		accept := rng.Float64() < 0.5
		for _, c := range incremental {
			if _, err := c.Propose(y, k); err != nil {
				t.Fatalf("%+v", err)
			}
			if accept {
				c.Commit()
			} else {
				c.Rollback()
			}
		}
		if accept {
			x = y
		}
	}

	for name, fresh := range newComponents(s) {
		fresh.Initialize(x)
		got, want := snapshot(incremental[name], dof), snapshot(fresh, dof)
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-8*max(1, math.Abs(want[i])) {
				t.Fatalf("%s %d: %v, expected %v", name, i, got, want)
			}
		}
	}
}

// TestSlaterExactEnergy checks that the Slater determinant times the Gaussian envelope alpha = omega/2 is the exact non-interacting ground state.
func TestSlaterExactEnergy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		system
		omega  float64
		energy float64
	}{
		{system: system{particles: 2, dims: 2}, omega: 1, energy: 2},
		{system: system{particles: 6, dims: 2}, omega: 1, energy: 10},
		{system: system{particles: 6, dims: 2}, omega: 0.5, energy: 5},
		{system: system{particles: 2, dims: 3}, omega: 1, energy: 3},
		{system: system{particles: 8, dims: 3}, omega: 1, energy: 18},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s %f", test.system, test.omega), func(t *testing.T) {
			t.Parallel()
			dof := test.particles * test.dims
			psi := NewProduct(dof, NewGaussian(test.omega/2), NewSlaterDeterminant(test.particles, test.dims, basis.NewHermite(test.omega)))
			rng := rand.New(rand.NewPCG(13, 14))
			for range 10 {
				x := randConfig(rng, dof)
				psi.Initialize(x)
				var r2 float64
				for _, v := range x {
					r2 += v * v
				}
				e := psi.Kinetic() + 0.5*test.omega*test.omega*r2
				if math.Abs(e-test.energy) > 1e-8 {
					t.Fatalf("%f, expected %f", e, test.energy)
				}
			}
		})
	}
}

func TestInvalidCoordinate(t *testing.T) {
	t.Parallel()
	s := system{particles: 2, dims: 2}
	x := make([]float64, 4)
	for name, c := range newComponents(s) {
		c.Initialize([]float64{0.1, 0.2, 0.3, 0.4})
		for _, k := range []int{-1, 4} {
			if _, err := c.Propose(x, k); !errors.Is(err, ErrInvalidCoordinate) {
				t.Fatalf("%s %d: %+v", name, k, err)
			}
		}
	}
	psi := NewProduct(4, NewGaussian(0.5))
	psi.Initialize(x)
	if _, err := psi.Propose(x, 7); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("%+v", err)
	}
}

func TestParameters(t *testing.T) {
	t.Parallel()
	g := NewGaussian(0.3)
	j := NewPadeJastrow(2, 2, 0.1)
	psi := NewProduct(4, g, NewSlaterDeterminant(2, 2, basis.NewHermite(1)), j)
	if n := psi.NumParameters(); n != 1 {
		t.Fatalf("%d", n)
	}
	params := mat.NewDense(3, 1, []float64{0.5, 0, 0.9})
	psi.SetParameters(params)
	if g.Alpha() != 0.3 {
		t.Fatalf("parameters must not take effect before Initialize, %f", g.Alpha())
	}
	x := []float64{0.5, -0.5, 1, 0}
	psi.Initialize(x)
	if g.Alpha() != 0.5 || j.beta != 0.9 {
		t.Fatalf("%f %f", g.Alpha(), j.beta)
	}

	grad := mat.NewDense(3, 1, nil)
	psi.ParameterGradient(grad)
	// The particles are 0.5*sqrt(2) apart with antiparallel spins.
	r := math.Sqrt(0.5)
	want := mat.NewDense(3, 1, []float64{-1.5, 0, -r * r / ((1 + 0.9*r) * (1 + 0.9*r))})
	if !mat.EqualApprox(grad, want, 1e-12) {
		t.Fatalf("%v, expected %v", mat.Formatted(grad), mat.Formatted(want))
	}
}
