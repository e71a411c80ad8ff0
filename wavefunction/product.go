package wavefunction

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Product is a trial wavefunction composed of an ordered set of components.
type Product struct {
	dof        int
	components []Component
	ratios     []float64
	buf        []float64
}

// NewProduct returns the product of components over configurations with dof coordinates.
func NewProduct(dof int, components ...Component) *Product {
	p := &Product{dof: dof, components: components, ratios: make([]float64, len(components))}
	for i := range p.ratios {
		p.ratios[i] = 1
	}
	p.buf = make([]float64, p.NumParameters())
	return p
}

// Components returns the components in order.
func (p *Product) Components() []Component { return p.components }

// NumParameters is the maximum number of parameters among the components, which is the column count of the parameter matrix.
// It is at least one, so that the parameter matrix is never empty.
func (p *Product) NumParameters() int {
	n := 1
	for _, c := range p.components {
		n = max(n, c.NumParameters())
	}
	return n
}

// Dof returns the number of coordinates of a configuration.
func (p *Product) Dof() int { return p.dof }

func (p *Product) Initialize(x []float64) {
	if len(x) != p.dof {
		panic(fmt.Sprintf("%d %d", len(x), p.dof))
	}
	for i, c := range p.components {
		c.Initialize(x)
		p.ratios[i] = 1
	}
}

// Propose proposes the move to x, which differs from the committed configuration only at coordinate k, on every component.
// It returns the total ratio |psi_new|^2 / |psi_old|^2.
func (p *Product) Propose(x []float64, k int) (float64, error) {
	if err := checkCoordinate(k, p.dof); err != nil {
		return 0, err
	}
	for i, c := range p.components {
		r, err := c.Propose(x, k)
		if err != nil {
			// Leave no component in the proposed state.
			for _, prev := range p.components[:i] {
				prev.Rollback()
			}
			return 0, errors.Wrap(err, fmt.Sprintf("%d %T", i, c))
		}
		p.ratios[i] = r
	}
	return p.Ratio(), nil
}

// Ratio returns the product of the ratios of the last proposal.
func (p *Product) Ratio() float64 {
	ratio := 1.0
	for _, r := range p.ratios {
		ratio *= r
	}
	return ratio
}

func (p *Product) Commit() {
	for _, c := range p.components {
		c.Commit()
	}
}

func (p *Product) Rollback() {
	for _, c := range p.components {
		c.Rollback()
	}
}

// SetParameters binds row i of params to component i.
// The parameters take effect on the next Initialize.
func (p *Product) SetParameters(params *mat.Dense) {
	rows, cols := params.Dims()
	if rows != len(p.components) || cols != len(p.buf) {
		panic(fmt.Sprintf("%d %d %d %d", rows, cols, len(p.components), len(p.buf)))
	}
	for i, c := range p.components {
		c.SetParameters(params.RawRowView(i))
	}
}

// Gradient returns d ln(psi) / dx_k summed over components.
func (p *Product) Gradient(k int) float64 {
	var g float64
	for _, c := range p.components {
		g += c.Gradient(k)
	}
	return g
}

// Laplacian returns the sum of the component Laplacians of ln(psi).
func (p *Product) Laplacian() float64 {
	var lap float64
	for _, c := range p.components {
		lap += c.Laplacian()
	}
	return lap
}

// Kinetic returns the local kinetic energy -1/2 (laplacian psi) / psi.
// The squared total gradient couples components, so all of them must be at the same configuration.
func (p *Product) Kinetic() float64 {
	sum := p.Laplacian()
	for k := range p.dof {
		g := p.Gradient(k)
		sum += g * g
	}
	return -0.5 * sum
}

// ParameterGradient writes d ln(psi) / d theta into dst, row i for component i.
func (p *Product) ParameterGradient(dst *mat.Dense) {
	for i, c := range p.components {
		c.ParameterGradient(p.buf)
		dst.SetRow(i, p.buf)
	}
}
