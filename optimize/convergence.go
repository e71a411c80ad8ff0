package optimize

import (
	"container/ring"
	"math"
)

// Convergence tracks the energies of the last iterations.
// The optimization has converged when the energies of the oldest and newest tracked iterations differ by less than a tolerance.
type Convergence struct {
	tol    float64
	n      int
	energy *ring.Ring
}

// NewConvergence returns a tracker over the last k energies.
func NewConvergence(k int, tol float64) *Convergence {
	return &Convergence{tol: tol, energy: ring.New(max(k, 2))}
}

// Add records the energy of an iteration and reports whether the optimization has converged.
func (c *Convergence) Add(energy float64) bool {
	c.energy.Value = energy
	c.energy = c.energy.Next()
	c.n = min(c.n+1, c.energy.Len())
	return c.Converged()
}

func (c *Convergence) Converged() bool {
	if c.n < c.energy.Len() {
		return false
	}
	// After Add, the current element is the oldest and its predecessor the newest.
	oldest := c.energy.Value.(float64)
	newest := c.energy.Prev().Value.(float64)
	return math.Abs(oldest-newest) < c.tol
}

// Reset forgets all tracked energies.
func (c *Convergence) Reset() {
	c.n = 0
}
