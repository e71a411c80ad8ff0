// Package metropolis implements Metropolis-Hastings random walks over particle configurations.
//
// Each step moves a single coordinate.
// A step always resolves to Committed or Rejected before it returns, so no wavefunction component is ever left with a pending proposal between steps.
package metropolis

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// State is the state of the last step of a Mover.
type State int

const (
	Idle State = iota
	Proposed
	Committed
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Proposed:
		return "proposed"
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Order is how a Mover picks the coordinate of each step.
type Order int

const (
	// Random picks a coordinate uniformly at random.
	Random Order = iota
	// Sequential sweeps the coordinates in order.
	Sequential
)

// Wavefunction is the trial wavefunction seen by a Mover.
type Wavefunction interface {
	Propose(x []float64, k int) (float64, error)
	Commit()
	Rollback()
	Gradient(k int) float64
}

// Mover performs one Metropolis-Hastings step on the configuration x, which is updated in place if the move is accepted.
type Mover interface {
	Step(x []float64, psi Wavefunction) (bool, error)
	State() State
}

// AcceptanceProbability returns min(1, |ratio| * greens), clamped into [0, 1].
// A non-finite or negative product has probability zero, except +Inf which has probability one.
func AcceptanceProbability(ratio, greens float64) float64 {
	p := math.Abs(ratio) * greens
	switch {
	case p > 1:
		return 1
	case p > 0:
		return p
	default:
		return 0
	}
}

// Accept reports whether a move with acceptance probability p is accepted given a uniform draw u in [0, 1).
func Accept(p, u float64) bool {
	return u < p
}

// walk holds what is shared between Mover implementations.
type walk struct {
	rng   Rand
	order Order
	next  int
	state State

	// y is the proposed configuration.
	y []float64
}

func (w *walk) State() State { return w.state }

func (w *walk) coordinate(n int) int {
	switch w.order {
	case Sequential:
		k := w.next % n
		w.next = k + 1
		return k
	default:
		return w.rng.Intn(n)
	}
}

func (w *walk) trial(x []float64) []float64 {
	if cap(w.y) < len(x) {
		w.y = make([]float64, len(x))
	}
	w.y = w.y[:len(x)]
	copy(w.y, x)
	return w.y
}

func (w *walk) propose(psi Wavefunction, k int) (float64, error) {
	ratio, err := psi.Propose(w.y, k)
	if err != nil {
		w.state = Idle
		return 0, errors.Wrap(err, "")
	}
	w.state = Proposed
	return ratio, nil
}

// resolve draws the uniform number deciding the move, and commits or rolls back.
// The draw is consumed even when p is one, so that walks with equal seeds consume equal random streams.
func (w *walk) resolve(x []float64, psi Wavefunction, k int, p float64) bool {
	if Accept(p, w.rng.Uniform()) {
		psi.Commit()
		x[k] = w.y[k]
		w.state = Committed
		return true
	}
	psi.Rollback()
	w.y[k] = x[k]
	w.state = Rejected
	return false
}

// BruteForce proposes uniform displacements in [-stepLength/2, stepLength/2).
type BruteForce struct {
	walk
	stepLength float64
}

// NewBruteForce returns a brute force Metropolis mover.
func NewBruteForce(rng Rand, stepLength float64, order Order) *BruteForce {
	return &BruteForce{walk: walk{rng: rng, order: order}, stepLength: stepLength}
}

func (m *BruteForce) Step(x []float64, psi Wavefunction) (bool, error) {
	k := m.coordinate(len(x))
	y := m.trial(x)
	y[k] += m.stepLength * (m.rng.Uniform() - 0.5)
	ratio, err := m.propose(psi, k)
	if err != nil {
		return false, errors.Wrap(err, "")
	}
	return m.resolve(x, psi, k, AcceptanceProbability(ratio, 1)), nil
}

// ImportanceSampling proposes Langevin moves drifting along the quantum force 2 d ln(psi) / dx_k,
// with diffusion constant 1/2 and time step timeStep.
type ImportanceSampling struct {
	walk
	timeStep float64
}

// NewImportanceSampling returns an importance sampling Metropolis-Hastings mover.
func NewImportanceSampling(rng Rand, timeStep float64, order Order) *ImportanceSampling {
	return &ImportanceSampling{walk: walk{rng: rng, order: order}, timeStep: timeStep}
}

func (m *ImportanceSampling) Step(x []float64, psi Wavefunction) (bool, error) {
	k := m.coordinate(len(x))
	y := m.trial(x)
	gOld := psi.Gradient(k)
	y[k] += m.timeStep*gOld + math.Sqrt(m.timeStep)*m.rng.Gaussian()
	ratio, err := m.propose(psi, k)
	if err != nil {
		return false, errors.Wrap(err, "")
	}
	// The proposed state is read here for the backward drift.
	gNew := psi.Gradient(k)
	greens := GreensRatio(x[k], y[k], gOld, gNew, m.timeStep)
	return m.resolve(x, psi, k, AcceptanceProbability(ratio, greens)), nil
}

// GreensRatio returns G(x|y) / G(y|x) for the one dimensional drift-diffusion kernel
// G(y|x) = exp(-(y - x - dt g(x))^2 / (2 dt)), where g is d ln(psi) / dx.
func GreensRatio(x, y, gx, gy, dt float64) float64 {
	forward := y - x - dt*gx
	backward := x - y - dt*gy
	return math.Exp((forward*forward - backward*backward) / (2 * dt))
}
