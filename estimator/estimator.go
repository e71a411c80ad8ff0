// Package estimator measures local energies and parameter gradients along a random walk.
package estimator

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/vmc/hamiltonian"
	"github.com/fumin/vmc/metropolis"
	"github.com/fumin/vmc/wavefunction"
)

// Window configures a sweep.
type Window struct {
	// Equilibration steps are taken before measuring.
	Equilibration int
	// Steps is the number of measured steps.
	Steps int

	// Parameter gradients are only accumulated over steps [b*per, (b+1)*per),
	// where b = Batch mod Batches and per = Steps / Batches.
	Batches int
	Batch   int

	// Record keeps the energy of every measured step.
	Record bool
}

func (w Window) batch() (int, int) {
	batches := max(w.Batches, 1)
	per := w.Steps / batches
	b := w.Batch % batches
	if b < 0 {
		b += batches
	}
	return b * per, (b + 1) * per
}

// Estimator owns the configuration of one random walker.
type Estimator struct {
	x     []float64
	psi   *wavefunction.Product
	mover metropolis.Mover
	h     hamiltonian.Hamiltonian

	acc      *Accumulator
	grad     *mat.Dense
	energies []float64
}

// New returns an estimator starting at configuration x, which it takes ownership of.
func New(x []float64, psi *wavefunction.Product, mover metropolis.Mover, h hamiltonian.Hamiltonian) *Estimator {
	cols := psi.NumParameters()
	rows := len(psi.Components())
	e := &Estimator{
		x:     x,
		psi:   psi,
		mover: mover,
		h:     h,
		acc:   NewAccumulator(rows, cols),
		grad:  mat.NewDense(rows, cols, nil),
	}
	psi.Initialize(x)
	return e
}

// Wavefunction returns the trial wavefunction.
func (e *Estimator) Wavefunction() *wavefunction.Product { return e.psi }

// Accumulator returns the sums of the last sweep.
func (e *Estimator) Accumulator() *Accumulator { return e.acc }

// Energies returns the energies recorded in the last sweep.
func (e *Estimator) Energies() []float64 { return e.energies }

// Reinitialize rebuilds the wavefunction state from the current configuration, for example after new parameters are set.
func (e *Estimator) Reinitialize() {
	e.psi.Initialize(e.x)
}

// Sweep walks w.Equilibration + w.Steps steps and accumulates the measured ones.
func (e *Estimator) Sweep(w Window) error {
	if w.Steps <= 0 || w.Equilibration < 0 {
		return errors.Errorf("%+v", w)
	}
	begin, end := w.batch()
	if end <= begin {
		return errors.Errorf("empty batch %+v", w)
	}
	e.energies = e.energies[:0]
	for i := 0; i < w.Equilibration+w.Steps; i++ {
		accepted, err := e.mover.Step(e.x, e.psi)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		j := i - w.Equilibration
		if j < 0 {
			continue
		}
		if j == 0 {
			e.acc.Reset()
		}
		energy := e.measure(accepted, j >= begin && j < end)
		if w.Record {
			e.energies = append(e.energies, energy)
		}
	}
	return nil
}

func (e *Estimator) measure(accepted, batch bool) float64 {
	kinetic := e.psi.Kinetic()
	external := e.h.External(e.x)
	interaction := e.h.Interaction(e.x)
	energy := kinetic + external + interaction

	a := e.acc
	a.Steps++
	if accepted {
		a.Accepted++
	}
	a.Kinetic += kinetic
	a.External += external
	a.Interaction += interaction
	a.Energy += energy
	a.EnergySq += energy * energy
	if batch {
		e.psi.ParameterGradient(e.grad)
		a.LogDeriv.Add(a.LogDeriv, e.grad)
		a.EnergyLogDeriv.Apply(func(i, j int, v float64) float64 {
			return v + energy*e.grad.At(i, j)
		}, a.EnergyLogDeriv)
		a.BatchSteps++
	}
	return energy
}
