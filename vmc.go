// Package vmc estimates ground state energies of trapped particles by variational Monte Carlo.
//
// A run samples the trial wavefunction with independent random walkers in parallel,
// reduces their energy and gradient sums,
// and updates the variational parameters until the energy converges.
package vmc

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/vmc/basis"
	"github.com/fumin/vmc/estimator"
	"github.com/fumin/vmc/exactdiag"
	"github.com/fumin/vmc/hamiltonian"
	vmat "github.com/fumin/vmc/mat"
	"github.com/fumin/vmc/metropolis"
	"github.com/fumin/vmc/optimize"
	"github.com/fumin/vmc/util"
	"github.com/fumin/vmc/wavefunction"
)

// Store persists the state of every iteration.
type Store interface {
	WriteIteration(ctx context.Context, iteration int, params mat.Matrix, scalars map[string]float64) error
}

// Iteration is the outcome of one iteration.
type Iteration struct {
	Index int
	Steps int
	estimator.Statistics

	// Block is set for the final iteration when resampling is configured.
	Block *estimator.Block
}

// Result is the outcome of a run.
type Result struct {
	Converged  bool
	Parameters *mat.Dense
	Iterations []Iteration
}

// Final returns the last iteration.
func (r Result) Final() Iteration {
	return r.Iterations[len(r.Iterations)-1]
}

// Run is the state of a variational Monte Carlo run.
type Run struct {
	cfg   Config
	store Store

	params      *mat.Dense
	walkers     []*estimator.Estimator
	total       *estimator.Accumulator
	reducer     estimator.Reducer
	optimizer   optimize.Optimizer
	convergence *optimize.Convergence
	throttler   *util.SkipThrottler
}

// New returns a run of cfg that persists its iterations to store, which may be nil.
func New(cfg Config, store Store) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	r := &Run{
		cfg:         cfg,
		store:       store,
		reducer:     estimator.Sum{},
		convergence: optimize.NewConvergence(cfg.ConvergenceWindow, cfg.Tolerance),
		throttler:   util.NewSkipThrottler(time.Second),
	}

	h, err := newHamiltonian(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	r.optimizer, err = newOptimizer(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	dof := cfg.Particles * cfg.Dimensions
	for w := range cfg.Workers {
		psi, err := newWavefunction(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if r.params == nil {
			r.params, err = initialWeights(cfg, psi)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
		}
		psi.SetParameters(r.params)

		rng := metropolis.NewPCG(cfg.Seed, uint64(w))
		x := initialState(cfg, rng, dof)
		mover, err := newMover(cfg, rng)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		r.walkers = append(r.walkers, estimator.New(x, psi, mover, h))
	}
	rows, cols := r.params.Dims()
	r.total = estimator.NewAccumulator(rows, cols)
	return r, nil
}

// Parameters returns the current parameter matrix.
func (r *Run) Parameters() *mat.Dense { return r.params }

// Run iterates until the energy converges or the iterations are exhausted.
// After convergence exactly one more iteration is run with 2^ConfirmationPower times the steps, which is also the final iteration when the run does not converge.
func (r *Run) Run(ctx context.Context) (Result, error) {
	var res Result
	confirm := false
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		final := confirm || i == r.cfg.Iterations-1
		steps := r.steps(i, final)
		it, err := r.iterate(ctx, i, steps, final && r.cfg.Resampling)
		if err != nil {
			return res, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		res.Iterations = append(res.Iterations, it)
		skipped := r.throttler.Skipped()
		if final || r.throttler.Ok() {
			log.Print(r.progress(it, skipped))
		}
		if final {
			break
		}

		r.update(it.Gradient)
		if r.convergence.Add(it.Energy) {
			log.Printf("converged at iteration %d energy %f", i, it.Energy)
			confirm = true
			res.Converged = true
		}
	}
	res.Parameters = mat.DenseCopyOf(r.params)
	return res, nil
}

// progress describes it for the run log, skipped being the number of iterations not logged since the previous line.
func (r *Run) progress(it Iteration, skipped int) string {
	return fmt.Sprintf("iteration %d steps %d (%d skipped) %s params %v", it.Index, it.Steps, skipped, it.Statistics, mat.Formatted(r.params.T(), mat.Squeeze()))
}

func (r *Run) steps(iteration int, final bool) int {
	steps := r.cfg.Steps
	switch {
	case final:
		steps <<= r.cfg.ConfirmationPower
	case r.cfg.AdaptiveSteps && iteration >= r.cfg.Iterations-1-r.cfg.AdaptiveRange:
		steps <<= r.cfg.AdaptivePower
	}
	return steps
}

// iterate runs one sweep on every walker in parallel and reduces their sums.
func (r *Run) iterate(ctx context.Context, i, steps int, record bool) (Iteration, error) {
	perWorker := steps / len(r.walkers)
	w := estimator.Window{
		Equilibration: int(r.cfg.Equilibration * float64(perWorker)),
		Steps:         perWorker,
		Batches:       r.cfg.Batches,
		Batch:         i,
		Record:        record,
	}
	var g errgroup.Group
	for _, walker := range r.walkers {
		g.Go(func() error {
			if err := walker.Sweep(w); err != nil {
				return errors.Wrap(err, "")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Iteration{}, errors.Wrap(err, "")
	}

	parts := make([]*estimator.Accumulator, 0, len(r.walkers))
	for _, walker := range r.walkers {
		parts = append(parts, walker.Accumulator())
	}
	if err := r.reducer.Reduce(r.total, parts); err != nil {
		return Iteration{}, errors.Wrap(err, "")
	}
	stats, err := r.total.Statistics()
	if err != nil {
		return Iteration{}, errors.Wrap(err, "")
	}
	it := Iteration{Index: i, Steps: stats.Steps, Statistics: stats}

	if record {
		energies := make([]float64, 0, stats.Steps)
		for _, walker := range r.walkers {
			energies = append(energies, walker.Energies()...)
		}
		b, err := estimator.Blocking(energies)
		if err != nil {
			return Iteration{}, errors.Wrap(err, "")
		}
		it.Block = &b
	}

	if r.store != nil {
		if err := r.store.WriteIteration(ctx, i, r.params, it.scalars()); err != nil {
			return Iteration{}, errors.Wrap(err, "")
		}
	}
	return it, nil
}

// update applies the optimizer step and broadcasts the new parameters to every walker.
func (r *Run) update(gradient *mat.Dense) {
	r.params.Sub(r.params, r.optimizer.Update(gradient))
	for _, walker := range r.walkers {
		walker.Wavefunction().SetParameters(r.params)
		walker.Reinitialize()
	}
}

func (it Iteration) scalars() map[string]float64 {
	s := map[string]float64{
		"energy":      it.Energy,
		"kinetic":     it.Kinetic,
		"external":    it.External,
		"interaction": it.Interaction,
		"variance":    it.Variance,
		"std_error":   it.StdError,
		"acceptance":  it.Acceptance,
	}
	if it.Block != nil {
		s["blocking_std_error"] = it.Block.StdError
	}
	return s
}

func newHamiltonian(cfg Config) (hamiltonian.Hamiltonian, error) {
	coulomb := hamiltonian.Coulomb{Dims: cfg.Dimensions, Enabled: cfg.Interaction, ScreeningLength: cfg.ScreeningLength}
	switch cfg.Hamiltonian {
	case HarmonicOscillator:
		return hamiltonian.HarmonicOscillator{Omega: cfg.Omega, Coulomb: coulomb}, nil
	case DoubleWell:
		return hamiltonian.DoubleWell{Omega: cfg.Omega, B: cfg.WellDistance, Dims: cfg.Dimensions, Coulomb: coulomb}, nil
	default:
		return nil, errors.Errorf("%q", cfg.Hamiltonian)
	}
}

func newWavefunction(cfg Config) (*wavefunction.Product, error) {
	components := make([]wavefunction.Component, 0, len(cfg.Components))
	for _, name := range cfg.Components {
		switch name {
		case Gaussian:
			components = append(components, wavefunction.NewGaussian(cfg.Omega/2))
		case SlaterDeterminant:
			components = append(components, wavefunction.NewSlaterDeterminant(cfg.Particles, cfg.Dimensions, basis.NewHermite(cfg.Omega)))
		case PadeJastrow:
			components = append(components, wavefunction.NewPadeJastrow(cfg.Particles, cfg.Dimensions, 0))
		default:
			return nil, errors.Errorf("%q", name)
		}
	}
	return wavefunction.NewProduct(cfg.Particles*cfg.Dimensions, components...), nil
}

func newMover(cfg Config, rng metropolis.Rand) (metropolis.Mover, error) {
	order := metropolis.Random
	if cfg.Sequential {
		order = metropolis.Sequential
	}
	switch cfg.Sampler {
	case BruteForce:
		return metropolis.NewBruteForce(rng, cfg.StepLength, order), nil
	case ImportanceSampling:
		return metropolis.NewImportanceSampling(rng, cfg.TimeStep, order), nil
	default:
		return nil, errors.Errorf("%q", cfg.Sampler)
	}
}

func newOptimizer(cfg Config) (optimize.Optimizer, error) {
	switch cfg.Optimizer {
	case SGD:
		return optimize.NewSGD(cfg.LearningRate), nil
	case ASGD:
		return optimize.NewASGD(cfg.LearningRate, cfg.Momentum), nil
	case Adam:
		return optimize.NewAdam(optimize.NewAdamOptions().LearningRate(cfg.LearningRate)), nil
	default:
		return nil, errors.Errorf("%q", cfg.Optimizer)
	}
}

// initialWeights returns the initial parameter matrix of psi.
// Random weights are drawn uniformly from [w/2, 3w/2), where w is the configured initial weight.
func initialWeights(cfg Config, psi *wavefunction.Product) (*mat.Dense, error) {
	rows, cols := len(psi.Components()), psi.NumParameters()
	if cfg.InitialWeights == File {
		params, err := vmat.ReadParameters(cfg.WeightsFile)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if r, c := params.Dims(); r != rows || c != cols {
			return nil, errors.Errorf("%s %dx%d expected %dx%d", cfg.WeightsFile, r, c, rows, cols)
		}
		return params, nil
	}

	rng := metropolis.NewPCG(cfg.Seed, math.MaxUint64)
	params := mat.NewDense(rows, cols, nil)
	for i, c := range psi.Components() {
		for j := range c.NumParameters() {
			v := cfg.InitialWeight
			if cfg.InitialWeights == Random {
				v *= 0.5 + rng.Uniform()
			}
			params.Set(i, j, v)
		}
	}
	return params, nil
}

func initialState(cfg Config, rng metropolis.Rand, dof int) []float64 {
	x := make([]float64, dof)
	for i := range x {
		switch cfg.InitialState {
		case Normal:
			x[i] = rng.Gaussian() / math.Sqrt(2*cfg.Omega)
		default:
			x[i] = rng.Uniform() - 0.5
		}
	}
	return x
}

// ReferenceEnergy returns an exact energy to compare the variational estimate against, when one is known.
func ReferenceEnergy(cfg Config) (exactdiag.Reference, error) {
	switch {
	case cfg.Interaction:
		return exactdiag.Reference{}, errors.Errorf("interacting")
	case cfg.Hamiltonian == HarmonicOscillator:
		return exactdiag.Reference{Energy: exactdiag.HarmonicOscillator(cfg.Omega, cfg.Particles, cfg.Dimensions), Method: "closed form"}, nil
	case cfg.Hamiltonian == DoubleWell && cfg.Particles == 1:
		potential := func(x float64) float64 {
			d := math.Abs(x) - cfg.WellDistance/2
			return 0.5 * cfg.Omega * cfg.Omega * d * d
		}
		length := cfg.WellDistance/2 + 10/math.Sqrt(cfg.Omega)
		levels, err := exactdiag.Levels(potential, exactdiag.Grid{Points: 801, Length: length})
		if err != nil {
			return exactdiag.Reference{}, errors.Wrap(err, "")
		}
		e := levels[0] + float64(cfg.Dimensions-1)*cfg.Omega/2
		return exactdiag.Reference{Energy: e, Method: "grid diagonalization"}, nil
	default:
		return exactdiag.Reference{}, errors.Errorf("no reference for %s with %d particles", cfg.Hamiltonian, cfg.Particles)
	}
}
