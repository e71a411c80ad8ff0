package estimator

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNonFiniteEnergy = errors.New("non-finite energy")
)

// Accumulator holds the sums of a Monte Carlo sweep.
type Accumulator struct {
	Steps      int
	Accepted   int
	BatchSteps int

	Kinetic     float64
	External    float64
	Interaction float64
	Energy      float64
	EnergySq    float64

	// LogDeriv and EnergyLogDeriv sum d ln(psi) / d theta and E * d ln(psi) / d theta inside the batch window.
	LogDeriv       *mat.Dense
	EnergyLogDeriv *mat.Dense
}

// NewAccumulator returns an accumulator for a parameter matrix of the given dimensions.
func NewAccumulator(rows, cols int) *Accumulator {
	return &Accumulator{
		LogDeriv:       mat.NewDense(rows, cols, nil),
		EnergyLogDeriv: mat.NewDense(rows, cols, nil),
	}
}

func (a *Accumulator) Reset() {
	a.Steps, a.Accepted, a.BatchSteps = 0, 0, 0
	a.Kinetic, a.External, a.Interaction, a.Energy, a.EnergySq = 0, 0, 0, 0, 0
	a.LogDeriv.Zero()
	a.EnergyLogDeriv.Zero()
}

// Add adds the sums of b to a.
func (a *Accumulator) Add(b *Accumulator) {
	a.Steps += b.Steps
	a.Accepted += b.Accepted
	a.BatchSteps += b.BatchSteps
	a.Kinetic += b.Kinetic
	a.External += b.External
	a.Interaction += b.Interaction
	a.Energy += b.Energy
	a.EnergySq += b.EnergySq
	a.LogDeriv.Add(a.LogDeriv, b.LogDeriv)
	a.EnergyLogDeriv.Add(a.EnergyLogDeriv, b.EnergyLogDeriv)
}

// Statistics are the estimates derived from an Accumulator.
type Statistics struct {
	Steps       int
	Energy      float64
	Kinetic     float64
	External    float64
	Interaction float64
	Variance    float64
	StdError    float64
	Acceptance  float64

	// Gradient is the gradient of the energy with respect to the parameters.
	Gradient *mat.Dense
}

func (s Statistics) String() string {
	return fmt.Sprintf("E %f (kin %f ext %f int %f) var %g acc %.3f", s.Energy, s.Kinetic, s.External, s.Interaction, s.Variance, s.Acceptance)
}

// Statistics returns the estimates of the accumulated sums.
// The energy gradient is 2(<E dlnpsi> - <E><dlnpsi>), where the brackets over dlnpsi average over the batch window.
func (a *Accumulator) Statistics() (Statistics, error) {
	if a.Steps == 0 {
		return Statistics{}, errors.Errorf("no steps")
	}
	n := float64(a.Steps)
	s := Statistics{
		Steps:       a.Steps,
		Energy:      a.Energy / n,
		Kinetic:     a.Kinetic / n,
		External:    a.External / n,
		Interaction: a.Interaction / n,
		Acceptance:  float64(a.Accepted) / n,
	}
	if math.IsNaN(s.Energy) || math.IsInf(s.Energy, 0) || math.IsNaN(a.EnergySq) || math.IsInf(a.EnergySq, 0) {
		return Statistics{}, errors.Wrap(ErrNonFiniteEnergy, fmt.Sprintf("%f %f", a.Energy, a.EnergySq))
	}
	s.Variance = (a.EnergySq/n - s.Energy*s.Energy) / n
	s.StdError = math.Sqrt(math.Max(s.Variance, 0))

	rows, cols := a.LogDeriv.Dims()
	s.Gradient = mat.NewDense(rows, cols, nil)
	if a.BatchSteps > 0 {
		b := float64(a.BatchSteps)
		s.Gradient.Scale(-s.Energy/b, a.LogDeriv)
		s.Gradient.Apply(func(i, j int, v float64) float64 {
			return 2 * (a.EnergyLogDeriv.At(i, j)/b + v)
		}, s.Gradient)
	}
	return s, nil
}
