package estimator

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Reducer combines the accumulators of all workers into dst.
type Reducer interface {
	Reduce(dst *Accumulator, parts []*Accumulator) error
}

// Sum reduces accumulators in process by summation.
type Sum struct{}

func (Sum) Reduce(dst *Accumulator, parts []*Accumulator) error {
	r, c := dst.LogDeriv.Dims()
	dst.Reset()
	for i, p := range parts {
		if pr, pc := p.LogDeriv.Dims(); pr != r || pc != c {
			return errors.Errorf("%d: %dx%d %dx%d", i, pr, pc, r, c)
		}
		dst.Add(p)
	}
	return nil
}

// Block is the result of blocking resampling.
type Block struct {
	Mean     float64
	StdError float64

	// Levels are the standard errors at block sizes 1, 2, 4, ...
	Levels []float64
}

// minBlocks is the smallest number of blocks a level needs to be trusted.
const minBlocks = 32

// Blocking estimates the standard error of the mean of correlated samples by repeatedly averaging neighbouring pairs.
// The error is the largest one among levels with at least minBlocks blocks, which is where it plateaus for a well sampled chain.
func Blocking(samples []float64) (Block, error) {
	if len(samples) < 2 {
		return Block{}, errors.Errorf("%d samples", len(samples))
	}
	b := Block{Mean: stat.Mean(samples, nil)}
	data := append([]float64(nil), samples...)
	for len(data) >= 2 {
		_, variance := stat.MeanVariance(data, nil)
		e := math.Sqrt(variance / float64(len(data)))
		b.Levels = append(b.Levels, e)
		if len(data) >= minBlocks || len(b.Levels) == 1 {
			b.StdError = math.Max(b.StdError, e)
		}

		half := len(data) / 2
		for i := 0; i < half; i++ {
			data[i] = (data[2*i] + data[2*i+1]) / 2
		}
		data = data[:half]
	}
	if math.IsNaN(b.Mean) || math.IsInf(b.Mean, 0) {
		return Block{}, errors.Wrap(ErrNonFiniteEnergy, fmt.Sprintf("%f", b.Mean))
	}
	return b, nil
}
