package exactdiag

import (
	"fmt"
	"math"
	"testing"
)

func TestLevels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		omega float64
	}{
		{omega: 1},
		{omega: 0.5},
		{omega: 2},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%f", test.omega), func(t *testing.T) {
			t.Parallel()
			potential := func(x float64) float64 { return 0.5 * test.omega * test.omega * x * x }
			levels, err := Levels(potential, Grid{Points: 401, Length: 10})
			if err != nil {
				t.Fatalf("%+v", err)
			}
			for n := range 5 {
				want := test.omega * (float64(n) + 0.5)
				if math.Abs(levels[n]-want) > 2e-2 {
					t.Fatalf("%d %f %f", n, levels[n], want)
				}
			}
		})
	}
}

func TestDoubleWell(t *testing.T) {
	t.Parallel()
	const b = 8
	potential := func(x float64) float64 {
		d := math.Abs(x) - b/2
		return 0.5 * d * d
	}
	levels, err := Levels(potential, Grid{Points: 501, Length: 10})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// Deep wells are two decoupled harmonic traps.
	for n, want := range []float64{0.5, 0.5, 1.5, 1.5} {
		if math.Abs(levels[n]-want) > 2e-2 {
			t.Fatalf("%d %v", n, levels[:4])
		}
	}
}

func TestHarmonicOscillator(t *testing.T) {
	t.Parallel()
	tests := []struct {
		omega     float64
		particles int
		dims      int
		energy    float64
	}{
		{omega: 1, particles: 1, dims: 1, energy: 0.5},
		{omega: 1, particles: 2, dims: 2, energy: 2},
		{omega: 1, particles: 6, dims: 2, energy: 10},
		{omega: 0.5, particles: 6, dims: 2, energy: 5},
		{omega: 1, particles: 3, dims: 2, energy: 4},
		{omega: 1, particles: 2, dims: 3, energy: 3},
		{omega: 1, particles: 8, dims: 3, energy: 18},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%f %d %d", test.omega, test.particles, test.dims), func(t *testing.T) {
			t.Parallel()
			if e := HarmonicOscillator(test.omega, test.particles, test.dims); math.Abs(e-test.energy) > 1e-12 {
				t.Fatalf("%f %f", e, test.energy)
			}
		})
	}
}
