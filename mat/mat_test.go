package mat

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestParameters(t *testing.T) {
	t.Parallel()
	tests := []*mat.Dense{
		mat.NewDense(1, 1, []float64{0.5}),
		mat.NewDense(3, 1, []float64{0.49, 0, 0.3}),
		mat.NewDense(2, 3, []float64{1.0 / 3, -2e-17, math.Pi, 0, 1e300, -7}),
	}
	for i, test := range tests {
		dir, err := os.MkdirTemp("", "")
		if err != nil {
			t.Fatalf("%+v", err)
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "params.csv")
		if err := WriteParameters(path, test); err != nil {
			t.Fatalf("%+v", err)
		}
		m, err := ReadParameters(path)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !mat.Equal(m, test) {
			t.Fatalf("%d %v %v", i, mat.Formatted(m), mat.Formatted(test))
		}
	}
}

func TestReadParametersInvalid(t *testing.T) {
	t.Parallel()
	tests := []string{
		"",
		"1,2\n3\n",
		"1,x\n",
	}
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	for i, test := range tests {
		path := filepath.Join(dir, "params.csv")
		if err := os.WriteFile(path, []byte(test), 0644); err != nil {
			t.Fatalf("%+v", err)
		}
		if _, err := ReadParameters(path); err == nil {
			t.Fatalf("%d %q", i, test)
		}
	}
}

func TestDisk(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "run.db")

	ctx := context.Background()
	d, err := OpenDisk(ctx, path)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if it, err := d.LastIteration(ctx); err != nil || it != -1 {
		t.Fatalf("%d %+v", it, err)
	}

	params := []*mat.Dense{
		mat.NewDense(2, 1, []float64{0.3, 0.1}),
		mat.NewDense(2, 1, []float64{0.4, 0.2}),
		mat.NewDense(2, 1, []float64{0.5, 0.3}),
	}
	energies := []float64{3.2, 3.1, 3.0}
	for i, p := range params {
		if err := d.WriteIteration(ctx, i, p, map[string]float64{"energy": energies[i], "variance": 0.01}); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	// Rewriting an iteration replaces it.
	if err := d.WriteIteration(ctx, 1, params[1], map[string]float64{"energy": energies[1]}); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := d.WriteIteration(ctx, 3, params[2], map[string]float64{"energy": math.NaN()}); err == nil {
		t.Fatalf("expected error")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("%+v", err)
	}

	// Reopening keeps the stored run.
	d, err = OpenDisk(ctx, path)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer d.Close()
	it, err := d.LastIteration(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if it != 2 {
		t.Fatalf("%d", it)
	}
	p, err := d.Parameters(ctx, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !mat.Equal(p, params[1]) {
		t.Fatalf("%v", mat.Formatted(p))
	}
	if _, err := d.Parameters(ctx, 7); err == nil {
		t.Fatalf("expected error")
	}
	es, err := d.Scalars(ctx, "energy")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(es, energies) {
		t.Fatalf("%v", es)
	}

	if err := d.Reset(ctx); err != nil {
		t.Fatalf("%+v", err)
	}
	if it, err := d.LastIteration(ctx); err != nil || it != -1 {
		t.Fatalf("%d %+v", it, err)
	}
	if es, err := d.Scalars(ctx, "energy"); err != nil || len(es) != 0 {
		t.Fatalf("%v %+v", es, err)
	}
	if err := d.WriteIteration(ctx, 0, params[0], map[string]float64{"energy": energies[0]}); err != nil {
		t.Fatalf("%+v", err)
	}
	if it, err := d.LastIteration(ctx); err != nil || it != 0 {
		t.Fatalf("%d %+v", it, err)
	}
}
