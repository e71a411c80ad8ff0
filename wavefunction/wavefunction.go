// Package wavefunction implements trial wavefunctions as products of components with incremental updates.
//
// A component caches whatever it needs to evaluate its ratio and log-derivatives, and keeps exactly one committed and one working snapshot.
// Propose moves the working snapshot to a configuration differing in one coordinate, Commit adopts it, and Rollback restores the committed one.
package wavefunction

import (
	"github.com/pkg/errors"
)

// ErrInvalidCoordinate is returned when a proposal names a coordinate outside the configuration.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Component is one multiplicative factor of a trial wavefunction.
//
// Derivative queries read the working snapshot, which equals the committed snapshot except between Propose and Commit or Rollback.
type Component interface {
	// NumParameters is the number of variational parameters owned by the component.
	NumParameters() int

	// Initialize seeds all cached state from a full configuration.
	Initialize(x []float64)
	// Propose updates the working state to x, which differs from the committed configuration only at coordinate k.
	// It returns |psi_new|^2 / |psi_old|^2 of this component.
	Propose(x []float64, k int) (float64, error)
	// Commit adopts the working state. It is a no-op without a pending proposal.
	Commit()
	// Rollback restores the committed state. It is a no-op without a pending proposal.
	Rollback()

	// SetParameters binds the component's row of the parameter matrix.
	// The values take effect on the next Initialize.
	SetParameters(theta []float64)

	// Gradient returns d ln(psi) / dx_k.
	Gradient(k int) float64
	// Laplacian returns the sum over k of d^2 ln(psi) / dx_k^2.
	Laplacian() float64
	// ParameterGradient writes d ln(psi) / d theta into dst, zeroing slots the component does not own.
	ParameterGradient(dst []float64)
}

func checkCoordinate(k, n int) error {
	if k < 0 || k >= n {
		return errors.Wrapf(ErrInvalidCoordinate, "%d not in [0, %d)", k, n)
	}
	return nil
}
