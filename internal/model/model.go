// Package model defines the interaction-model contract consumed by the
// Monte Carlo sampler, plus the built-in models.
//
// A model evaluates the classical pairwise potential between particles
// sharing a time slice and the harmonic spring potential linking adjacent
// beads of one ring polymer. Hard-core overlap is reported as a flag next
// to the energy, never as an error: the sampler turns it into an
// immediate rejection (infinite energy) during a trial move and into a
// fatal condition only at the two integrity checkpoints.
//
// The single-bead evaluators count every pair touching the moved bead
// exactly once, so their before/after difference equals the change in the
// whole-system sum. Summed over all beads they count each pair twice;
// whole-system evaluators count each pair once.
package model

import (
	"fmt"

	"github.com/san-kum/pimc/internal/system"
)

// Model evaluates potential energies for a ring-polymer configuration.
// Implementations must be pure functions of the arguments: the sampler
// relies on re-evaluation at an unchanged position returning identical
// energies.
type Model interface {
	Name() string

	// WholeClassical sums the pairwise potential over all distinct
	// same-slice particle pairs at every bead index. The flag reports a
	// hard-core overlap anywhere in the configuration.
	WholeClassical(sys *system.System, rcut float64) (float64, bool)

	// SingleBeadClassical sums the interaction of one bead, placed at r,
	// with every other particle's bead at the same slice.
	SingleBeadClassical(r system.Vec, i, k int, sys *system.System, rcut float64) (float64, bool)

	// WholeQuantum sums the spring energy over every cyclic
	// adjacent-bead link, each link counted once.
	WholeQuantum(sys *system.System) float64

	// SingleBeadQuantum sums the spring energy of one bead, placed at r,
	// to its two cyclic neighbors along the same ring polymer.
	SingleBeadQuantum(r system.Vec, i, k int, sys *system.System) float64

	// TailCorrection estimates the per-particle potential beyond the
	// cutoff. Reporting only; never part of an acceptance decision.
	TailCorrection(density, rcut float64) float64
}

var builders = map[string]func() Model{
	"lj":    func() Model { return NewLennardJones() },
	"ideal": func() Model { return NewIdeal() },
}

// New returns the named interaction model.
func New(name string) (Model, error) {
	fn, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown interaction model: %s", name)
	}
	return fn(), nil
}

// List returns the registered model names.
func List() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	return names
}
