package model

import "github.com/san-kum/pimc/internal/system"

// The quantum spring term is the same for every interaction model: a
// harmonic link between cyclically adjacent beads of one ring polymer,
// with stiffness sys.KSpring and minimum-image separations.

// springWhole sums over each (particle, bead, next-bead) link once.
func springWhole(sys *system.System) float64 {
	box2 := sys.Box * sys.Box
	total := 0.0
	for i := 0; i < sys.N; i++ {
		for k := 0; k < sys.P; k++ {
			d2 := system.MinImageSq(sys.At(i, k), sys.At(i, sys.NextBead(k)))
			total += 0.5 * sys.KSpring * d2 * box2
		}
	}
	return total
}

// springSingle sums the two links touching bead k of particle i, with the
// bead placed at r. Both links appear in full, so the before/after
// difference of a trial move is exact.
func springSingle(r system.Vec, i, k int, sys *system.System) float64 {
	box2 := sys.Box * sys.Box
	prev := sys.At(i, sys.PrevBead(k))
	next := sys.At(i, sys.NextBead(k))
	d2 := system.MinImageSq(r, prev) + system.MinImageSq(r, next)
	return 0.5 * sys.KSpring * d2 * box2
}
