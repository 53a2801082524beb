package model

import (
	"math"

	"github.com/san-kum/pimc/internal/system"
)

// Reduced Lennard-Jones units: sigma = 1, epsilon = 1. Distances below
// the overlap threshold (sr2 above srOverlap, r below ~0.75 sigma) are
// treated as hard-core violations rather than evaluated.
const srOverlap = 1.77

// LennardJones is the cut (not shifted) 12-6 potential, evaluated with
// the minimum-image convention among particles sharing a time slice.
type LennardJones struct{}

func NewLennardJones() *LennardJones { return &LennardJones{} }

func (lj *LennardJones) Name() string { return "lj" }

func (lj *LennardJones) WholeClassical(sys *system.System, rcut float64) (float64, bool) {
	box2 := sys.Box * sys.Box
	rcut2 := rcut * rcut
	total := 0.0
	for k := 0; k < sys.P; k++ {
		for i := 0; i < sys.N-1; i++ {
			ri := sys.At(i, k)
			for j := i + 1; j < sys.N; j++ {
				pot, ovr := pairLJ(ri, sys.At(j, k), box2, rcut2)
				if ovr {
					return 0, true
				}
				total += pot
			}
		}
	}
	return total, false
}

func (lj *LennardJones) SingleBeadClassical(r system.Vec, i, k int, sys *system.System, rcut float64) (float64, bool) {
	box2 := sys.Box * sys.Box
	rcut2 := rcut * rcut
	total := 0.0
	for j := 0; j < sys.N; j++ {
		if j == i {
			continue
		}
		pot, ovr := pairLJ(r, sys.At(j, k), box2, rcut2)
		if ovr {
			return 0, true
		}
		total += pot
	}
	return total, false
}

func (lj *LennardJones) WholeQuantum(sys *system.System) float64 {
	return springWhole(sys)
}

func (lj *LennardJones) SingleBeadQuantum(r system.Vec, i, k int, sys *system.System) float64 {
	return springSingle(r, i, k, sys)
}

// TailCorrection is the standard LJ long-range correction per particle,
// assuming g(r) = 1 beyond the cutoff.
func (lj *LennardJones) TailCorrection(density, rcut float64) float64 {
	sr3 := 1.0 / (rcut * rcut * rcut)
	return (8.0 / 3.0) * math.Pi * density * (sr3*sr3*sr3/3.0 - sr3)
}

// pairLJ evaluates one pair from box-scaled positions. box2 converts the
// squared separation to physical units before comparing against the
// cutoff and the hard core.
func pairLJ(a, b system.Vec, box2, rcut2 float64) (float64, bool) {
	r2 := system.MinImageSq(a, b) * box2
	if r2 >= rcut2 {
		return 0, false
	}
	sr2 := 1.0 / r2
	if sr2 > srOverlap {
		return 0, true
	}
	sr6 := sr2 * sr2 * sr2
	return 4.0 * sr6 * (sr6 - 1.0), false
}
