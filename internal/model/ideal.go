package model

import "github.com/san-kum/pimc/internal/system"

// Ideal has no classical interaction at all: free ring polymers in a
// periodic box. Useful as a baseline and for exercising the quantum
// spring term in isolation.
type Ideal struct{}

func NewIdeal() *Ideal { return &Ideal{} }

func (m *Ideal) Name() string { return "ideal" }

func (m *Ideal) WholeClassical(sys *system.System, rcut float64) (float64, bool) {
	return 0, false
}

func (m *Ideal) SingleBeadClassical(r system.Vec, i, k int, sys *system.System, rcut float64) (float64, bool) {
	return 0, false
}

func (m *Ideal) WholeQuantum(sys *system.System) float64 {
	return springWhole(sys)
}

func (m *Ideal) SingleBeadQuantum(r system.Vec, i, k int, sys *system.System) float64 {
	return springSingle(r, i, k, sys)
}

func (m *Ideal) TailCorrection(density, rcut float64) float64 { return 0 }
