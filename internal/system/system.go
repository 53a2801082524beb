package system

import (
	"fmt"
	"math"
)

// Bead count limits for the ring polymer. Two beads is the smallest ring
// with a meaningful spring term; the upper bound matches the two-digit
// bead index used in configuration file names.
const (
	MinBeads = 2
	MaxBeads = 99
)

// Vec is a single bead position. Coordinates are box-scaled: each
// component stays in [-0.5, 0.5) for the lifetime of the run.
type Vec [3]float64

// System owns the ring-polymer configuration for one run: all bead
// positions, the periodic box, and the running potential totals the
// sampler maintains incrementally.
type System struct {
	N   int     // physical particles
	P   int     // beads per ring polymer
	Box float64 // cubic box edge length, physical units

	Density float64 // N / Box^3
	KSpring float64 // P * (T/lambda)^2

	// Running totals, kept equal to a full recomputation over the
	// current positions. Only the sampler's accept step mutates them.
	PotCl float64
	PotQu float64

	positions []float64 // slice-major: ((k*N + i)*3 + axis)
}

// New validates the run geometry and allocates the position array.
// Positions start at the origin; callers load real coordinates with SetAt.
func New(n, p int, box, temperature, lambda float64) (*System, error) {
	if n < 1 {
		return nil, fmt.Errorf("particle count must be positive, got %d", n)
	}
	if p < MinBeads || p > MaxBeads {
		return nil, fmt.Errorf("bead count must be in [%d, %d], got %d", MinBeads, MaxBeads, p)
	}
	if box <= 0 {
		return nil, fmt.Errorf("box length must be positive, got %f", box)
	}
	if temperature <= 0 {
		return nil, fmt.Errorf("temperature must be positive, got %f", temperature)
	}
	if lambda <= 0 {
		return nil, fmt.Errorf("de Boer length must be positive, got %f", lambda)
	}

	return &System{
		N:         n,
		P:         p,
		Box:       box,
		Density:   float64(n) / (box * box * box),
		KSpring:   float64(p) * (temperature / lambda) * (temperature / lambda),
		positions: make([]float64, 3*n*p),
	}, nil
}

// At returns the position of bead k of particle i.
func (s *System) At(i, k int) Vec {
	base := (k*s.N + i) * 3
	return Vec{s.positions[base], s.positions[base+1], s.positions[base+2]}
}

// SetAt stores the position of bead k of particle i. The caller is
// responsible for wrapping coordinates into [-0.5, 0.5) first.
func (s *System) SetAt(i, k int, r Vec) {
	base := (k*s.N + i) * 3
	s.positions[base] = r[0]
	s.positions[base+1] = r[1]
	s.positions[base+2] = r[2]
}

// PrevBead and NextBead give the cyclic neighbor indices along the ring.
func (s *System) PrevBead(k int) int {
	if k == 0 {
		return s.P - 1
	}
	return k - 1
}

func (s *System) NextBead(k int) int {
	if k == s.P-1 {
		return 0
	}
	return k + 1
}

// Wrap reduces a box-scaled coordinate into [-0.5, 0.5) by subtracting
// the nearest integer. Idempotent: values already in range pass through.
func Wrap(x float64) float64 {
	return x - math.Floor(x+0.5)
}

// WrapVec applies Wrap componentwise.
func WrapVec(r Vec) Vec {
	return Vec{Wrap(r[0]), Wrap(r[1]), Wrap(r[2])}
}

// MinImageSq returns the squared minimum-image separation of two
// box-scaled positions, still in box-scaled units.
func MinImageSq(a, b Vec) float64 {
	sum := 0.0
	for axis := 0; axis < 3; axis++ {
		d := Wrap(a[axis] - b[axis])
		sum += d * d
	}
	return sum
}
