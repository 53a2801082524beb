package sampler

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/onsi/gomega"

	"github.com/san-kum/pimc/internal/model"
	"github.com/san-kum/pimc/internal/stats"
	"github.com/san-kum/pimc/internal/system"
)

func testParams() Params {
	return Params{
		Blocks:        2,
		StepsPerBlock: 10,
		Temperature:   1.0,
		RCut:          2.5,
		DrMax:         0.1,
	}
}

// farPair builds the two-particle scenario: p=2, box=10, particles
// separated beyond the cutoff so the classical energy is zero at every
// bead, with one particle's beads displaced against each other.
func farPair(t *testing.T) *system.System {
	t.Helper()
	sys, err := system.New(2, 2, 10.0, 1.0, 0.1)
	if err != nil {
		t.Fatalf("system.New failed: %v", err)
	}
	sys.SetAt(0, 0, system.Vec{0, 0, 0})
	sys.SetAt(0, 1, system.Vec{0.02, 0, 0})
	sys.SetAt(1, 0, system.Vec{0.4, 0, 0})
	sys.SetAt(1, 1, system.Vec{0.4, 0, 0})
	return sys
}

func TestMetropolisMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	// Non-positive delta accepts deterministically.
	for _, delta := range []float64{0, -1e-12, -0.5, -100} {
		for trial := 0; trial < 10; trial++ {
			if !metropolis(delta, rng) {
				t.Fatalf("metropolis(%g) rejected", delta)
			}
		}
	}

	// Huge delta rejects without overflowing.
	for _, delta := range []float64{deltaMax + 1, 1e9, math.MaxFloat64} {
		for trial := 0; trial < 10; trial++ {
			if metropolis(delta, rng) {
				t.Fatalf("metropolis(%g) accepted", delta)
			}
		}
	}
}

func TestMetropolisAcceptanceRate(t *testing.T) {
	g := gomega.NewWithT(t)
	rng := rand.New(rand.NewSource(42))

	delta := 0.7
	accepted := 0
	trials := 200000
	for i := 0; i < trials; i++ {
		if metropolis(delta, rng) {
			accepted++
		}
	}

	rate := float64(accepted) / float64(trials)
	g.Expect(rate).To(gomega.BeNumerically("~", math.Exp(-delta), 5e-3))
}

func TestRunInvalidParams(t *testing.T) {
	sys := farPair(t)
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero blocks", func(p *Params) { p.Blocks = 0 }},
		{"zero steps", func(p *Params) { p.StepsPerBlock = 0 }},
		{"zero temperature", func(p *Params) { p.Temperature = 0 }},
		{"negative rcut", func(p *Params) { p.RCut = -1 }},
		{"zero drmax", func(p *Params) { p.DrMax = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			tt.mutate(&params)
			s := New(sys, model.NewLennardJones(), params, rand.New(rand.NewSource(1)))
			_, err := s.Run(context.Background())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestInitialOverlapFatal(t *testing.T) {
	sys, err := system.New(2, 2, 10.0, 1.0, 0.1)
	if err != nil {
		t.Fatalf("system.New failed: %v", err)
	}
	// Coincident hard cores.
	for k := 0; k < 2; k++ {
		sys.SetAt(0, k, system.Vec{0, 0, 0})
		sys.SetAt(1, k, system.Vec{0.03, 0, 0})
	}

	s := New(sys, model.NewLennardJones(), testParams(), rand.New(rand.NewSource(1)))
	_, err = s.Run(context.Background())
	if !errors.Is(err, ErrInitialOverlap) {
		t.Errorf("error = %v, want ErrInitialOverlap", err)
	}
}

// constModel returns fixed energies everywhere: every trial has delta
// zero, so every move must be accepted and the running totals must not
// drift.
type constModel struct{}

func (constModel) Name() string { return "const" }
func (constModel) WholeClassical(sys *system.System, rcut float64) (float64, bool) {
	return 0, false
}
func (constModel) SingleBeadClassical(r system.Vec, i, k int, sys *system.System, rcut float64) (float64, bool) {
	return 0, false
}
func (constModel) WholeQuantum(sys *system.System) float64 { return 0 }
func (constModel) SingleBeadQuantum(r system.Vec, i, k int, sys *system.System) float64 {
	return 0
}
func (constModel) TailCorrection(density, rcut float64) float64 { return 0 }

func TestZeroDeltaAlwaysAccepts(t *testing.T) {
	g := gomega.NewWithT(t)
	sys := farPair(t)

	s := New(sys, constModel{}, testParams(), rand.New(rand.NewSource(7)))
	result, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	g.Expect(result.Accepted).To(gomega.Equal(result.Trials))
	g.Expect(result.PotCl).To(gomega.BeZero())
	g.Expect(result.PotQu).To(gomega.BeZero())
}

// The move ratio is normalized per particle, not per trial move: with
// every move accepted it equals the bead count. A documented convention
// of the reference output format, not an obviously "correct" rate.
func TestMoveRatioNormalization(t *testing.T) {
	g := gomega.NewWithT(t)
	sys := farPair(t)

	s := New(sys, constModel{}, testParams(), rand.New(rand.NewSource(7)))
	result, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	for _, b := range result.Blocks {
		g.Expect(b.MoveRatio).To(gomega.BeNumerically("~", float64(sys.P), 1e-12))
	}
}

// overlapOnTrial flags a hard-core overlap on every second single-bead
// classical evaluation, i.e. on every trial position. The quantum term
// must then never be evaluated at the trial position.
type overlapOnTrial struct {
	clCalls int
	quCalls int
}

func (m *overlapOnTrial) Name() string { return "overlap-on-trial" }
func (m *overlapOnTrial) WholeClassical(sys *system.System, rcut float64) (float64, bool) {
	return 0, false
}
func (m *overlapOnTrial) SingleBeadClassical(r system.Vec, i, k int, sys *system.System, rcut float64) (float64, bool) {
	m.clCalls++
	return 0, m.clCalls%2 == 0
}
func (m *overlapOnTrial) WholeQuantum(sys *system.System) float64 { return 0 }
func (m *overlapOnTrial) SingleBeadQuantum(r system.Vec, i, k int, sys *system.System) float64 {
	m.quCalls++
	return 0
}
func (m *overlapOnTrial) TailCorrection(density, rcut float64) float64 { return 0 }

func TestOverlapShortCircuit(t *testing.T) {
	g := gomega.NewWithT(t)
	sys := farPair(t)

	m := &overlapOnTrial{}
	params := testParams()
	params.Blocks = 1
	params.StepsPerBlock = 5

	s := New(sys, m, params, rand.New(rand.NewSource(7)))
	result, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	trials := int(result.Trials)
	g.Expect(result.Accepted).To(gomega.BeZero())
	// Two classical evaluations per trial (current + trial position)...
	g.Expect(m.clCalls).To(gomega.Equal(2 * trials))
	// ...but only one quantum evaluation: the trial side is skipped.
	g.Expect(m.quCalls).To(gomega.Equal(trials))
	g.Expect(result.PotCl).To(gomega.BeZero())
}

// corruptModel overlaps on the current position of the very first
// evaluation, which a correct sampler must treat as state corruption.
type corruptModel struct{}

func (corruptModel) Name() string { return "corrupt" }
func (corruptModel) WholeClassical(sys *system.System, rcut float64) (float64, bool) {
	return 0, false
}
func (corruptModel) SingleBeadClassical(r system.Vec, i, k int, sys *system.System, rcut float64) (float64, bool) {
	return 0, true
}
func (corruptModel) WholeQuantum(sys *system.System) float64 { return 0 }
func (corruptModel) SingleBeadQuantum(r system.Vec, i, k int, sys *system.System) float64 {
	return 0
}
func (corruptModel) TailCorrection(density, rcut float64) float64 { return 0 }

func TestCorruptionFatal(t *testing.T) {
	sys := farPair(t)
	s := New(sys, corruptModel{}, testParams(), rand.New(rand.NewSource(1)))

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("error = %v, want ErrCorrupt", err)
	}

	var se *SampleError
	if !errors.As(err, &se) {
		t.Fatal("expected a SampleError wrapper")
	}
	if se.Block != 1 || se.Step != 1 {
		t.Errorf("SampleError at block %d step %d, want 1/1", se.Block, se.Step)
	}
}

// driftModel reports single-bead energies inconsistent with the whole
// sum: the running total walks away while the recomputation stays at
// zero, which must trip the final consistency check.
type driftModel struct {
	calls int
}

func (m *driftModel) Name() string { return "drift" }
func (m *driftModel) WholeClassical(sys *system.System, rcut float64) (float64, bool) {
	return 0, false
}
func (m *driftModel) SingleBeadClassical(r system.Vec, i, k int, sys *system.System, rcut float64) (float64, bool) {
	m.calls++
	if m.calls%2 == 0 {
		return -1, false // trial side looks downhill every time
	}
	return 0, false
}
func (m *driftModel) WholeQuantum(sys *system.System) float64 { return 0 }
func (m *driftModel) SingleBeadQuantum(r system.Vec, i, k int, sys *system.System) float64 {
	return 0
}
func (m *driftModel) TailCorrection(density, rcut float64) float64 { return 0 }

func TestFinalConsistencyViolation(t *testing.T) {
	g := gomega.NewWithT(t)
	sys := farPair(t)

	s := New(sys, &driftModel{}, testParams(), rand.New(rand.NewSource(1)))
	result, err := s.Run(context.Background())
	g.Expect(errors.Is(err, ErrConsistency)).To(gomega.BeTrue())
	g.Expect(result.PotCl).To(gomega.BeNumerically("<", 0))
	g.Expect(result.RecomputedCl).To(gomega.BeZero())
}

func TestEnergyConsistencyLJ(t *testing.T) {
	g := gomega.NewWithT(t)

	sys, err := system.New(8, 4, 5.0, 1.0, 0.1)
	if err != nil {
		t.Fatalf("system.New failed: %v", err)
	}
	fillLattice(sys)

	params := testParams()
	params.Blocks = 3
	params.StepsPerBlock = 20

	s := New(sys, model.NewLennardJones(), params, rand.New(rand.NewSource(99)))
	result, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	// The run only returns nil when the recomputation agrees; check the
	// reported numbers anyway.
	g.Expect(result.PotCl).To(gomega.BeNumerically("~", result.RecomputedCl, 1e-6*math.Max(1, math.Abs(result.RecomputedCl))))
	g.Expect(result.PotQu).To(gomega.BeNumerically("~", result.RecomputedQu, 1e-6*math.Max(1, math.Abs(result.RecomputedQu))))
	g.Expect(result.Accepted).To(gomega.BeNumerically(">", 0))
}

func TestFarPairScenario(t *testing.T) {
	g := gomega.NewWithT(t)
	sys := farPair(t)
	lj := model.NewLennardJones()

	// No classical interaction at any bead, nonzero springs from the
	// displaced beads of particle 0.
	potCl, overlap := lj.WholeClassical(sys, 2.5)
	g.Expect(overlap).To(gomega.BeFalse())
	g.Expect(potCl).To(gomega.BeZero())
	g.Expect(lj.WholeQuantum(sys)).To(gomega.BeNumerically(">", 0))

	params := testParams()
	params.Blocks = 4
	params.StepsPerBlock = 50

	s := New(sys, lj, params, rand.New(rand.NewSource(2026)))
	result, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	// Acceptance settles to a healthy nonzero rate.
	g.Expect(result.Summary.MoveRatio.Mean).To(gomega.BeNumerically(">", 0.1))
}

func TestLowTemperatureFreezeOut(t *testing.T) {
	g := gomega.NewWithT(t)

	// A pair pinned at the LJ minimum with coincident beads: every
	// displacement is uphill, and at this temperature uphill means
	// rejected.
	sys, err := system.New(2, 4, 10.0, 1e-9, 0.1)
	if err != nil {
		t.Fatalf("system.New failed: %v", err)
	}
	rmin := math.Pow(2.0, 1.0/6.0)
	for k := 0; k < 4; k++ {
		sys.SetAt(0, k, system.Vec{0, 0, 0})
		sys.SetAt(1, k, system.Vec{rmin / 10.0, 0, 0})
	}

	params := testParams()
	params.Temperature = 1e-9
	params.Blocks = 1
	params.StepsPerBlock = 50

	s := New(sys, model.NewLennardJones(), params, rand.New(rand.NewSource(5)))
	result, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	ratio := float64(result.Accepted) / float64(result.Trials)
	g.Expect(ratio).To(gomega.BeNumerically("<", 0.01))
}

func TestReproducibility(t *testing.T) {
	g := gomega.NewWithT(t)

	run := func() *Result {
		sys, err := system.New(8, 4, 5.0, 1.0, 0.1)
		if err != nil {
			t.Fatalf("system.New failed: %v", err)
		}
		fillLattice(sys)

		params := testParams()
		params.Blocks = 3
		params.StepsPerBlock = 20

		s := New(sys, model.NewLennardJones(), params, rand.New(rand.NewSource(1234)))
		result, err := s.Run(context.Background())
		g.Expect(err).NotTo(gomega.HaveOccurred())
		return result
	}

	a, b := run(), run()
	g.Expect(a.Accepted).To(gomega.Equal(b.Accepted))
	g.Expect(a.PotCl).To(gomega.Equal(b.PotCl))
	g.Expect(a.PotQu).To(gomega.Equal(b.PotQu))
	g.Expect(a.Blocks).To(gomega.Equal(b.Blocks))
}

func TestContextCancellation(t *testing.T) {
	sys := farPair(t)
	s := New(sys, model.NewLennardJones(), testParams(), rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// checkpointRecorder records checkpoint calls.
type checkpointRecorder struct {
	blocks []int
	final  int
}

func (c *checkpointRecorder) Checkpoint(block int, sys *system.System) error {
	c.blocks = append(c.blocks, block)
	return nil
}

func (c *checkpointRecorder) Final(sys *system.System) error {
	c.final++
	return nil
}

func TestCheckpointsAtBlockBoundaries(t *testing.T) {
	g := gomega.NewWithT(t)
	sys := farPair(t)

	rec := &checkpointRecorder{}
	params := testParams()
	params.Blocks = 3

	s := New(sys, model.NewLennardJones(), params, rand.New(rand.NewSource(1)))
	s.SetCheckpointer(rec)

	_, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(rec.blocks).To(gomega.Equal([]int{1, 2, 3}))
	g.Expect(rec.final).To(gomega.Equal(1))
}

func TestOnBlockObserver(t *testing.T) {
	g := gomega.NewWithT(t)
	sys := farPair(t)

	var seen []stats.BlockAverage
	s := New(sys, model.NewLennardJones(), testParams(), rand.New(rand.NewSource(1)))
	s.OnBlock(func(b stats.BlockAverage) { seen = append(seen, b) })

	result, err := s.Run(context.Background())
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(seen).To(gomega.HaveLen(len(result.Blocks)))
	g.Expect(seen[0].Block).To(gomega.Equal(1))
}

// fillLattice places particles on a cubic lattice with all beads
// coincident, a valid overlap-free start.
func fillLattice(sys *system.System) {
	cells := 1
	for cells*cells*cells < sys.N {
		cells++
	}
	spacing := 1.0 / float64(cells)
	for i := 0; i < sys.N; i++ {
		r := system.Vec{
			system.Wrap((float64(i%cells) + 0.5) * spacing),
			system.Wrap((float64((i/cells)%cells) + 0.5) * spacing),
			system.Wrap((float64(i/(cells*cells)) + 0.5) * spacing),
		}
		for k := 0; k < sys.P; k++ {
			sys.SetAt(i, k, r)
		}
	}
}
