// Package sampler implements the path-integral Monte Carlo core: the
// per-bead Metropolis trial-move loop and the incremental energy
// bookkeeping that keeps the running potential totals exact across
// millions of moves.
package sampler

import (
	"context"
	"math"
	"math/rand"

	"github.com/san-kum/pimc/internal/model"
	"github.com/san-kum/pimc/internal/stats"
	"github.com/san-kum/pimc/internal/system"
)

const (
	// deltaMax short-circuits the acceptance test: exp(-75) is far below
	// the resolution of a uniform draw, so larger deltas reject outright
	// without risking overflow in Exp.
	deltaMax = 75.0

	// driftTol is the relative tolerance for the end-of-run comparison
	// of running totals against a full recomputation.
	driftTol = 1e-6
)

// Params are the run parameters the sampler needs. Bead count, box and
// temperature-derived scalars live in the System.
type Params struct {
	Blocks        int
	StepsPerBlock int
	Temperature   float64
	RCut          float64
	DrMax         float64 // maximum trial displacement, physical units
}

func (p Params) validate() error {
	switch {
	case p.Blocks < 1, p.StepsPerBlock < 1:
		return ErrInvalidConfig
	case p.Temperature <= 0, p.RCut <= 0, p.DrMax <= 0:
		return ErrInvalidConfig
	}
	return nil
}

// Checkpointer persists the full configuration at block boundaries and
// at the end of the run. Checkpointing never runs concurrently with
// trial moves.
type Checkpointer interface {
	Checkpoint(block int, sys *system.System) error
	Final(sys *system.System) error
}

// Result reports a completed run: per-block averages, run summary, and
// the final energy bookkeeping state.
type Result struct {
	Blocks  []stats.BlockAverage
	Summary stats.RunSummary

	Trials   int64
	Accepted int64

	// Final running totals and their from-scratch recomputation.
	PotCl, PotQu               float64
	RecomputedCl, RecomputedQu float64

	// Final derived observables.
	ECut, EFull float64
}

// Sampler drives the block/step/particle/bead trial-move loop over one
// exclusively owned System. Not safe for concurrent use.
type Sampler struct {
	sys     *system.System
	model   model.Model
	params  Params
	rng     *rand.Rand
	acc     *stats.Accumulator
	check   Checkpointer
	onBlock func(stats.BlockAverage)
}

// New creates a sampler over sys. The random stream must be seeded once
// for the whole run; reproducibility of a run is reproducibility of this
// stream.
func New(sys *system.System, m model.Model, params Params, rng *rand.Rand) *Sampler {
	return &Sampler{
		sys:    sys,
		model:  m,
		params: params,
		rng:    rng,
		acc:    stats.NewAccumulator(),
	}
}

// System exposes the sampled configuration for reporting.
func (s *Sampler) System() *system.System { return s.sys }

// SetCheckpointer installs the configuration writer used at block
// boundaries. Without one, the run keeps no checkpoints.
func (s *Sampler) SetCheckpointer(c Checkpointer) { s.check = c }

// OnBlock installs a callback invoked after each closed block, used by
// the live view. The callback runs on the sampling goroutine.
func (s *Sampler) OnBlock(fn func(stats.BlockAverage)) { s.onBlock = fn }

// Run executes the full run. The context is checked at block boundaries
// only; the inner loops are pure computation.
func (s *Sampler) Run(ctx context.Context) (*Result, error) {
	if err := s.params.validate(); err != nil {
		return nil, err
	}

	potCl, overlap := s.model.WholeClassical(s.sys, s.params.RCut)
	if overlap {
		return nil, ErrInitialOverlap
	}
	s.sys.PotCl = potCl
	s.sys.PotQu = s.model.WholeQuantum(s.sys)

	s.acc.Reset()
	result := &Result{}

	for block := 1; block <= s.params.Blocks; block++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		for step := 1; step <= s.params.StepsPerBlock; step++ {
			accepted, err := s.sweep()
			if err != nil {
				if se, ok := err.(*SampleError); ok {
					se.Block = block
					se.Step = step
				}
				return result, err
			}
			result.Trials += int64(s.sys.N * s.sys.P)
			result.Accepted += int64(accepted)

			eCut, eFull := s.calculate()
			s.acc.Add(stats.Step{
				// Per-particle normalization, not per trial move: one
				// conceptual sweep unit per particle regardless of P.
				MoveRatio: float64(accepted) / float64(s.sys.N),
				ECut:      eCut,
				EFull:     eFull,
			})
		}

		avg := s.acc.EndBlock()
		result.Blocks = append(result.Blocks, avg)

		if s.check != nil {
			if err := s.check.Checkpoint(block, s.sys); err != nil {
				return result, err
			}
		}
		if s.onBlock != nil {
			s.onBlock(avg)
		}
	}

	result.Summary = s.acc.Summary()
	result.PotCl = s.sys.PotCl
	result.PotQu = s.sys.PotQu
	result.ECut, result.EFull = s.calculate()

	return result, s.finish(result)
}

// sweep performs one trial move per (particle, bead) and returns the
// number of accepted moves.
func (s *Sampler) sweep() (int, error) {
	drScaled := s.params.DrMax / s.sys.Box
	accepted := 0

	for i := 0; i < s.sys.N; i++ {
		for k := 0; k < s.sys.P; k++ {
			rik := s.sys.At(i, k)

			oldCl, overlap := s.model.SingleBeadClassical(rik, i, k, s.sys, s.params.RCut)
			if overlap {
				return accepted, &SampleError{Particle: i, Bead: k, Wrapped: ErrCorrupt}
			}
			oldQu := s.model.SingleBeadQuantum(rik, i, k, s.sys)

			var trial system.Vec
			for axis := 0; axis < 3; axis++ {
				trial[axis] = system.Wrap(rik[axis] + (2*s.rng.Float64()-1)*drScaled)
			}

			newCl, overlap := s.model.SingleBeadClassical(trial, i, k, s.sys, s.params.RCut)
			if overlap {
				// Overlap is infinite energy: reject without touching
				// the quantum term.
				continue
			}
			newQu := s.model.SingleBeadQuantum(trial, i, k, s.sys)

			delta := (newCl + newQu - oldCl - oldQu) / s.params.Temperature
			if !metropolis(delta, s.rng) {
				continue
			}

			s.sys.SetAt(i, k, trial)
			s.sys.PotCl += newCl - oldCl
			s.sys.PotQu += newQu - oldQu
			accepted++
		}
	}
	return accepted, nil
}

// metropolis decides a trial move from its scaled energy change.
// Non-positive deltas accept deterministically.
func metropolis(delta float64, rng *rand.Rand) bool {
	if delta <= 0 {
		return true
	}
	if delta > deltaMax {
		return false
	}
	return rng.Float64() < math.Exp(-delta)
}

// calculate derives the reported energies per particle from the running
// totals. The primitive estimator subtracts the spring term from the
// classical kinetic part.
func (s *Sampler) calculate() (eCut, eFull float64) {
	kin := 1.5 * float64(s.sys.N) * float64(s.sys.P) * s.params.Temperature
	eCut = (kin + s.sys.PotCl - s.sys.PotQu) / float64(s.sys.N)
	eFull = eCut + s.model.TailCorrection(s.sys.Density, s.params.RCut)
	return eCut, eFull
}

// finish recomputes both potentials from scratch and compares them to
// the running totals, writing the final configuration first so it
// survives for diagnosis if the comparison fails.
func (s *Sampler) finish(result *Result) error {
	recl, overlap := s.model.WholeClassical(s.sys, s.params.RCut)
	if overlap {
		return ErrCorrupt
	}
	requ := s.model.WholeQuantum(s.sys)
	result.RecomputedCl = recl
	result.RecomputedQu = requ

	if s.check != nil {
		if err := s.check.Final(s.sys); err != nil {
			return err
		}
	}

	if relDrift(recl, s.sys.PotCl) > driftTol || relDrift(requ, s.sys.PotQu) > driftTol {
		return ErrConsistency
	}
	return nil
}

func relDrift(exact, running float64) float64 {
	return math.Abs(exact-running) / math.Max(1.0, math.Abs(exact))
}
