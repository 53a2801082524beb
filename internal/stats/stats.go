// Package stats accumulates per-step observables into block and run
// averages. The sampler treats it as a write-only sink.
package stats

import "math"

// Step holds the observables the sampler emits once per sweep: the move
// acceptance ratio (normalized per particle) and the energy per particle
// with and without the long-range correction.
type Step struct {
	MoveRatio float64
	ECut      float64
	EFull     float64
}

// BlockAverage is the mean of each observable over one block.
type BlockAverage struct {
	Block     int
	Steps     int
	MoveRatio float64
	ECut      float64
	EFull     float64
}

// Value is a run-level mean with its standard error across blocks.
type Value struct {
	Mean float64
	Err  float64
}

// RunSummary aggregates the block averages of a whole run.
type RunSummary struct {
	Blocks    int
	MoveRatio Value
	ECut      Value
	EFull     Value
}

// Accumulator collects step observables for the current block and block
// averages for the run. Not safe for concurrent use; the sampler is the
// only writer.
type Accumulator struct {
	blockSum   Step
	blockSteps int
	blocksDone int
	blocks     []BlockAverage
}

func NewAccumulator() *Accumulator {
	return &Accumulator{blocks: make([]BlockAverage, 0)}
}

// Add records one step's observables into the current block.
func (a *Accumulator) Add(s Step) {
	a.blockSum.MoveRatio += s.MoveRatio
	a.blockSum.ECut += s.ECut
	a.blockSum.EFull += s.EFull
	a.blockSteps++
}

// EndBlock closes the current block and returns its averages. A block
// with no steps averages to zero.
func (a *Accumulator) EndBlock() BlockAverage {
	a.blocksDone++
	avg := BlockAverage{Block: a.blocksDone, Steps: a.blockSteps}
	if a.blockSteps > 0 {
		n := float64(a.blockSteps)
		avg.MoveRatio = a.blockSum.MoveRatio / n
		avg.ECut = a.blockSum.ECut / n
		avg.EFull = a.blockSum.EFull / n
	}
	a.blocks = append(a.blocks, avg)
	a.blockSum = Step{}
	a.blockSteps = 0
	return avg
}

// Blocks returns the closed block averages so far.
func (a *Accumulator) Blocks() []BlockAverage {
	return a.blocks
}

// Summary computes run means and standard errors over the closed blocks.
func (a *Accumulator) Summary() RunSummary {
	s := RunSummary{Blocks: len(a.blocks)}
	if len(a.blocks) == 0 {
		return s
	}

	s.MoveRatio = meanErr(a.blocks, func(b BlockAverage) float64 { return b.MoveRatio })
	s.ECut = meanErr(a.blocks, func(b BlockAverage) float64 { return b.ECut })
	s.EFull = meanErr(a.blocks, func(b BlockAverage) float64 { return b.EFull })
	return s
}

// Reset discards all accumulated data.
func (a *Accumulator) Reset() {
	a.blockSum = Step{}
	a.blockSteps = 0
	a.blocksDone = 0
	a.blocks = a.blocks[:0]
}

func meanErr(blocks []BlockAverage, pick func(BlockAverage) float64) Value {
	n := float64(len(blocks))
	mean := 0.0
	for _, b := range blocks {
		mean += pick(b)
	}
	mean /= n

	if len(blocks) < 2 {
		return Value{Mean: mean}
	}

	varSum := 0.0
	for _, b := range blocks {
		d := pick(b) - mean
		varSum += d * d
	}
	return Value{Mean: mean, Err: math.Sqrt(varSum / (n * (n - 1)))}
}
