package sampler

import (
	"errors"
	"fmt"
)

// Fatal conditions for a sampling run. None of them is recoverable: a
// rejected trial move leaves the state untouched, so there is nothing to
// retry below the level of a whole run.
var (
	// ErrInvalidConfig indicates run parameters outside their allowed range.
	ErrInvalidConfig = errors.New("sampler: invalid run parameters")

	// ErrInitialOverlap indicates the loaded starting configuration
	// contains a hard-core overlap.
	ErrInitialOverlap = errors.New("sampler: overlap in initial configuration")

	// ErrCorrupt indicates a previously accepted configuration evaluated
	// as overlapping, which can only come from a bookkeeping bug.
	ErrCorrupt = errors.New("sampler: accepted configuration overlaps")

	// ErrConsistency indicates the end-of-run recomputation disagreed
	// with the incrementally tracked potential totals.
	ErrConsistency = errors.New("sampler: running energies inconsistent with recomputation")
)

// SampleError wraps a fatal error with its position in the run.
type SampleError struct {
	Block    int
	Step     int
	Particle int
	Bead     int
	Wrapped  error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("block %d step %d (particle %d, bead %d): %v",
		e.Block, e.Step, e.Particle, e.Bead, e.Wrapped)
}

func (e *SampleError) Unwrap() error {
	return e.Wrapped
}
