package cfgio

import (
	"fmt"
	"path/filepath"

	"github.com/san-kum/pimc/internal/system"
)

// Store writes block checkpoints and the final configuration under a
// run directory. It satisfies the sampler's Checkpointer interface.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Checkpoint writes the full configuration tagged by block number.
func (s *Store) Checkpoint(block int, sys *system.System) error {
	dir := filepath.Join(s.baseDir, "checkpoints", fmt.Sprintf("block%03d", block))
	return WriteSet(dir, sys)
}

// Final writes the end-of-run configuration.
func (s *Store) Final(sys *system.System) error {
	return WriteSet(filepath.Join(s.baseDir, "final"), sys)
}
