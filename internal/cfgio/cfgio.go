// Package cfgio reads and writes per-bead configuration records. One
// text file per bead index holds the particle count, the box length, and
// one coordinate row per particle, all in physical units. Positions in
// memory are box-scaled; conversion happens at the I/O boundary.
package cfgio

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/pimc/internal/system"
)

var (
	// ErrRecordMismatch indicates bead records that disagree on particle
	// count or box length.
	ErrRecordMismatch = errors.New("cfgio: bead records disagree on particle count or box")

	// ErrBadRecord indicates a malformed configuration file.
	ErrBadRecord = errors.New("cfgio: malformed configuration record")
)

// boxTol is the agreement tolerance between the box lengths of two bead
// records; they are written with fixed precision, so exact equality is
// too strict.
const boxTol = 1e-9

// Record is one bead's stored configuration in physical units.
type Record struct {
	N         int
	Box       float64
	Positions []system.Vec
}

func beadFile(dir string, k int) string {
	return filepath.Join(dir, fmt.Sprintf("bead%02d.cfg", k+1))
}

// ReadRecord parses a single bead configuration file.
func ReadRecord(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)

	n, err := readInt(sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: particle count: %v", ErrBadRecord, path, err)
	}
	box, err := readFloat(sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: box length: %v", ErrBadRecord, path, err)
	}
	if n < 1 || box <= 0 {
		return nil, fmt.Errorf("%w: %s: n=%d box=%f", ErrBadRecord, path, n, box)
	}

	rec := &Record{N: n, Box: box, Positions: make([]system.Vec, n)}
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: %s: expected %d coordinate rows, got %d", ErrBadRecord, path, n, i)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: %s: row %d has %d columns", ErrBadRecord, path, i+1, len(fields))
		}
		for axis := 0; axis < 3; axis++ {
			v, err := strconv.ParseFloat(fields[axis], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: row %d: %v", ErrBadRecord, path, i+1, err)
			}
			rec.Positions[i][axis] = v
		}
	}
	return rec, sc.Err()
}

// ReadSet loads all p bead records from dir and verifies that every
// record agrees on particle count and box length.
func ReadSet(dir string, p int) ([]*Record, error) {
	records := make([]*Record, p)
	for k := 0; k < p; k++ {
		rec, err := ReadRecord(beadFile(dir, k))
		if err != nil {
			return nil, err
		}
		if k > 0 {
			if rec.N != records[0].N || math.Abs(rec.Box-records[0].Box) > boxTol {
				return nil, fmt.Errorf("%w: bead %d has n=%d box=%f, bead 1 has n=%d box=%f",
					ErrRecordMismatch, k+1, rec.N, rec.Box, records[0].N, records[0].Box)
			}
		}
		records[k] = rec
	}
	return records, nil
}

// LoadSystem builds a System from the bead records in dir, scaling
// positions by the box and wrapping them into range.
func LoadSystem(dir string, p int, temperature, lambda float64) (*system.System, error) {
	records, err := ReadSet(dir, p)
	if err != nil {
		return nil, err
	}

	sys, err := system.New(records[0].N, p, records[0].Box, temperature, lambda)
	if err != nil {
		return nil, err
	}
	for k, rec := range records {
		for i, r := range rec.Positions {
			sys.SetAt(i, k, system.WrapVec(system.Vec{
				r[0] / sys.Box, r[1] / sys.Box, r[2] / sys.Box,
			}))
		}
	}
	return sys, nil
}

// WriteSet writes one record per bead into dir, multiplying box-scaled
// positions back to physical units.
func WriteSet(dir string, sys *system.System) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for k := 0; k < sys.P; k++ {
		if err := writeRecord(beadFile(dir, k), sys, k); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(path string, sys *system.System, k int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d\n", sys.N)
	fmt.Fprintf(w, "%.12f\n", sys.Box)
	for i := 0; i < sys.N; i++ {
		r := sys.At(i, k)
		fmt.Fprintf(w, "%15.10f %15.10f %15.10f\n", r[0]*sys.Box, r[1]*sys.Box, r[2]*sys.Box)
	}
	return w.Flush()
}

// WriteLatticeSet writes a fresh starting configuration: n particles on
// a simple cubic lattice, identical across all p beads so the spring
// term starts at zero.
func WriteLatticeSet(dir string, n, p int, box float64) error {
	sys, err := system.New(n, p, box, 1.0, 1.0)
	if err != nil {
		return err
	}

	cells := 1
	for cells*cells*cells < n {
		cells++
	}
	spacing := 1.0 / float64(cells)

	idx := 0
	for ix := 0; ix < cells && idx < n; ix++ {
		for iy := 0; iy < cells && idx < n; iy++ {
			for iz := 0; iz < cells && idx < n; iz++ {
				r := system.Vec{
					system.Wrap((float64(ix) + 0.5) * spacing),
					system.Wrap((float64(iy) + 0.5) * spacing),
					system.Wrap((float64(iz) + 0.5) * spacing),
				}
				for k := 0; k < p; k++ {
					sys.SetAt(idx, k, r)
				}
				idx++
			}
		}
	}
	return WriteSet(dir, sys)
}

func readInt(sc *bufio.Scanner) (int, error) {
	if !sc.Scan() {
		return 0, errors.New("unexpected end of file")
	}
	return strconv.Atoi(strings.TrimSpace(sc.Text()))
}

func readFloat(sc *bufio.Scanner) (float64, error) {
	if !sc.Scan() {
		return 0, errors.New("unexpected end of file")
	}
	return strconv.ParseFloat(strings.TrimSpace(sc.Text()), 64)
}
