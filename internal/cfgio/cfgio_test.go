package cfgio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/pimc/internal/system"
)

func testSystem(t *testing.T) *system.System {
	t.Helper()
	sys, err := system.New(4, 3, 6.0, 1.0, 0.1)
	if err != nil {
		t.Fatalf("system.New failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		for k := 0; k < 3; k++ {
			sys.SetAt(i, k, system.Vec{
				system.Wrap(0.1*float64(i) + 0.01*float64(k)),
				system.Wrap(-0.2 * float64(i)),
				system.Wrap(0.05 * float64(k)),
			})
		}
	}
	return sys
}

func TestWriteReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	sys := testSystem(t)

	if err := WriteSet(dir, sys); err != nil {
		t.Fatalf("WriteSet failed: %v", err)
	}

	loaded, err := LoadSystem(dir, sys.P, 1.0, 0.1)
	if err != nil {
		t.Fatalf("LoadSystem failed: %v", err)
	}

	if loaded.N != sys.N || loaded.P != sys.P {
		t.Fatalf("dimensions: got n=%d p=%d, want n=%d p=%d", loaded.N, loaded.P, sys.N, sys.P)
	}
	if math.Abs(loaded.Box-sys.Box) > 1e-9 {
		t.Fatalf("box: got %f, want %f", loaded.Box, sys.Box)
	}

	for i := 0; i < sys.N; i++ {
		for k := 0; k < sys.P; k++ {
			want := sys.At(i, k)
			got := loaded.At(i, k)
			for axis := 0; axis < 3; axis++ {
				if math.Abs(got[axis]-want[axis]) > 1e-9 {
					t.Errorf("position (%d,%d) axis %d: got %g, want %g", i, k, axis, got[axis], want[axis])
				}
			}
		}
	}
}

func TestReadSetMismatchedRecords(t *testing.T) {
	dir := t.TempDir()
	sys := testSystem(t)
	if err := WriteSet(dir, sys); err != nil {
		t.Fatalf("WriteSet failed: %v", err)
	}

	// Overwrite the second bead record with a different particle count.
	other, err := system.New(3, 3, 6.0, 1.0, 0.1)
	if err != nil {
		t.Fatalf("system.New failed: %v", err)
	}
	if err := writeRecord(filepath.Join(dir, "bead02.cfg"), other, 0); err != nil {
		t.Fatalf("writeRecord failed: %v", err)
	}

	if _, err := ReadSet(dir, sys.P); !errors.Is(err, ErrRecordMismatch) {
		t.Errorf("error = %v, want ErrRecordMismatch", err)
	}
}

func TestReadRecordMalformed(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no box", "4\n"},
		{"bad count", "abc\n6.0\n"},
		{"missing rows", "2\n6.0\n0.1 0.2 0.3\n"},
		{"short row", "1\n6.0\n0.1 0.2\n"},
		{"negative box", "2\n-6.0\n0 0 0\n0 0 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".cfg")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadRecord(path); !errors.Is(err, ErrBadRecord) {
				t.Errorf("error = %v, want ErrBadRecord", err)
			}
		})
	}
}

func TestLoadSystemWrapsPositions(t *testing.T) {
	dir := t.TempDir()

	// Coordinates outside the box must come back wrapped.
	content := "1\n10.0\n12.0 -7.0 3.0\n"
	for _, name := range []string{"bead01.cfg", "bead02.cfg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	sys, err := LoadSystem(dir, 2, 1.0, 0.1)
	if err != nil {
		t.Fatalf("LoadSystem failed: %v", err)
	}

	r := sys.At(0, 0)
	for axis := 0; axis < 3; axis++ {
		if r[axis] < -0.5 || r[axis] >= 0.5 {
			t.Errorf("axis %d not wrapped: %f", axis, r[axis])
		}
	}
	if math.Abs(r[0]-0.2) > 1e-9 { // 12/10 wraps to 0.2
		t.Errorf("x = %f, want 0.2", r[0])
	}
	if math.Abs(r[1]-0.3) > 1e-9 { // -7/10 wraps to 0.3
		t.Errorf("y = %f, want 0.3", r[1])
	}
}

func TestWriteLatticeSet(t *testing.T) {
	dir := t.TempDir()

	if err := WriteLatticeSet(dir, 8, 3, 4.0); err != nil {
		t.Fatalf("WriteLatticeSet failed: %v", err)
	}

	records, err := ReadSet(dir, 3)
	if err != nil {
		t.Fatalf("ReadSet failed: %v", err)
	}

	if records[0].N != 8 {
		t.Fatalf("n = %d, want 8", records[0].N)
	}
	// All beads identical: the ring polymers start with zero spring energy.
	for k := 1; k < 3; k++ {
		for i := 0; i < 8; i++ {
			if records[k].Positions[i] != records[0].Positions[i] {
				t.Errorf("bead %d particle %d differs from bead 1", k+1, i)
			}
		}
	}

	// No two particles coincide.
	for i := 0; i < 8; i++ {
		for j := i + 1; j < 8; j++ {
			a, b := records[0].Positions[i], records[0].Positions[j]
			if a == b {
				t.Errorf("particles %d and %d coincide at %v", i, j, a)
			}
		}
	}
}

func TestStoreCheckpointLayout(t *testing.T) {
	dir := t.TempDir()
	sys := testSystem(t)

	st := NewStore(dir)
	if err := st.Checkpoint(3, sys); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := st.Final(sys); err != nil {
		t.Fatalf("Final failed: %v", err)
	}

	if _, err := ReadSet(filepath.Join(dir, "checkpoints", "block003"), sys.P); err != nil {
		t.Errorf("checkpoint unreadable: %v", err)
	}
	if _, err := ReadSet(filepath.Join(dir, "final"), sys.P); err != nil {
		t.Errorf("final configuration unreadable: %v", err)
	}
}
