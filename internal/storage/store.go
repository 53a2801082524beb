// Package storage persists run results: one directory per run holding
// metadata, per-block averages, and the configuration checkpoints
// written by cfgio.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/pimc/internal/config"
	"github.com/san-kum/pimc/internal/sampler"
	"github.com/san-kum/pimc/internal/stats"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string    `json:"id"`
	Model         string    `json:"model"`
	Timestamp     time.Time `json:"timestamp"`
	Seed          int64     `json:"seed"`
	Blocks        int       `json:"blocks"`
	StepsPerBlock int       `json:"steps_per_block"`
	Temperature   float64   `json:"temperature"`
	RCut          float64   `json:"r_cut"`
	DrMax         float64   `json:"dr_max"`
	Beads         int       `json:"beads"`
	Lambda        float64   `json:"lambda"`
	Particles     int       `json:"particles"`
	Box           float64   `json:"box"`

	MoveRatio    float64 `json:"move_ratio"`
	MoveRatioErr float64 `json:"move_ratio_err"`
	ECut         float64 `json:"e_cut"`
	ECutErr      float64 `json:"e_cut_err"`
	EFull        float64 `json:"e_full"`
	EFullErr     float64 `json:"e_full_err"`
}

// NewRun allocates a run directory up front so checkpoints can be
// written into it while the run is still going.
func (s *Store) NewRun(model string) (string, error) {
	runID := fmt.Sprintf("%s_%d", model, time.Now().Unix())
	if err := os.MkdirAll(s.RunDir(runID), 0755); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// Save writes run metadata and per-block averages for a completed run.
func (s *Store) Save(runID string, cfg *config.Config, n int, box float64, result *sampler.Result) error {
	meta := RunMetadata{
		ID:            runID,
		Model:         cfg.Model,
		Timestamp:     time.Now(),
		Seed:          cfg.Seed,
		Blocks:        cfg.Blocks,
		StepsPerBlock: cfg.StepsPerBlock,
		Temperature:   cfg.Temperature,
		RCut:          cfg.RCut,
		DrMax:         cfg.DrMax,
		Beads:         cfg.Beads,
		Lambda:        cfg.Lambda,
		Particles:     n,
		Box:           box,

		MoveRatio:    result.Summary.MoveRatio.Mean,
		MoveRatioErr: result.Summary.MoveRatio.Err,
		ECut:         result.Summary.ECut.Mean,
		ECutErr:      result.Summary.ECut.Err,
		EFull:        result.Summary.EFull.Mean,
		EFullErr:     result.Summary.EFull.Err,
	}

	metaFile, err := os.Create(filepath.Join(s.RunDir(runID), "metadata.json"))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	return s.saveBlocks(runID, result.Blocks)
}

func (s *Store) saveBlocks(runID string, blocks []stats.BlockAverage) error {
	csvFile, err := os.Create(filepath.Join(s.RunDir(runID), "blocks.csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write([]string{"block", "steps", "move_ratio", "e_cut", "e_full"}); err != nil {
		return err
	}
	for _, b := range blocks {
		row := []string{
			strconv.Itoa(b.Block),
			strconv.Itoa(b.Steps),
			strconv.FormatFloat(b.MoveRatio, 'f', 6, 64),
			strconv.FormatFloat(b.ECut, 'f', 6, 64),
			strconv.FormatFloat(b.EFull, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadBlocks(runID string) ([]stats.BlockAverage, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "blocks.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	blocks := make([]stats.BlockAverage, 0, len(records))
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 5 {
			continue
		}
		block, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		steps, _ := strconv.Atoi(rec[1])
		ratio, _ := strconv.ParseFloat(rec[2], 64)
		eCut, _ := strconv.ParseFloat(rec[3], 64)
		eFull, _ := strconv.ParseFloat(rec[4], 64)
		blocks = append(blocks, stats.BlockAverage{
			Block: block, Steps: steps, MoveRatio: ratio, ECut: eCut, EFull: eFull,
		})
	}
	return blocks, nil
}
