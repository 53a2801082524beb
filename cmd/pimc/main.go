package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/pimc/internal/cfgio"
	"github.com/san-kum/pimc/internal/config"
	"github.com/san-kum/pimc/internal/model"
	"github.com/san-kum/pimc/internal/sampler"
	"github.com/san-kum/pimc/internal/stats"
	"github.com/san-kum/pimc/internal/storage"
	"github.com/san-kum/pimc/internal/viz"
)

var (
	dataDir   string
	configDir string

	blocks      int
	steps       int
	temperature float64
	rcut        float64
	drMax       float64
	beads       int
	lambda      float64
	seed        int64

	configFile string
	preset     string

	// init-config
	nParticles int
	boxLength  float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pimc",
		Short: "path-integral Monte Carlo sampling lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pimc", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a sampling job",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSampling,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run a sampling job with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot block averages of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export block averages to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "write a lattice starting configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfgio.WriteLatticeSet(args[0], nParticles, beads, boxLength); err != nil {
				return err
			}
			fmt.Printf("wrote %d bead records for %d particles (box %.4f) to %s\n",
				beads, nParticles, boxLength, args[0])
			return nil
		},
	}
	initCmd.Flags().IntVar(&nParticles, "n", 32, "number of particles")
	initCmd.Flags().IntVar(&beads, "beads", config.DefaultBeads, "beads per ring polymer")
	initCmd.Flags().Float64Var(&boxLength, "box", 4.0, "box edge length")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configDir, "config-dir", "cfg", "directory with per-bead configuration records")
	cmd.Flags().IntVar(&blocks, "blocks", config.DefaultBlocks, "number of blocks")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "steps per block")
	cmd.Flags().Float64Var(&temperature, "temp", config.DefaultTemperature, "temperature")
	cmd.Flags().Float64Var(&rcut, "rcut", config.DefaultRCut, "potential cutoff radius")
	cmd.Flags().Float64Var(&drMax, "drmax", config.DefaultDrMax, "maximum trial displacement")
	cmd.Flags().IntVar(&beads, "beads", config.DefaultBeads, "beads per ring polymer")
	cmd.Flags().Float64Var(&lambda, "lambda", config.DefaultLambda, "de Boer length")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// buildConfig resolves parameters with CLI flags taking precedence over
// the config file, which takes precedence over the preset.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	modelName := "lj"
	if len(args) > 0 {
		modelName = args[0]
	}

	cfg := config.DefaultConfig()
	cfg.Model = modelName

	if preset != "" {
		p := config.GetPreset(modelName, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(modelName))
		}
		*cfg = *p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		*cfg = *fileCfg
		if len(args) > 0 {
			cfg.Model = modelName
		}
	}

	if cmd.Flags().Changed("blocks") {
		cfg.Blocks = blocks
	}
	if cmd.Flags().Changed("steps") {
		cfg.StepsPerBlock = steps
	}
	if cmd.Flags().Changed("temp") {
		cfg.Temperature = temperature
	}
	if cmd.Flags().Changed("rcut") {
		cfg.RCut = rcut
	}
	if cmd.Flags().Changed("drmax") {
		cfg.DrMax = drMax
	}
	if cmd.Flags().Changed("beads") {
		cfg.Beads = beads
	}
	if cmd.Flags().Changed("lambda") {
		cfg.Lambda = lambda
	}
	if cmd.Flags().Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("config-dir") || cfg.ConfigDir == "" {
		cfg.ConfigDir = configDir
	}

	return cfg, cfg.Validate()
}

// setup loads the configuration records and assembles a ready sampler
// with its checkpoint store.
func setup(cfg *config.Config) (*sampler.Sampler, *storage.Store, string, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, nil, "", err
	}

	m, err := model.New(cfg.Model)
	if err != nil {
		return nil, nil, "", err
	}

	sys, err := cfgio.LoadSystem(cfg.ConfigDir, cfg.Beads, cfg.Temperature, cfg.Lambda)
	if err != nil {
		return nil, nil, "", err
	}

	runID, err := st.NewRun(cfg.Model)
	if err != nil {
		return nil, nil, "", err
	}

	params := sampler.Params{
		Blocks:        cfg.Blocks,
		StepsPerBlock: cfg.StepsPerBlock,
		Temperature:   cfg.Temperature,
		RCut:          cfg.RCut,
		DrMax:         cfg.DrMax,
	}
	s := sampler.New(sys, m, params, rand.New(rand.NewSource(cfg.Seed)))
	s.SetCheckpointer(cfgio.NewStore(st.RunDir(runID)))

	fmt.Printf("model: %s  particles: %d  beads: %d  box: %.4f\n", cfg.Model, sys.N, sys.P, sys.Box)
	fmt.Printf("density: %.6f  k_spring: %.4f  seed: %d\n", sys.Density, sys.KSpring, cfg.Seed)

	return s, st, runID, nil
}

func runSampling(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	s, st, runID, err := setup(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("running %d blocks x %d steps...\n", cfg.Blocks, cfg.StepsPerBlock)
	start := time.Now()

	result, err := s.Run(context.Background())
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	sys := s.System()
	if err := st.Save(runID, cfg, sys.N, sys.Box, result); err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("trial moves: %d  accepted: %d\n", result.Trials, result.Accepted)
	fmt.Println("\nrun averages:")
	fmt.Printf("  move ratio:  %.4f ± %.4f\n", result.Summary.MoveRatio.Mean, result.Summary.MoveRatio.Err)
	fmt.Printf("  e/N (cut):   %.6f ± %.6f\n", result.Summary.ECut.Mean, result.Summary.ECut.Err)
	fmt.Printf("  e/N (full):  %.6f ± %.6f\n", result.Summary.EFull.Mean, result.Summary.EFull.Err)
	fmt.Printf("\nfinal e/N (cut): %.6f  (full): %.6f\n", result.ECut, result.EFull)

	return nil
}

// runOutcome carries a finished run from the sampling goroutine back to
// the command; all handoff goes through the channel, never shared memory.
type runOutcome struct {
	result *sampler.Result
	err    error
}

// startRun launches the sampling run on its own goroutine. The outcome
// channel is buffered, so the goroutine never leaks even if nobody
// receives promptly.
func startRun(ctx context.Context, s *sampler.Sampler, msgs chan<- tea.Msg) <-chan runOutcome {
	done := make(chan runOutcome, 1)
	go func() {
		result, err := s.Run(ctx)
		if msgs != nil {
			msgs <- viz.DoneMsg{Err: err}
		}
		done <- runOutcome{result: result, err: err}
	}()
	return done
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	s, st, runID, err := setup(cfg)
	if err != nil {
		return err
	}

	// Buffered for every block message plus the done message, so the
	// sampling goroutine never blocks on a departed TUI.
	msgs := make(chan tea.Msg, cfg.Blocks+1)
	s.OnBlock(func(b stats.BlockAverage) {
		msgs <- viz.BlockMsg(b)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startRun(ctx, s, msgs)

	m := viz.NewModel(runID, cfg.Model, cfg.Blocks, msgs)
	_, teaErr := tea.NewProgram(m).Run()

	// Quitting the TUI stops the run at the next block boundary; wait
	// for the goroutine so checkpoints finish before the process exits.
	cancel()
	out := <-done

	if teaErr != nil {
		return teaErr
	}
	if errors.Is(out.err, context.Canceled) {
		fmt.Printf("run canceled; checkpoints kept under %s\n", st.RunDir(runID))
		return nil
	}
	if out.err != nil {
		return out.err
	}

	sys := s.System()
	return st.Save(runID, cfg, sys.N, sys.Box, out.result)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tBLOCKS\tSTEPS\tBEADS\tTEMP\tRATIO\tE/N")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.3f\t%.3f\t%.4f\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Blocks,
			run.StepsPerBlock,
			run.Beads,
			run.Temperature,
			run.MoveRatio,
			run.EFull,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	blocksData, err := st.LoadBlocks(runID)
	if err != nil {
		return err
	}
	if len(blocksData) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("blocks: %d\n\n", len(blocksData))

	series := []struct {
		caption string
		pick    func(stats.BlockAverage) float64
	}{
		{"e/N (full) per block", func(b stats.BlockAverage) float64 { return b.EFull }},
		{"e/N (cut) per block", func(b stats.BlockAverage) float64 { return b.ECut }},
		{"move ratio per block", func(b stats.BlockAverage) float64 { return b.MoveRatio }},
	}

	for _, sp := range series {
		data := make([]float64, len(blocksData))
		for i, b := range blocksData {
			data[i] = sp.pick(b)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(sp.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	blocksData, err := st.LoadBlocks(runID)
	if err != nil {
		return err
	}

	return storage.ExportJSONStdout(meta, blocksData)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	blocksData, err := st.LoadBlocks(runID)
	if err != nil {
		return err
	}
	if len(blocksData) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"block", "steps", "move_ratio", "e_cut", "e_full"}); err != nil {
		return err
	}
	for _, b := range blocksData {
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
