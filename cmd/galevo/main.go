package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/galevo/internal/config"
	"github.com/san-kum/galevo/internal/experiment"
	"github.com/san-kum/galevo/internal/optim"
	"github.com/san-kum/galevo/internal/sim"
	"github.com/san-kum/galevo/internal/storage"
	"github.com/san-kum/galevo/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	verbose    bool
	dbPath     string
	configFile string
	preset     string
	seed       int64
	ensemble   int
	parallel   int
	series     []string
	logScale   bool
	plotAfter  bool
	format     string
	outFile    string
	gridParams []string
	metricName string
	target     float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "galevo",
		Short:        "semi-analytic galaxy evolution",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// zap output would corrupt the live view
			if cmd.Name() == "live" {
				logger = zap.NewNop()
				return nil
			}
			cfg := zap.NewProductionConfig()
			if verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "run database (default from config)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "generate a scenario and evolve it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().IntVar(&ensemble, "ensemble", 0, "run this many scenarios from consecutive seeds")
	runCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent ensemble members (0 = all cores)")
	runCmd.Flags().BoolVar(&plotAfter, "plot", false, "plot the stellar mass history after the run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with a live terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "summarise a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot accounting series of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&series, "series", nil, "series to plot (default mstars,sfr,mcold,mhot_halo)")
	plotCmd.Flags().BoolVar(&logScale, "log", true, "plot log10 of the series")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json or csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "json or csv")
	exportCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [file]",
		Short: "write the effective configuration to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	addConfigFlags(configCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search model parameters against a target",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&gridParams, "param", nil, "name=v1,v2,... (repeatable; names: "+strings.Join(optim.ParameterNames(), ", ")+")")
	sweepCmd.Flags().StringVar(&metricName, "metric", "", "run metric to match (default final stellar mass)")
	sweepCmd.Flags().Float64Var(&target, "target", 1e11, "target value")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, showCmd, plotCmd, exportCmd, deleteCmd, presetsCmd, configCmd, sweepCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

func addRunFlags(cmd *cobra.Command) {
	addConfigFlags(cmd)
	cmd.Flags().Int64Var(&seed, "seed", 0, "scenario seed (default from config)")
}

// loadConfig resolves --config and --preset, then the environment and
// flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "" && preset != "":
		return nil, errors.New("--config and --preset are mutually exclusive")
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (have %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
		if err := config.ApplyEnv(cfg); err != nil {
			return nil, err
		}
	default:
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	if f := cmd.Flags().Lookup("seed"); f != nil && f.Changed {
		cfg.Scenario.Seed = seed
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	return cfg, cfg.Validate()
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	path := dbPath
	if path == "" && cfg != nil {
		path = cfg.Database
	}
	if path == "" {
		path = config.DefaultDatabase
	}
	return storage.Open(path)
}

func presetName() string {
	if preset != "" {
		return preset
	}
	if configFile != "" {
		return configFile
	}
	return "default"
}

func metadata(cfg *config.Config, runSeed int64, res *sim.Result) storage.RunMetadata {
	meta := storage.RunMetadata{
		Preset:               presetName(),
		Timestamp:            time.Now(),
		Seed:                 runSeed,
		Feedback:             cfg.StellarFeedback.Model,
		Snapshots:            res.Snapshots,
		GalaxyEvaluations:    res.GalaxyEvaluations,
		StarburstEvaluations: res.StarburstEvaluations,
		Warnings:             res.Warnings,
		FailedGalaxies:       res.FailedGalaxies,
		Duration:             res.Duration,
		Metrics:              res.Metrics,
	}
	if res.Log != nil {
		if records := res.Log.Records(); len(records) > 0 {
			meta.Galaxies = records[len(records)-1].Galaxies
		}
	}
	return meta
}

func save(ctx context.Context, st *storage.Store, meta storage.RunMetadata, res *sim.Result) (string, error) {
	return st.Save(ctx, meta, res.Log.Records())
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	exp := experiment.New(cfg, experiment.WithLogger(logger))

	if ensemble > 0 {
		results, err := exp.Ensemble(ctx, ensemble, parallel)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSEED\tGALAXIES\tM*\tFAILED\tDURATION")
		for i, res := range results {
			meta := metadata(cfg, cfg.Scenario.Seed+int64(i), res)
			id, err := save(ctx, st, meta, res)
			if err != nil {
				return err
			}
			mstars := 0.0
			if records := res.Log.Records(); len(records) > 0 {
				mstars = records[len(records)-1].MStars.Mass
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%.4g\t%d\t%s\n", id, meta.Seed, meta.Galaxies, mstars, res.FailedGalaxies, res.Duration.Round(time.Millisecond))
		}
		return w.Flush()
	}

	out, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	meta := metadata(cfg, out.Seed, out.Result)
	meta.Galaxies = out.Scenario.Galaxies
	if counters, err := out.Recorder.Snapshot(); err == nil {
		meta.Counters = counters
	} else {
		logger.Warn("failed to gather counters", zap.Error(err))
	}

	id, err := save(ctx, st, meta, out.Result)
	if err != nil {
		return err
	}

	fmt.Println(viz.RenderResult("run "+id, out.Result))
	if plotAfter {
		graph, err := viz.PlotSeries(out.Result.Log, []string{"mstars"}, viz.PlotOptions{LogScale: true})
		if err != nil {
			return err
		}
		fmt.Println(graph)
	}
	return nil
}

type liveOutcome struct {
	out *experiment.Outcome
	err error
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := viz.NewLiveModel(fmt.Sprintf("galevo %s seed %d", presetName(), cfg.Scenario.Seed), cfg.Scenario.Snapshots-1)
	p := tea.NewProgram(m)
	exp := experiment.New(cfg, experiment.WithLogger(logger), experiment.WithObservers(viz.Observer(p)))

	done := make(chan liveOutcome, 1)
	go func() {
		out, err := exp.Run(ctx)
		var res *sim.Result
		if out != nil {
			res = out.Result
		}
		p.Send(viz.DoneMsg{Result: res, Err: err})
		done <- liveOutcome{out: out, err: err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	lo := <-done
	if lo.err != nil {
		return lo.err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	meta := metadata(cfg, lo.out.Seed, lo.out.Result)
	meta.Galaxies = lo.out.Scenario.Galaxies
	id, err := save(cmd.Context(), st, meta, lo.out.Result)
	if err != nil {
		return err
	}
	fmt.Printf("saved run %s\n", id)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tSEED\tFEEDBACK\tSNAPS\tGALAXIES\tFAILED\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Feedback,
			run.Snapshots,
			run.Galaxies,
			run.FailedGalaxies,
			run.Duration.Round(time.Millisecond),
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(ctx, args[0])
	if err != nil {
		return err
	}
	log, err := st.Log(ctx, args[0])
	if err != nil {
		return err
	}

	res := &sim.Result{
		Log:                  log,
		Snapshots:            meta.Snapshots,
		GalaxyEvaluations:    meta.GalaxyEvaluations,
		StarburstEvaluations: meta.StarburstEvaluations,
		Warnings:             meta.Warnings,
		FailedGalaxies:       meta.FailedGalaxies,
		Metrics:              meta.Metrics,
		Duration:             meta.Duration,
	}
	title := fmt.Sprintf("run %s  %s  seed %d  %s", meta.ID, meta.Preset, meta.Seed, meta.Feedback)
	fmt.Println(viz.RenderResult(title, res))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(ctx, args[0])
	if err != nil {
		return err
	}
	log, err := st.Log(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("snapshots: %d\n\n", log.Len())

	graph, err := viz.PlotSeries(log, series, viz.PlotOptions{LogScale: logScale})
	if err != nil {
		return err
	}
	fmt.Print(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(ctx, args[0])
	if err != nil {
		return err
	}
	records, err := st.Records(ctx, args[0])
	if err != nil {
		return err
	}

	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		err = storage.ExportJSON(w, *meta, records)
	case "csv":
		err = storage.ExportCSV(w, records)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	if err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported %d snapshots to %s\n", len(records), outFile)
	}
	return nil
}

func deleteRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted run %s\n", args[0])
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tFEEDBACK\tSTAR FORMATION\tCOOLING\tSNAPS\tHALOS\tSUBSTEPS")
	for _, name := range config.ListPresets() {
		c := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			name,
			c.StellarFeedback.Model,
			c.StarFormation.Law,
			c.Cooling.Law,
			c.Scenario.Snapshots,
			c.Scenario.Halos,
			c.Run.TimestepsPerSnapshot,
		)
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, values, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid --param %q: want name=v1,v2", spec)
		}
		var vals []float64
		for _, v := range strings.Split(values, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid --param %q: %w", spec, err)
			}
			vals = append(vals, f)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridParams)
	if err != nil {
		return err
	}
	gs, err := optim.NewGridSearch(names, ranges, logger)
	if err != nil {
		return err
	}

	objective := optim.StellarMassObjective(target)
	if metricName != "" {
		objective = optim.MetricObjective(metricName, target)
	}

	res, err := gs.Search(cmd.Context(), cfg, objective)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(res.Params))
	for k := range res.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMETER\tBEST")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%g\n", k, res.Params[k])
	}
	fmt.Fprintf(w, "objective\t%.6g\n", res.Value)
	fmt.Fprintf(w, "evaluated\t%d (%d failed)\n", res.Evaluated, res.Failed)
	return w.Flush()
}
