package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/config"
	"github.com/bje-/hector/internal/core"
	"github.com/bje-/hector/internal/ensemble"
	"github.com/bje-/hector/internal/storage"
	"github.com/bje-/hector/internal/unitval"
	"github.com/bje-/hector/internal/visitors"
	"github.com/bje-/hector/internal/viz"
)

var (
	dataDir     string
	verbose     bool
	configFile  string
	toDate      float64
	stride      float64
	plotVar     string
	plotHeight  int
	sweepParam  string
	sweepValues []float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hector",
		Short: "compact climate simulation engine",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".hector", "data directory")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario and archive the results",
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().Float64Var(&toDate, "to", 0, "run to date (default: configured end date)")
	runCmd.Flags().Float64Var(&stride, "stride", 5, "years per reported stride")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot an archived run variable",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotVar, "var", components.CapAtmosphericCO2, "variable to plot")
	plotCmd.Flags().IntVar(&plotHeight, "height", 12, "chart height")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a scenario with a live terminal view",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	liveCmd.Flags().Float64Var(&toDate, "to", 0, "run to date (default: configured end date)")

	trackingCmd := &cobra.Command{
		Use:   "tracking [run_id]",
		Short: "print an archived run's carbon tracking report",
		Args:  cobra.ExactArgs(1),
		RunE:  showTracking,
	}

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run a parameter sweep, one engine instance per member",
		RunE:  runEnsemble,
	}
	ensembleCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	ensembleCmd.Flags().Float64Var(&toDate, "to", 0, "run to date (default: configured end date)")
	ensembleCmd.Flags().StringVar(&sweepParam, "param", "ecs", "parameter to sweep (ecs, beta, q10, preindustrial_co2)")
	ensembleCmd.Flags().Float64SliceVar(&sweepValues, "values", []float64{2.0, 3.0, 4.5}, "sweep values")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, liveCmd, trackingCmd, ensembleCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configFile)
}

// setupCore creates, initializes, and configures a core from the loaded
// config, returning its registry handle.
func setupCore(cfg *config.Config, logger *zap.Logger) (int, *core.Core, error) {
	cc := cfg.CoreConfig()
	cc.Logger = logger
	handle := core.MakeCore(cc)

	hcore, err := core.GetCore(handle)
	if err != nil {
		return 0, nil, err
	}
	if err := hcore.Init(); err != nil {
		return 0, nil, err
	}
	if err := cfg.Apply(hcore); err != nil {
		return 0, nil, err
	}
	if cfg.EmissionsCSV != "" {
		if err := loadEmissionsCSV(hcore, cfg.EmissionsCSV); err != nil {
			return 0, nil, fmt.Errorf("loading emissions from %s: %w", cfg.EmissionsCSV, err)
		}
	}
	return handle, hcore, nil
}

// loadEmissionsCSV pushes a dated emissions scenario into the core. The
// file has a header row followed by year,ffi,luc,daccs rows in Pg C/yr.
func loadEmissionsCSV(hcore *core.Core, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return err
	}

	caps := []string{
		components.CapFFIEmissions,
		components.CapLUCEmissions,
		components.CapDACCSUptake,
	}
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 2 {
			continue
		}
		year, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			continue
		}
		for j, cap := range caps {
			if j+1 >= len(rec) {
				break
			}
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return fmt.Errorf("row %d: bad %s value %q", i, cap, rec[j+1])
			}
			_, err = hcore.SendMessage(component.SetData, cap, component.MessageData{
				Date:  year,
				Value: unitval.New(v, unitval.PgCPerYear),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	handle, hcore, err := setupCore(cfg, logger)
	if err != nil {
		return err
	}
	defer core.DeleteCore(handle)

	var outputBuf, trackingBuf bytes.Buffer
	outVisitor := visitors.NewOutputStream(&outputBuf,
		components.CapAtmosphericCO2,
		components.CapRFTotal,
		components.CapGlobalTAS,
		components.CapNPP,
		components.CapOceanUptake,
	)
	hcore.AddVisitor(outVisitor)
	trackVisitor := visitors.NewTracking(&trackingBuf)
	hcore.AddVisitor(trackVisitor)

	if err := hcore.PrepareToRun(); err != nil {
		return err
	}

	target := toDate
	if target <= 0 {
		target = hcore.EndDate()
	}

	for t := hcore.StartDate() + stride; t <= target; t += stride {
		if err := hcore.Run(t); err != nil {
			return err
		}
		reportStride(hcore, t)
	}
	if hcore.CurrentDate() < target {
		if err := hcore.Run(target); err != nil {
			return err
		}
		reportStride(hcore, target)
	}

	if err := outVisitor.Err(); err != nil {
		return fmt.Errorf("output visitor: %w", err)
	}
	if err := trackVisitor.Err(); err != nil {
		return fmt.Errorf("tracking visitor: %w", err)
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	meta := storage.RunMetadata{
		RunName:      hcore.RunName(),
		StartDate:    hcore.StartDate(),
		EndDate:      target,
		TrackingDate: hcore.TrackingDate(),
		Finals:       sampleFinals(hcore),
	}
	runID, err := store.Save(meta, outputBuf.Bytes(), trackingBuf.Bytes())
	if err != nil {
		return err
	}

	fmt.Printf("run complete: %s (year %.0f)\n", runID, hcore.CurrentDate())
	return hcore.ShutDown()
}

func reportStride(hcore *core.Core, t float64) {
	env := component.MessageData{Date: t}
	co2, err1 := hcore.SendMessage(component.GetData, components.CapAtmosphericCO2, env)
	rf, err2 := hcore.SendMessage(component.GetData, components.CapRFTotal, env)
	tas, err3 := hcore.SendMessage(component.GetData, components.CapGlobalTAS, env)
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}
	fmt.Printf("t=%.0f\tCO2=%.1f %s\tRF=%.2f %s\ttemp=%.2f %s\n",
		t, co2.Magnitude(), co2.UnitsName(),
		rf.Magnitude(), rf.UnitsName(),
		tas.Magnitude(), tas.UnitsName())
}

func sampleFinals(hcore *core.Core) map[string]float64 {
	finals := make(map[string]float64)
	for _, cap := range []string{
		components.CapAtmosphericCO2,
		components.CapRFTotal,
		components.CapGlobalTAS,
	} {
		v, err := hcore.SendMessage(component.GetData, cap,
			component.MessageData{Date: hcore.CurrentDate()})
		if err != nil {
			continue
		}
		finals[cap] = v.Magnitude()
	}
	return finals
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no archived runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRUN\tSTART\tEND\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%s\n",
			r.ID, r.RunName, r.StartDate, r.EndDate,
			r.Timestamp.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	years, values, err := store.LoadSeries(args[0], plotVar)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("run %s has no data for %q", args[0], plotVar)
	}
	fmt.Println(viz.Plot(plotVar, years, values, plotHeight))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop() // keep the TUI clean
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	handle, hcore, err := setupCore(cfg, logger)
	if err != nil {
		return err
	}
	defer core.DeleteCore(handle)

	if err := hcore.PrepareToRun(); err != nil {
		return err
	}

	p := tea.NewProgram(viz.NewLive(hcore, toDate))
	_, err = p.Run()
	return err
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	members, err := ensemble.ParameterSweep(sweepParam, sweepValues)
	if err != nil {
		return err
	}

	results, err := ensemble.New(cfg, toDate).Run(cmd.Context(), members)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MEMBER\tCO2 (ppmv)\tRF (W/m2)\tTEMP (degC)")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.1f\t%.2f\t%.2f\n",
			r.Name,
			r.Finals[components.CapAtmosphericCO2],
			r.Finals[components.CapRFTotal],
			r.Finals[components.CapGlobalTAS])
	}
	return w.Flush()
}

func showTracking(cmd *cobra.Command, args []string) error {
	path := filepath.Join(dataDir, args[0], "tracking.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("run %s has no tracking report (was tracking enabled?)", args[0])
		}
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
