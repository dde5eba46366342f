package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"periodqc/domain/catalog"
	"periodqc/internal"
	"periodqc/internal/api"
	"periodqc/internal/batch"
	catalogio "periodqc/internal/catalog"
	"periodqc/internal/config"
	"periodqc/internal/errors"
	"periodqc/internal/metrics"
	"periodqc/internal/params"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "periodqc",
		Short: "Reliability and completeness of stellar rotation-period measurements",
		Long: `periodqc computes how trustworthy rotation-period detections are.

Reliability: given a detected period and measurement parameters, the fraction
of catalog stars in that window whose detection is correct.
Completeness: given a true period and parameters, the fraction of catalog
stars in that window that were detected at all.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMetricCmd(metrics.MetricReliability),
		newMetricCmd(metrics.MetricCompleteness),
		newCurveCmd(),
		newSummaryCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// paramFlags holds the dynamically registered per-parameter flag values.
type paramFlags struct {
	value map[string]*float64
	lower map[string]*float64
	upper map[string]*float64
}

// registerParamFlags adds --<name>, --<name>-lower-limit, and
// --<name>-upper-limit for every registered quality parameter.
func registerParamFlags(cmd *cobra.Command, registry *params.Registry) *paramFlags {
	pf := &paramFlags{
		value: map[string]*float64{},
		lower: map[string]*float64{},
		upper: map[string]*float64{},
	}
	for _, name := range registry.Names() {
		spec, _ := registry.Lookup(name)
		pf.value[name] = cmd.Flags().Float64(name, 0,
			fmt.Sprintf("%s value to condition on (column %s)", name, spec.Column))
		pf.lower[name] = cmd.Flags().Float64(name+"-lower-limit", spec.DefaultLower,
			fmt.Sprintf("lower tolerance for the %s window (default %g)", name, spec.DefaultLower))
		pf.upper[name] = cmd.Flags().Float64(name+"-upper-limit", spec.DefaultUpper,
			fmt.Sprintf("upper tolerance for the %s window (default %g)", name, spec.DefaultUpper))
	}
	return pf
}

// queryParams assembles the parameter constraints from whichever value flags
// the caller actually set.
func (pf *paramFlags) queryParams(cmd *cobra.Command, registry *params.Registry) []metrics.ParamValue {
	var out []metrics.ParamValue
	for _, name := range registry.Names() {
		if !cmd.Flags().Changed(name) {
			continue
		}
		out = append(out, metrics.ParamValue{
			Name:  name,
			Value: *pf.value[name],
			Lower: pf.lower[name],
			Upper: pf.upper[name],
		})
	}
	return out
}

// tolerances exposes the CLI-level limit flags as batch defaults, including
// flags left at their registry default.
func (pf *paramFlags) tolerances(registry *params.Registry) map[string]batch.Tolerance {
	out := map[string]batch.Tolerance{}
	for _, name := range registry.Names() {
		out[name] = batch.Tolerance{Lower: pf.lower[name], Upper: pf.upper[name]}
	}
	return out
}

func newMetricCmd(metric metrics.Metric) *cobra.Command {
	var (
		inputPeriod float64
		mode        string
		periodLower float64
		periodUpper float64
		batchFile   string
		writeXLSX   bool
	)

	cmd := &cobra.Command{
		Use:   string(metric),
		Short: fmt.Sprintf("Calculate %s for one star or a batch file", metric),
		Long: fmt.Sprintf(`Calculate %s for a single star (--input-period plus optional parameter
values) or for every row of a batch CSV (--batch-file).

The batch CSV's first column is the star name, input_period is required, and
parameter columns may be followed by limit columns (header containing "lim")
overriding the window for that row. Missing limits fall back to the
command-line flags.`, metric),
		RunE: nil,
	}

	registry := params.Default()
	pf := registerParamFlags(cmd, registry)

	cmd.Flags().Float64Var(&inputPeriod, "input-period", 0, "rotation period of the star, days")
	cmd.Flags().StringVar(&mode, "mode", "match", "status mode: match|alias|recovery")
	cmd.Flags().Float64Var(&periodLower, "period-lower-limit", 1.0, "lower tolerance for the period window")
	cmd.Flags().Float64Var(&periodUpper, "period-upper-limit", 1.0, "upper tolerance for the period window")
	cmd.Flags().StringVar(&batchFile, "batch-file", "", "CSV of stars to process; overrides single-star flags")
	cmd.Flags().BoolVar(&writeXLSX, "xlsx", false, "also write the batch output as an .xlsx workbook")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cmd.Context(), cfg, registry, log)
		if err != nil {
			return err
		}
		calc := metrics.New(cat, registry)

		if batchFile != "" {
			defaults := batch.Defaults{
				PeriodLower: periodLower,
				PeriodUpper: periodUpper,
				Param:       pf.tolerances(registry),
			}
			driver := batch.NewDriver(calc, registry, log, defaults, cfg.Batch.Workers)
			report, err := driver.Run(cmd.Context(), metric, batchFile, writeXLSX)
			if err != nil {
				return err
			}
			fmt.Printf("[Batch Mode] Wrote %s results to %s\n", metric, report.OutputPath)
			return nil
		}

		if !cmd.Flags().Changed("input-period") {
			return errors.ValidationError("either --input-period or --batch-file is required")
		}
		if err := checkCalibratedRange(cfg.Catalog, inputPeriod); err != nil {
			return err
		}
		parsedMode, err := metrics.ParseMode(mode)
		if err != nil {
			return err
		}

		query := metrics.Query{
			Period:      inputPeriod,
			PeriodLower: periodLower,
			PeriodUpper: periodUpper,
			Mode:        parsedMode,
			Params:      pf.queryParams(cmd, registry),
		}

		var value float64
		if metric == metrics.MetricReliability {
			value, err = calc.Reliability(query)
		} else {
			value, err = calc.Completeness(query)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Calculated %s (%s): %g\n", metric, parsedMode, value)
		return nil
	}

	return cmd
}

func newCurveCmd() *cobra.Command {
	var (
		metricName string
		mode       string
		start      float64
		end        float64
		points     int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Evaluate a metric over an even period grid and write it as CSV",
	}

	registry := params.Default()
	pf := registerParamFlags(cmd, registry)

	cmd.Flags().StringVar(&metricName, "metric", "reliability", "metric to sweep: reliability|completeness")
	cmd.Flags().StringVar(&mode, "mode", "match", "status mode: match|alias|recovery")
	cmd.Flags().Float64Var(&start, "start", 0.5, "first period of the grid, days")
	cmd.Flags().Float64Var(&end, "end", 19.5, "last period of the grid, days")
	cmd.Flags().IntVar(&points, "points", 50, "number of grid points")
	cmd.Flags().StringVar(&output, "output", "", "output CSV path (default <metric>_curve.csv)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cmd.Context(), cfg, registry, log)
		if err != nil {
			return err
		}

		metric, err := metrics.ParseMetric(metricName)
		if err != nil {
			return err
		}
		parsedMode, err := metrics.ParseMode(mode)
		if err != nil {
			return err
		}

		calc := metrics.New(cat, registry)
		curve, err := calc.Curve(metric, start, end, points, metrics.Query{
			PeriodLower: 1.0,
			PeriodUpper: 1.0,
			Mode:        parsedMode,
			Params:      pf.queryParams(cmd, registry),
		})
		if err != nil {
			return err
		}

		if output == "" {
			output = fmt.Sprintf("%s_curve.csv", metric)
		}
		if err := writeCurve(output, curve); err != nil {
			return err
		}

		populated := 0
		for _, p := range curve.Points {
			if p.Populated {
				populated++
			}
		}
		fmt.Printf("Wrote %s curve (%s) to %s: %d/%d populated points, mean %g\n",
			metric, parsedMode, output, populated, len(curve.Points), curve.Mean)
		return nil
	}

	return cmd
}

func writeCurve(path string, curve *metrics.Curve) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.CatalogError(fmt.Sprintf("failed to create curve file %s", path), err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	records := [][]string{{"period", string(curve.Metric) + "_" + string(curve.Mode)}}
	for _, p := range curve.Points {
		value := ""
		if p.Populated {
			value = strconv.FormatFloat(p.Value, 'g', -1, 64)
		}
		records = append(records, []string{strconv.FormatFloat(p.Period, 'g', -1, 64), value})
	}
	if err := writer.WriteAll(records); err != nil {
		return errors.CatalogError("failed to write curve CSV", err)
	}
	return nil
}

func newSummaryCmd() *cobra.Command {
	registry := params.Default()

	return &cobra.Command{
		Use:   "summary",
		Short: "Print distribution summaries for the catalog columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cmd.Context(), cfg, registry, log)
			if err != nil {
				return err
			}

			summary := catalogio.Summarize(cat)
			fmt.Printf("Catalog: %d stars\n", summary.Stars)
			fmt.Printf("Status: match=%d alias=%d not_recovered=%d\n",
				summary.StatusCounts[catalog.StatusMatch],
				summary.StatusCounts[catalog.StatusAlias],
				summary.StatusCounts[catalog.StatusNotRecovered])
			fmt.Printf("\n%-12s %6s %10s %10s %10s %10s %10s\n",
				"column", "count", "mean", "std", "min", "median", "max")
			for _, col := range summary.Columns {
				fmt.Printf("%-12s %6d %10.4g %10.4g %10.4g %10.4g %10.4g\n",
					col.Column, col.Count, col.Mean, col.StdDev, col.Min, col.Median, col.Max)
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var port string

	registry := params.Default()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metrics as a JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cmd.Context(), cfg, registry, log)
			if err != nil {
				return err
			}
			if port == "" {
				port = cfg.Server.Port
			}

			server := api.NewServer(metrics.New(cat, registry), registry, catalogio.Summarize(cat), log)
			return server.ListenAndServe(port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (default from PORT)")

	return cmd
}

func setup() (*config.Config, *internal.Logger, error) {
	log := internal.NewDefaultLogger()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// loadCatalog picks the configured source: the database when DATABASE_URL is
// set, the catalog file otherwise.
func loadCatalog(ctx context.Context, cfg *config.Config, registry *params.Registry, log *internal.Logger) (*catalog.Catalog, error) {
	if cfg.Database.URL != "" {
		store, err := catalogio.NewStore(cfg.Database, registry, log)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(ctx)
	}
	return catalogio.NewLoader(cfg.Catalog, registry, log).Load()
}

// checkCalibratedRange rejects single-star queries outside the period range
// the catalog was calibrated for.
func checkCalibratedRange(cfg config.CatalogConfig, period float64) error {
	if period <= cfg.PeriodMin || period >= cfg.PeriodMax {
		return errors.ValidationError(fmt.Sprintf(
			"input period must be between %g and %g days, got %g", cfg.PeriodMin, cfg.PeriodMax, period))
	}
	return nil
}
