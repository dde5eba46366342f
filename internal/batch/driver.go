// Package batch runs a metric over every row of a batch CSV. Each row carries
// its own anchor period and parameter values; rows are independent, so they
// are processed by a bounded worker pool. A failing row is recorded with its
// reason and never aborts the run.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"periodqc/internal"
	"periodqc/internal/errors"
	"periodqc/internal/metrics"
	"periodqc/internal/params"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// Tolerance is an optional pair of limit overrides. Nil fields fall through
// to the next default layer (row cell, then CLI flag, then registry).
type Tolerance struct {
	Lower *float64
	Upper *float64
}

// Defaults carries the CLI-level tolerance defaults applied when a batch row
// omits its own limit cells.
type Defaults struct {
	PeriodLower float64
	PeriodUpper float64
	Param       map[string]Tolerance
}

// Result is the outcome of one batch row: either the three mode values or a
// failure reason. The skip policy is explicit in this type rather than hidden
// in control flow.
type Result struct {
	Line     int
	Star     string
	Match    *float64
	Alias    *float64
	Recovery *float64
	Reason   string
}

// Failed reports whether the row produced no values.
func (r Result) Failed() bool {
	return r.Reason != ""
}

// Report describes a completed batch run.
type Report struct {
	RunID      string
	OutputPath string
	Results    []Result
	Failures   int
}

// Driver processes batch files against a fixed calculator.
type Driver struct {
	calc     *metrics.Calculator
	registry *params.Registry
	log      *internal.Logger
	defaults Defaults
	workers  int
}

// NewDriver creates a batch driver. workers bounds row concurrency; 1 runs
// rows sequentially.
func NewDriver(calc *metrics.Calculator, registry *params.Registry, log *internal.Logger, defaults Defaults, workers int) *Driver {
	if workers < 1 {
		workers = 1
	}
	return &Driver{calc: calc, registry: registry, log: log, defaults: defaults, workers: workers}
}

// paramColumn associates a parameter with its value column and any trailing
// limit-override columns found in the batch header.
type paramColumn struct {
	spec     params.Spec
	valueIdx int
	lowerIdx int // -1 when absent
	upperIdx int
}

// batchFile is a parsed batch CSV.
type batchFile struct {
	header  []string
	records [][]string
	period  int // input_period column index
	params  []paramColumn
}

// Run evaluates the metric for every row of the batch file in all three
// modes and writes `<stem>_output.csv` next to the input with the three
// result columns appended. writeXLSX additionally mirrors the output as a
// workbook.
func (d *Driver) Run(ctx context.Context, metric metrics.Metric, path string, writeXLSX bool) (*Report, error) {
	if _, err := metrics.ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	bf, err := d.parse(path)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()[:8]
	d.log.Info("batch run %s: %s over %d rows (%d workers)", runID, metric, len(bf.records), d.workers)

	results := make([]Result, len(bf.records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, record := range bf.records {
		i, record := i, record
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = d.processRow(metric, bf, i, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "batch processing interrupted")
	}

	failures := 0
	for _, r := range results {
		if r.Failed() {
			d.log.Warn("batch run %s: skipping row %d (star: %s): %s", runID, r.Line, r.Star, r.Reason)
			failures++
		}
	}

	outPath, err := d.write(metric, path, bf, results, writeXLSX)
	if err != nil {
		return nil, err
	}

	d.log.Info("batch run %s: wrote %s results to %s (%d rows, %d skipped)", runID, metric, outPath, len(results), failures)
	return &Report{RunID: runID, OutputPath: outPath, Results: results, Failures: failures}, nil
}

// parse reads the batch CSV and resolves its column layout. The first column
// is the star identifier, `input_period` is required, and a column whose
// header contains "lim" directly after a parameter column overrides that
// parameter's lower (first) or upper (second) limit.
func (d *Driver) parse(path string) (*batchFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.CatalogError(fmt.Sprintf("failed to open batch file %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	all, err := reader.ReadAll()
	if err != nil {
		return nil, errors.CatalogError("failed to parse batch CSV", err)
	}
	if len(all) < 2 {
		return nil, errors.CatalogError("batch file must have a header row and at least one data row", nil)
	}

	header := all[0]
	if len(header) < 2 {
		return nil, errors.CatalogError("batch file must have at least a star column and input_period", nil)
	}

	bf := &batchFile{header: header, records: all[1:], period: -1}
	for i, name := range header {
		if strings.TrimSpace(name) == "input_period" {
			bf.period = i
			break
		}
	}
	if bf.period < 0 {
		return nil, errors.CatalogError("batch file is missing the required input_period column", nil)
	}

	for i, name := range header {
		name = strings.TrimSpace(name)
		if !d.registry.Has(name) {
			continue
		}
		spec, _ := d.registry.Lookup(name)
		pc := paramColumn{spec: spec, valueIdx: i, lowerIdx: -1, upperIdx: -1}
		if i+1 < len(header) && isLimitColumn(header[i+1]) {
			pc.lowerIdx = i + 1
		}
		if i+2 < len(header) && pc.lowerIdx >= 0 && isLimitColumn(header[i+2]) {
			pc.upperIdx = i + 2
		}
		bf.params = append(bf.params, pc)
	}

	return bf, nil
}

func isLimitColumn(name string) bool {
	return strings.Contains(strings.ToLower(name), "lim")
}

// processRow evaluates all three modes for one row. Any core error fails the
// whole row; the error is recorded, not propagated.
func (d *Driver) processRow(metric metrics.Metric, bf *batchFile, idx int, record []string) Result {
	line := idx + 2
	result := Result{Line: line, Star: cell(record, 0)}

	query, err := d.rowQuery(bf, record)
	if err != nil {
		result.Reason = err.Error()
		return result
	}

	for _, mode := range []metrics.Mode{metrics.ModeMatch, metrics.ModeAlias, metrics.ModeRecovery} {
		q := query
		q.Mode = mode

		var value float64
		if metric == metrics.MetricReliability {
			value, err = d.calc.Reliability(q)
		} else {
			value, err = d.calc.Completeness(q)
		}
		if err != nil {
			return Result{Line: line, Star: result.Star, Reason: err.Error()}
		}

		switch mode {
		case metrics.ModeMatch:
			result.Match = &value
		case metrics.ModeAlias:
			result.Alias = &value
		case metrics.ModeRecovery:
			result.Recovery = &value
		}
	}

	return result
}

// rowQuery assembles the per-row query: the row supplies the period and
// parameter values, row limit cells override CLI defaults, and the registry
// fills whatever remains.
func (d *Driver) rowQuery(bf *batchFile, record []string) (metrics.Query, error) {
	raw := cell(record, bf.period)
	if raw == "" {
		return metrics.Query{}, errors.ValidationError("missing input_period")
	}
	period, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad input_period %q", raw))
	}

	q := metrics.Query{
		Period:      period,
		PeriodLower: d.defaults.PeriodLower,
		PeriodUpper: d.defaults.PeriodUpper,
	}

	for _, pc := range bf.params {
		rawVal := cell(record, pc.valueIdx)
		if rawVal == "" {
			continue
		}
		value, err := strconv.ParseFloat(rawVal, 64)
		if err != nil {
			return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad %s value %q", pc.spec.Name, rawVal))
		}

		pv := metrics.ParamValue{Name: pc.spec.Name, Value: value}
		if def, ok := d.defaults.Param[pc.spec.Name]; ok {
			pv.Lower = def.Lower
			pv.Upper = def.Upper
		}
		if pc.lowerIdx >= 0 {
			if v, ok, err := parseCell(record, pc.lowerIdx); err != nil {
				return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad %s lower limit", pc.spec.Name))
			} else if ok {
				pv.Lower = &v
			}
		}
		if pc.upperIdx >= 0 {
			if v, ok, err := parseCell(record, pc.upperIdx); err != nil {
				return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad %s upper limit", pc.spec.Name))
			} else if ok {
				pv.Upper = &v
			}
		}
		q.Params = append(q.Params, pv)
	}

	return q, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseCell(record []string, i int) (float64, bool, error) {
	raw := cell(record, i)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil, err
}

// write emits the output table: the input columns unchanged plus the three
// result columns. Failed rows get blank cells.
func (d *Driver) write(metric metrics.Metric, inputPath string, bf *batchFile, results []Result, writeXLSX bool) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(filepath.Dir(inputPath), stem+"_output.csv")

	header := append(append([]string{}, bf.header...),
		fmt.Sprintf("%s_match", metric),
		fmt.Sprintf("%s_alias", metric),
		fmt.Sprintf("%s_recovery", metric),
	)

	table := [][]string{header}
	for i, record := range bf.records {
		row := append([]string{}, record...)
		for len(row) < len(bf.header) {
			row = append(row, "")
		}
		row = append(row, formatValue(results[i].Match), formatValue(results[i].Alias), formatValue(results[i].Recovery))
		table = append(table, row)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", errors.CatalogError(fmt.Sprintf("failed to create output file %s", outPath), err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.WriteAll(table); err != nil {
		return "", errors.CatalogError("failed to write output CSV", err)
	}

	if writeXLSX {
		xlsxPath := filepath.Join(filepath.Dir(inputPath), stem+"_output.xlsx")
		if err := writeWorkbook(xlsxPath, table); err != nil {
			return "", err
		}
		d.log.Info("wrote workbook mirror to %s", xlsxPath)
	}

	return outPath, nil
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func writeWorkbook(path string, table [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range table {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.CatalogError("failed to build workbook cell reference", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cellRef, &values); err != nil {
			return errors.CatalogError("failed to write workbook row", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.CatalogError(fmt.Sprintf("failed to save workbook %s", path), err)
	}
	return nil
}
