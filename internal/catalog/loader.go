// Package catalog loads the star catalog from its supported sources (CSV,
// XLSX, Postgres) and computes per-column summaries. The loaded catalog is
// held read-only for the process lifetime.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"periodqc/domain/catalog"
	"periodqc/internal"
	"periodqc/internal/config"
	"periodqc/internal/errors"
	"periodqc/internal/params"

	"github.com/xuri/excelize/v2"
)

// Loader reads catalog files into domain rows, validating invariants and
// skipping rows that violate them.
type Loader struct {
	cfg      config.CatalogConfig
	registry *params.Registry
	log      *internal.Logger
}

// NewLoader creates a catalog loader.
func NewLoader(cfg config.CatalogConfig, registry *params.Registry, log *internal.Logger) *Loader {
	return &Loader{cfg: cfg, registry: registry, log: log}
}

// Load reads the configured catalog file. The file type is decided by
// extension: .xlsx is read via its first sheet, anything else as CSV.
func (l *Loader) Load() (*catalog.Catalog, error) {
	if _, err := os.Stat(l.cfg.Path); os.IsNotExist(err) {
		return nil, errors.CatalogError(fmt.Sprintf("catalog file not found: %s", l.cfg.Path), err)
	}

	var records [][]string
	var err error
	if strings.EqualFold(filepath.Ext(l.cfg.Path), ".xlsx") {
		records, err = l.readXLSX()
	} else {
		records, err = l.readCSV()
	}
	if err != nil {
		return nil, err
	}

	return l.buildCatalog(records)
}

func (l *Loader) readCSV() ([][]string, error) {
	f, err := os.Open(l.cfg.Path)
	if err != nil {
		return nil, errors.CatalogError("failed to open catalog file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.CatalogError("failed to parse catalog CSV", err)
	}
	return records, nil
}

func (l *Loader) readXLSX() ([][]string, error) {
	f, err := excelize.OpenFile(l.cfg.Path)
	if err != nil {
		return nil, errors.CatalogError("failed to open catalog workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.CatalogError("catalog workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.CatalogError(fmt.Sprintf("failed to read sheet %s", sheets[0]), err)
	}
	return rows, nil
}

// buildCatalog converts raw records into validated domain rows. The first
// record is the header. Rows violating an invariant are logged and skipped so
// they can never reach a ratio computation.
func (l *Loader) buildCatalog(records [][]string) (*catalog.Catalog, error) {
	if len(records) < 2 {
		return nil, errors.CatalogError("catalog must have a header row and at least one data row", nil)
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	trueIdx, ok := index[l.cfg.TrueColumn]
	if !ok {
		return nil, errors.CatalogError(fmt.Sprintf("catalog is missing the true-period column %q", l.cfg.TrueColumn), nil)
	}
	measuredIdx, ok := index[l.cfg.MeasuredColumn]
	if !ok {
		return nil, errors.CatalogError(fmt.Sprintf("catalog is missing the measured-period column %q", l.cfg.MeasuredColumn), nil)
	}
	statusIdx, ok := index[l.cfg.StatusColumn]
	if !ok {
		return nil, errors.CatalogError(fmt.Sprintf("catalog is missing the status column %q", l.cfg.StatusColumn), nil)
	}

	// Only registered parameter columns are ingested; anything else in the
	// file is informational.
	paramCols := make(map[string]int)
	for _, col := range l.registry.Columns() {
		if i, ok := index[col]; ok {
			paramCols[col] = i
		}
	}

	var rows []catalog.Row
	skipped := 0
	for n, record := range records[1:] {
		row, err := l.parseRow(record, n+2, trueIdx, measuredIdx, statusIdx, paramCols)
		if err != nil {
			l.log.Warn("skipping catalog line %d: %v", n+2, err)
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.CatalogError("catalog contains no valid rows", nil)
	}
	if skipped > 0 {
		l.log.Warn("catalog loaded with %d invalid rows skipped (%d kept)", skipped, len(rows))
	}
	l.log.Info("catalog loaded: %d stars, %d parameter columns", len(rows), len(paramCols))

	paramColumns := make([]string, 0, len(paramCols))
	for col := range paramCols {
		paramColumns = append(paramColumns, col)
	}
	return catalog.New(rows, paramColumns), nil
}

func (l *Loader) parseRow(record []string, line, trueIdx, measuredIdx, statusIdx int, paramCols map[string]int) (catalog.Row, error) {
	cell := func(i int) string {
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	truePeriod, err := strconv.ParseFloat(cell(trueIdx), 64)
	if err != nil {
		return catalog.Row{}, fmt.Errorf("bad true period %q", cell(trueIdx))
	}
	measuredPeriod, err := strconv.ParseFloat(cell(measuredIdx), 64)
	if err != nil {
		return catalog.Row{}, fmt.Errorf("bad measured period %q", cell(measuredIdx))
	}
	status, err := catalog.ParseStatus(cell(statusIdx))
	if err != nil {
		return catalog.Row{}, err
	}

	row := catalog.Row{
		Star:           fmt.Sprintf("line-%d", line),
		TruePeriod:     truePeriod,
		MeasuredPeriod: measuredPeriod,
		Status:         status,
		Params:         make(map[string]float64, len(paramCols)),
	}
	if len(record) > 0 && cell(0) != "" && trueIdx != 0 && measuredIdx != 0 && statusIdx != 0 {
		row.Star = cell(0)
	}

	// Blank parameter cells leave the row usable for unconstrained queries;
	// the window filter excludes it when that parameter is constrained.
	for col, i := range paramCols {
		raw := cell(i)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return catalog.Row{}, fmt.Errorf("bad %s value %q", col, raw)
		}
		row.Params[col] = v
	}

	return row, row.Validate()
}
