package catalog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"periodqc/domain/catalog"
	"periodqc/internal"
	"periodqc/internal/config"
	"periodqc/internal/errors"
	"periodqc/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testCatalogConfig(path string) config.CatalogConfig {
	return config.CatalogConfig{
		Path:           path,
		TrueColumn:     "Prot",
		MeasuredColumn: "prot_tess",
		StatusColumn:   "status",
		PeriodMin:      0.2,
		PeriodMax:      20,
	}
}

func writeCatalogCSV(t *testing.T, records [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, csv.NewWriter(f).WriteAll(records))
	return path
}

func quietLoader(path string) *Loader {
	return NewLoader(testCatalogConfig(path), params.Default(), internal.NewLogger(internal.LogLevelError))
}

func TestLoadCSV(t *testing.T) {
	path := writeCatalogCSV(t, [][]string{
		{"star", "Prot", "prot_tess", "status", "power", "Tmag", "snr"},
		{"TIC-1", "9.0", "9.05", "match", "0.25", "10.2", "12.5"},
		{"TIC-2", "14.2", "14.1", "alias", "0.40", "11.0", "8.1"},
		{"TIC-3", "25.0", "99.0", "not_recovered", "0.05", "", "3.0"},
	})

	cat, err := quietLoader(path).Load()
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	assert.True(t, cat.HasColumn("power"))
	assert.True(t, cat.HasColumn("Tmag"))
	assert.True(t, cat.HasColumn("snr"))

	row := cat.Rows[0]
	assert.Equal(t, "TIC-1", row.Star)
	assert.Equal(t, 9.0, row.TruePeriod)
	assert.Equal(t, 9.05, row.MeasuredPeriod)
	assert.Equal(t, catalog.StatusMatch, row.Status)
	assert.Equal(t, 0.25, row.Params["power"])

	// TIC-3's blank Tmag stays absent rather than becoming zero.
	_, ok := cat.Rows[2].Params["Tmag"]
	assert.False(t, ok)
}

func TestLoadSkipsInvalidRows(t *testing.T) {
	path := writeCatalogCSV(t, [][]string{
		{"star", "Prot", "prot_tess", "status", "power"},
		{"TIC-1", "9.0", "9.05", "match", "0.25"},
		{"TIC-2", "-1.0", "14.1", "alias", "0.40"},
		{"TIC-3", "12.0", "11.9", "sort_of_match", "0.30"},
		{"TIC-4", "abc", "11.9", "match", "0.30"},
	})

	cat, err := quietLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	assert.Equal(t, "TIC-1", cat.Rows[0].Star)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := quietLoader(filepath.Join(t.TempDir(), "nope.csv")).Load()
		require.Error(t, err)
		assert.Equal(t, errors.CodeCatalogError, errors.GetCode(err))
	})

	t.Run("missing required column", func(t *testing.T) {
		path := writeCatalogCSV(t, [][]string{
			{"star", "Prot", "status", "power"},
			{"TIC-1", "9.0", "match", "0.25"},
		})
		_, err := quietLoader(path).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prot_tess")
	})

	t.Run("all rows invalid", func(t *testing.T) {
		path := writeCatalogCSV(t, [][]string{
			{"star", "Prot", "prot_tess", "status", "power"},
			{"TIC-1", "0", "9.05", "match", "0.25"},
		})
		_, err := quietLoader(path).Load()
		require.Error(t, err)
	})

	t.Run("header only", func(t *testing.T) {
		path := writeCatalogCSV(t, [][]string{
			{"star", "Prot", "prot_tess", "status", "power"},
		})
		_, err := quietLoader(path).Load()
		require.Error(t, err)
	})
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"star", "Prot", "prot_tess", "status", "power"},
		{"TIC-1", 9.0, 9.05, "match", 0.25},
		{"TIC-2", 14.2, 14.1, "alias", 0.40},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	cat, err := quietLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
	assert.Equal(t, 14.2, cat.Rows[1].TruePeriod)
}
