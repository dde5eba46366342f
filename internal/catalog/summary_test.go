package catalog

import (
	"testing"

	"periodqc/domain/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	rows := []catalog.Row{
		{Star: "a", TruePeriod: 8.0, MeasuredPeriod: 8.1, Status: catalog.StatusMatch, Params: map[string]float64{"power": 0.2}},
		{Star: "b", TruePeriod: 10.0, MeasuredPeriod: 10.2, Status: catalog.StatusMatch, Params: map[string]float64{"power": 0.4}},
		{Star: "c", TruePeriod: 12.0, MeasuredPeriod: 24.1, Status: catalog.StatusAlias, Params: map[string]float64{"power": 0.6}},
		{Star: "d", TruePeriod: 14.0, MeasuredPeriod: 3.3, Status: catalog.StatusNotRecovered, Params: map[string]float64{}},
	}
	cat := catalog.New(rows, []string{"power"})

	summary := Summarize(cat)
	assert.Equal(t, 4, summary.Stars)
	assert.Equal(t, 2, summary.StatusCounts[catalog.StatusMatch])
	assert.Equal(t, 1, summary.StatusCounts[catalog.StatusAlias])
	assert.Equal(t, 1, summary.StatusCounts[catalog.StatusNotRecovered])

	// Columns are sorted: Prot, power, prot_tess.
	require.Len(t, summary.Columns, 3)
	assert.Equal(t, "Prot", summary.Columns[0].Column)
	assert.Equal(t, "power", summary.Columns[1].Column)
	assert.Equal(t, "prot_tess", summary.Columns[2].Column)

	prot := summary.Columns[0]
	assert.Equal(t, 4, prot.Count)
	assert.InDelta(t, 11.0, prot.Mean, 1e-9)
	assert.InDelta(t, 8.0, prot.Min, 1e-9)
	assert.InDelta(t, 14.0, prot.Max, 1e-9)
	assert.InDelta(t, 11.0, prot.Median, 1e-9)

	power := summary.Columns[1]
	assert.Equal(t, 3, power.Count)
	assert.InDelta(t, 0.4, power.Mean, 1e-9)
	assert.InDelta(t, 0.4, power.Median, 1e-9)
}
