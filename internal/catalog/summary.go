package catalog

import (
	"sort"

	"periodqc/domain/catalog"

	"github.com/montanaflynn/stats"
)

// ColumnSummary describes the distribution of one numeric catalog column.
type ColumnSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// Summary describes the loaded catalog: overall size, the status breakdown,
// and per-column distributions for the periods and every parameter column.
type Summary struct {
	Stars        int                    `json:"stars"`
	StatusCounts map[catalog.Status]int `json:"status_counts"`
	Columns      []ColumnSummary        `json:"columns"`
}

// Summarize computes distribution summaries over the catalog.
func Summarize(cat *catalog.Catalog) Summary {
	statusCounts := map[catalog.Status]int{
		catalog.StatusMatch:        0,
		catalog.StatusAlias:        0,
		catalog.StatusNotRecovered: 0,
	}
	values := map[string][]float64{}

	for _, row := range cat.Rows {
		statusCounts[row.Status]++
		values[catalog.ColTruePeriod] = append(values[catalog.ColTruePeriod], row.TruePeriod)
		values[catalog.ColMeasuredPeriod] = append(values[catalog.ColMeasuredPeriod], row.MeasuredPeriod)
		for col, v := range row.Params {
			values[col] = append(values[col], v)
		}
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	summary := Summary{
		Stars:        cat.Len(),
		StatusCounts: statusCounts,
		Columns:      make([]ColumnSummary, 0, len(columns)),
	}
	for _, col := range columns {
		summary.Columns = append(summary.Columns, summarizeColumn(col, values[col]))
	}
	return summary
}

func summarizeColumn(column string, data []float64) ColumnSummary {
	mean, _ := stats.Mean(data)
	stdDev, _ := stats.StandardDeviation(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	median, _ := stats.Median(data)
	q25, _ := stats.Percentile(data, 25)
	q75, _ := stats.Percentile(data, 75)

	return ColumnSummary{
		Column: column,
		Count:  len(data),
		Mean:   mean,
		StdDev: stdDev,
		Min:    min,
		Q25:    q25,
		Median: median,
		Q75:    q75,
		Max:    max,
	}
}
