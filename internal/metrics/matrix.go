package metrics

import (
	"context"
	"log/slog"
	"sort"

	"nycsales/pkg/contracts/domain"
)

type matrixCell struct {
	numSales      int
	medians       []float64
	neighborhoods map[string]bool
	defined       int
	positive      int
}

// BuildMatrix derives the borough-by-year metrics table from YoY-annotated
// summaries. Per (borough, year): total sales, the median of the group
// medians, the affordability index (25th percentile of group medians), the
// market breadth (share of defined YoY changes that are positive, nil when
// none is defined), and the count of distinct neighborhoods. Rows are
// sorted by borough name then year.
func (e *Engine) BuildMatrix(ctx context.Context, summaries []domain.GroupSummary) domain.MetricsMatrix {
	type cellKey struct {
		borough string
		year    int
	}

	cells := make(map[cellKey]*matrixCell)
	for _, s := range summaries {
		key := cellKey{borough: s.BoroughName, year: s.Year}
		cell := cells[key]
		if cell == nil {
			cell = &matrixCell{neighborhoods: make(map[string]bool)}
			cells[key] = cell
		}
		cell.numSales += s.NumSales
		cell.medians = append(cell.medians, s.MedianPrice)
		cell.neighborhoods[s.Neighborhood] = true
		if s.YoYPct != nil {
			cell.defined++
			if *s.YoYPct > 0 {
				cell.positive++
			}
		}
	}

	matrix := make(domain.MetricsMatrix, 0, len(cells))
	for key, cell := range cells {
		row := domain.MetricsRow{
			BoroughName:      key.borough,
			Year:             key.year,
			NumSales:         cell.numSales,
			MedianPrice:      percentile(cell.medians, 0.5),
			NumNeighborhoods: len(cell.neighborhoods),
		}

		p25 := percentile(cell.medians, 0.25)
		row.AffordabilityP25 = &p25

		if cell.defined > 0 {
			breadth := float64(cell.positive) / float64(cell.defined)
			row.Breadth = &breadth
		}

		matrix = append(matrix, row)
	}

	sort.Slice(matrix, func(i, j int) bool {
		if matrix[i].BoroughName != matrix[j].BoroughName {
			return matrix[i].BoroughName < matrix[j].BoroughName
		}
		return matrix[i].Year < matrix[j].Year
	})

	e.logger.InfoContext(ctx, "metrics matrix built",
		slog.Int("groups", len(summaries)),
		slog.Int("rows", len(matrix)))

	return matrix
}

// percentile returns the q-quantile of values by linear interpolation at
// rank (n-1)*q over a sorted copy. [10,20,30,40] at q=0.25 yields 17.5.
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := float64(len(sorted)-1) * q
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
