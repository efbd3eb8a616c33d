// Package aggregate folds deduplicated sale records into one summary row
// per (borough, neighborhood, building category, year) group.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"nycsales/internal/errors"
	"nycsales/pkg/contracts/domain"
)

// Version of the aggregation stage, recorded in run report provenance.
const Version = "1.1.0"

// Aggregator computes grouped price statistics. It holds no state between
// runs.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A nil logger falls back to
// slog.Default().
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Aggregate groups records by (borough name, neighborhood, building
// category, sale year) and computes count, mean, median, min and max of the
// sale price per group. Groups are returned sorted lexicographically on the
// key tuple so repeated runs emit identical tables.
//
// A record with an empty group field is an integrity error: normalization
// guarantees those fields, so encountering one means a stage upstream broke
// its contract and the run must not publish numbers built on it.
func (a *Aggregator) Aggregate(ctx context.Context, records []domain.SaleRecord) ([]domain.GroupSummary, error) {
	groups := make(map[domain.GroupKey][]int64)

	for i, rec := range records {
		if rec.BoroughName == "" || rec.Neighborhood == "" || rec.BuildingCategory == "" || rec.SaleYear == 0 {
			return nil, errors.NewIntegrityError(
				fmt.Sprintf("record %d has an empty group field (borough=%q neighborhood=%q category=%q year=%d)",
					i, rec.BoroughName, rec.Neighborhood, rec.BuildingCategory, rec.SaleYear), nil)
		}
		key := domain.GroupKey{
			BoroughName:      rec.BoroughName,
			Neighborhood:     rec.Neighborhood,
			BuildingCategory: rec.BuildingCategory,
			Year:             rec.SaleYear,
		}
		groups[key] = append(groups[key], rec.SalePrice)
	}

	summaries := make([]domain.GroupSummary, 0, len(groups))
	for key, prices := range groups {
		summaries = append(summaries, summarize(key, prices))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return lessKey(summaries[i].GroupKey, summaries[j].GroupKey)
	})

	a.logger.InfoContext(ctx, "records aggregated",
		slog.Int("records", len(records)),
		slog.Int("groups", len(summaries)))

	return summaries, nil
}

func summarize(key domain.GroupKey, prices []int64) domain.GroupSummary {
	min, max := prices[0], prices[0]
	var sum int64
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		sum += p
	}

	return domain.GroupSummary{
		GroupKey:    key,
		NumSales:    len(prices),
		AvgPrice:    float64(sum) / float64(len(prices)),
		MedianPrice: median(prices),
		MinPrice:    min,
		MaxPrice:    max,
	}
}

// median uses the standard definition: the middle value for odd counts, the
// mean of the two middle values for even counts. The input is copied before
// sorting; callers rely on price order matching record order.
func median(prices []int64) float64 {
	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return (float64(sorted[mid-1]) + float64(sorted[mid])) / 2
}

func lessKey(a, b domain.GroupKey) bool {
	if a.BoroughName != b.BoroughName {
		return a.BoroughName < b.BoroughName
	}
	if a.Neighborhood != b.Neighborhood {
		return a.Neighborhood < b.Neighborhood
	}
	if a.BuildingCategory != b.BuildingCategory {
		return a.BuildingCategory < b.BuildingCategory
	}
	return a.Year < b.Year
}
