// Package metrics derives the year-over-year series and the headline
// borough-by-year indicators from group summaries. It runs after the
// aggregation barrier and touches no raw records.
package metrics

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"nycsales/pkg/contracts/domain"
)

// Version of the metrics stage, recorded in run report provenance.
const Version = "1.0.0"

// Engine computes derived statistics over group summaries. Stateless apart
// from its logger.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a metrics engine. A nil logger falls back to
// slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// ApplyYoY returns a copy of the summaries with YoYPct filled in: the
// percentage change of a group's median price against the same series one
// year earlier, rounded to one decimal. YoYPct stays nil for a series'
// first year, for a gap year (no y-1 summary), and when the prior median is
// zero. Input order is preserved.
func (e *Engine) ApplyYoY(ctx context.Context, summaries []domain.GroupSummary) []domain.GroupSummary {
	medians := make(map[domain.SeriesKey]map[int]float64, len(summaries))
	for _, s := range summaries {
		key := seriesKey(s)
		if medians[key] == nil {
			medians[key] = make(map[int]float64)
		}
		medians[key][s.Year] = s.MedianPrice
	}

	out := make([]domain.GroupSummary, len(summaries))
	defined := 0
	for i, s := range summaries {
		out[i] = s
		if prev, ok := medians[seriesKey(s)][s.Year-1]; ok && prev != 0 {
			pct := Round1((s.MedianPrice - prev) / prev * 100)
			out[i].YoYPct = &pct
			defined++
		}
	}

	e.logger.InfoContext(ctx, "yoy changes computed",
		slog.Int("groups", len(summaries)),
		slog.Int("defined", defined))

	return out
}

// BuildSeries links summaries into year-ordered median series, one per
// (borough, neighborhood, category) key, sorted by key. Summaries should
// already carry YoYPct; BuildSeries copies it through.
func (e *Engine) BuildSeries(summaries []domain.GroupSummary) []domain.YoYSeries {
	byKey := make(map[domain.SeriesKey][]domain.YoYPoint)
	for _, s := range summaries {
		key := seriesKey(s)
		byKey[key] = append(byKey[key], domain.YoYPoint{
			Year:   s.Year,
			Median: s.MedianPrice,
			YoYPct: s.YoYPct,
		})
	}

	series := make([]domain.YoYSeries, 0, len(byKey))
	for key, points := range byKey {
		sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
		series = append(series, domain.YoYSeries{Key: key, Points: points})
	}

	sort.Slice(series, func(i, j int) bool { return lessSeriesKey(series[i].Key, series[j].Key) })
	return series
}

func seriesKey(s domain.GroupSummary) domain.SeriesKey {
	return domain.SeriesKey{
		BoroughName:      s.BoroughName,
		Neighborhood:     s.Neighborhood,
		BuildingCategory: s.BuildingCategory,
	}
}

func lessSeriesKey(a, b domain.SeriesKey) bool {
	if a.BoroughName != b.BoroughName {
		return a.BoroughName < b.BoroughName
	}
	if a.Neighborhood != b.Neighborhood {
		return a.Neighborhood < b.Neighborhood
	}
	return a.BuildingCategory < b.BuildingCategory
}

// Round1 rounds to one decimal, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
