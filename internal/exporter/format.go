package exporter

import (
	"strconv"
	"time"
)

// Cell formatting for exported tables. Forms are fixed so that two runs over
// the same input produce byte-identical files.

// formatPrice renders a price statistic with exactly 2 decimal places,
// so values like 13.4 appear as 13.40 in CSV.
func formatPrice(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatPct renders a percentage with 1 decimal place.
func formatPct(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// formatShare renders a 0..1 share with 4 decimal places.
func formatShare(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Optional cells render as empty strings when the value is absent.

func formatOptPct(f *float64) string {
	if f == nil {
		return ""
	}
	return formatPct(*f)
}

func formatOptShare(f *float64) string {
	if f == nil {
		return ""
	}
	return formatShare(*f)
}

func formatOptPrice(f *float64) string {
	if f == nil {
		return ""
	}
	return formatPrice(*f)
}

func formatOptInt(i *int64) string {
	if i == nil {
		return ""
	}
	return formatInt(*i)
}

// formatOptFloat renders an optional measure with minimal digits: whole
// numbers without a trailing ".0".
func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
