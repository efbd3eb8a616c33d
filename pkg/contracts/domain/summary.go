package domain

// GroupKey identifies one aggregation group. Year is the sale year; the
// remaining fields are the normalized grouping strings.
type GroupKey struct {
	BoroughName      string `json:"borough_name"`
	Neighborhood     string `json:"neighborhood"`
	BuildingCategory string `json:"building_class_category"`
	Year             int    `json:"year"`
}

// GroupSummary is the aggregate of all sales in one group.
//
// YoYPct is the year-over-year change of MedianPrice against the same
// group's previous year, in percent rounded to one decimal. It is nil for a
// group's first observed year, when the previous year is missing, and when
// the previous median is zero.
type GroupSummary struct {
	GroupKey
	NumSales    int      `json:"num_sales"`
	AvgPrice    float64  `json:"avg_sale_price"`
	MedianPrice float64  `json:"median_sale_price"`
	MinPrice    int64    `json:"min_sale_price"`
	MaxPrice    int64    `json:"max_sale_price"`
	YoYPct      *float64 `json:"yoy_median_change_pct,omitempty"`
}

// SeriesKey identifies a year series: a group key without the year.
type SeriesKey struct {
	BoroughName      string `json:"borough_name"`
	Neighborhood     string `json:"neighborhood"`
	BuildingCategory string `json:"building_class_category"`
}

// YoYPoint is one year of a median series.
type YoYPoint struct {
	Year   int      `json:"year"`
	Median float64  `json:"median_sale_price"`
	YoYPct *float64 `json:"yoy_median_change_pct,omitempty"`
}

// YoYSeries is the year-ordered median history of one series key.
type YoYSeries struct {
	Key    SeriesKey  `json:"key"`
	Points []YoYPoint `json:"points"`
}
