package domain

// MetricsRow is one (borough, year) cell of the metrics matrix.
//
// AffordabilityP25 is the 25th percentile of the group median prices in that
// borough and year, linearly interpolated; nil when the borough has no
// groups that year. Breadth is the share of groups with a defined
// year-over-year change whose change is positive; nil when no group has a
// defined change.
type MetricsRow struct {
	BoroughName      string   `json:"borough_name"`
	Year             int      `json:"year"`
	NumSales         int      `json:"num_sales"`
	MedianPrice      float64  `json:"median_sale_price"`
	AffordabilityP25 *float64 `json:"affordability_p25,omitempty"`
	Breadth          *float64 `json:"market_breadth,omitempty"`
	NumNeighborhoods int      `json:"num_neighborhoods"`
}

// MetricsMatrix is the full borough-by-year metrics table, sorted by
// borough name then year.
type MetricsMatrix []MetricsRow
