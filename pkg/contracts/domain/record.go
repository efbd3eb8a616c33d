package domain

import (
	"time"
)

// SaleRecord is the Single Source of Truth for one property transaction.
// All downstream consumers (deduplication, aggregation, metrics, exports,
// the data API) operate on this structure; nothing re-reads raw cells after
// normalization.
//
// Field conventions:
//   - Identity and location fields keep their source spelling after trim and
//     case folding; they participate in the dedup natural key as strings so
//     that equality matches the source data, leading zeros included.
//   - Measures that normalization guarantees (Borough, SalePrice, SaleDate)
//     are plain values. Measures the source may omit or garble are pointers
//     and stay nil rather than defaulting to zero.
//   - BoroughName and SaleYear are derived during normalization and never
//     recomputed downstream.
type SaleRecord struct {
	Borough              int       `json:"borough" validate:"required,min=1,max=5"`
	BoroughName          string    `json:"borough_name" validate:"required"`
	Neighborhood         string    `json:"neighborhood" validate:"required"`
	BuildingCategory     string    `json:"building_class_category" validate:"required"`
	TaxClassPresent      string    `json:"tax_class_at_present,omitempty"`
	Block                string    `json:"block,omitempty"`
	Lot                  string    `json:"lot,omitempty"`
	Easement             string    `json:"easement,omitempty"`
	BuildingClassPresent string    `json:"building_class_at_present,omitempty"`
	Address              string    `json:"address,omitempty"`
	ApartmentNumber      string    `json:"apartment_number,omitempty"`
	ZipCode              string    `json:"zip_code,omitempty"`
	ResidentialUnits     *int64    `json:"residential_units,omitempty"`
	CommercialUnits      *int64    `json:"commercial_units,omitempty"`
	TotalUnits           *int64    `json:"total_units,omitempty"`
	LandSquareFeet       *float64  `json:"land_square_feet,omitempty"`
	GrossSquareFeet      *float64  `json:"gross_square_feet,omitempty"`
	YearBuilt            *int64    `json:"year_built,omitempty"`
	TaxClassAtSale       string    `json:"tax_class_at_time_of_sale,omitempty"`
	BuildingClassAtSale  string    `json:"building_class_at_time_of_sale,omitempty"`
	SalePrice            int64     `json:"sale_price" validate:"required,min=1"`
	SaleDate             time.Time `json:"sale_date" validate:"required"`
	SaleYear             int       `json:"sale_year" validate:"required"`
}
