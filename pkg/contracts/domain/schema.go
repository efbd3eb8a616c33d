package domain

// Canonical column names of the rolling-sales spreadsheet layout. Every
// source header must reconcile to exactly one of these.
const (
	ColBorough              = "BOROUGH"
	ColNeighborhood         = "NEIGHBORHOOD"
	ColBuildingCategory     = "BUILDING CLASS CATEGORY"
	ColTaxClassPresent      = "TAX CLASS AT PRESENT"
	ColBlock                = "BLOCK"
	ColLot                  = "LOT"
	ColEasement             = "EASEMENT"
	ColBuildingClassPresent = "BUILDING CLASS AT PRESENT"
	ColAddress              = "ADDRESS"
	ColApartmentNumber      = "APARTMENT NUMBER"
	ColZipCode              = "ZIP CODE"
	ColResidentialUnits     = "RESIDENTIAL UNITS"
	ColCommercialUnits      = "COMMERCIAL UNITS"
	ColTotalUnits           = "TOTAL UNITS"
	ColLandSquareFeet       = "LAND SQUARE FEET"
	ColGrossSquareFeet      = "GROSS SQUARE FEET"
	ColYearBuilt            = "YEAR BUILT"
	ColTaxClassAtSale       = "TAX CLASS AT TIME OF SALE"
	ColBuildingClassAtSale  = "BUILDING CLASS AT TIME OF SALE"
	ColSalePrice            = "SALE PRICE"
	ColSaleDate             = "SALE DATE"
)

// CanonicalColumns returns the canonical schema in layout order. Callers own
// the returned slice.
func CanonicalColumns() []string {
	return []string{
		ColBorough,
		ColNeighborhood,
		ColBuildingCategory,
		ColTaxClassPresent,
		ColBlock,
		ColLot,
		ColEasement,
		ColBuildingClassPresent,
		ColAddress,
		ColApartmentNumber,
		ColZipCode,
		ColResidentialUnits,
		ColCommercialUnits,
		ColTotalUnits,
		ColLandSquareFeet,
		ColGrossSquareFeet,
		ColYearBuilt,
		ColTaxClassAtSale,
		ColBuildingClassAtSale,
		ColSalePrice,
		ColSaleDate,
	}
}

// RawBatch is one spreadsheet read into memory exactly as found: no typing,
// no cleaning, no header resolution. Source is the base file name and is
// carried through skip reporting and provenance.
type RawBatch struct {
	Source string     `json:"source"`
	Rows   [][]string `json:"rows"`
}

// ColumnMap maps a canonical column name to its cell index within a source
// row. Indexes refer to the layout of the batch the map was built from.
type ColumnMap map[string]int

// ResolvedBatch is the reconciler's output contract: the source rows below
// the header, plus the column map that locates every canonical column in
// them.
type ResolvedBatch struct {
	Source  string     `json:"source"`
	Columns ColumnMap  `json:"columns"`
	Rows    [][]string `json:"rows"`
}
