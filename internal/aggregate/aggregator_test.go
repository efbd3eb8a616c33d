package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nycsales/internal/errors"
	"nycsales/internal/shared/testutil"
	"nycsales/pkg/contracts/domain"
)

func saleIn(borough int, name, neighborhood, category string, year int, price int64) domain.SaleRecord {
	return domain.SaleRecord{
		Borough:          borough,
		BoroughName:      name,
		Neighborhood:     neighborhood,
		BuildingCategory: category,
		SalePrice:        price,
		SaleDate:         time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
		SaleYear:         year,
	}
}

func TestAggregator_Aggregate(t *testing.T) {
	a := NewAggregator(nil)
	ctx := context.Background()

	t.Run("group statistics", func(t *testing.T) {
		records := []domain.SaleRecord{
			saleIn(3, "BROOKLYN", "PARK SLOPE", "01 ONE FAMILY DWELLINGS", 2020, 100),
			saleIn(3, "BROOKLYN", "PARK SLOPE", "01 ONE FAMILY DWELLINGS", 2020, 400),
			saleIn(3, "BROOKLYN", "PARK SLOPE", "01 ONE FAMILY DWELLINGS", 2020, 300),
			saleIn(3, "BROOKLYN", "PARK SLOPE", "01 ONE FAMILY DWELLINGS", 2020, 200),
		}

		summaries, err := a.Aggregate(ctx, records)
		require.NoError(t, err)
		require.Len(t, summaries, 1)

		s := summaries[0]
		assert.Equal(t, 4, s.NumSales)
		assert.Equal(t, 250.0, s.AvgPrice)
		assert.Equal(t, 250.0, s.MedianPrice, "even count medians average the middle pair")
		assert.Equal(t, int64(100), s.MinPrice)
		assert.Equal(t, int64(400), s.MaxPrice)
		assert.Nil(t, s.YoYPct)
	})

	t.Run("odd count median is the middle value", func(t *testing.T) {
		records := []domain.SaleRecord{
			saleIn(1, "MANHATTAN", "CHELSEA", "13 CONDOS", 2019, 100),
			saleIn(1, "MANHATTAN", "CHELSEA", "13 CONDOS", 2019, 300),
			saleIn(1, "MANHATTAN", "CHELSEA", "13 CONDOS", 2019, 200),
		}

		summaries, err := a.Aggregate(ctx, records)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, 200.0, summaries[0].MedianPrice)
	})

	t.Run("groups split on every key field and sort lexicographically", func(t *testing.T) {
		records := []domain.SaleRecord{
			saleIn(4, "QUEENS", "ASTORIA", "02 TWO FAMILY DWELLINGS", 2020, 700),
			saleIn(3, "BROOKLYN", "PARK SLOPE", "01 ONE FAMILY DWELLINGS", 2021, 500),
			saleIn(3, "BROOKLYN", "PARK SLOPE", "01 ONE FAMILY DWELLINGS", 2020, 400),
			saleIn(3, "BROOKLYN", "PARK SLOPE", "09 COOPS - WALKUP APARTMENTS", 2020, 300),
			saleIn(3, "BROOKLYN", "BAY RIDGE", "01 ONE FAMILY DWELLINGS", 2020, 600),
		}

		summaries, err := a.Aggregate(ctx, records)
		require.NoError(t, err)
		require.Len(t, summaries, 5)

		keys := make([]domain.GroupKey, len(summaries))
		for i, s := range summaries {
			keys[i] = s.GroupKey
		}
		assert.Equal(t, []domain.GroupKey{
			{BoroughName: "BROOKLYN", Neighborhood: "BAY RIDGE", BuildingCategory: "01 ONE FAMILY DWELLINGS", Year: 2020},
			{BoroughName: "BROOKLYN", Neighborhood: "PARK SLOPE", BuildingCategory: "01 ONE FAMILY DWELLINGS", Year: 2020},
			{BoroughName: "BROOKLYN", Neighborhood: "PARK SLOPE", BuildingCategory: "01 ONE FAMILY DWELLINGS", Year: 2021},
			{BoroughName: "BROOKLYN", Neighborhood: "PARK SLOPE", BuildingCategory: "09 COOPS - WALKUP APARTMENTS", Year: 2020},
			{BoroughName: "QUEENS", Neighborhood: "ASTORIA", BuildingCategory: "02 TWO FAMILY DWELLINGS", Year: 2020},
		}, keys)
	})

	t.Run("sample fixture groups by year", func(t *testing.T) {
		fixtures := testutil.NewSalesTestFixtures("")

		summaries, err := a.Aggregate(ctx, fixtures.GetSampleRecords())
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		assert.Equal(t, 2019, summaries[0].Year)
		assert.Equal(t, 305000.0, summaries[0].MedianPrice)
		assert.Equal(t, 2020, summaries[1].Year)
		assert.Equal(t, 335000.0, summaries[1].MedianPrice)
	})

	t.Run("empty group field aborts with an integrity error", func(t *testing.T) {
		records := []domain.SaleRecord{
			saleIn(3, "BROOKLYN", "", "01 ONE FAMILY DWELLINGS", 2020, 100),
		}

		_, err := a.Aggregate(ctx, records)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeIntegrity))
	})

	t.Run("zero year aborts with an integrity error", func(t *testing.T) {
		bad := saleIn(3, "BROOKLYN", "PARK SLOPE", "01 ONE FAMILY DWELLINGS", 2020, 100)
		bad.SaleYear = 0

		_, err := a.Aggregate(ctx, []domain.SaleRecord{bad})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeIntegrity))
	})

	t.Run("no records yields no groups", func(t *testing.T) {
		summaries, err := a.Aggregate(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		prices []int64
		want   float64
	}{
		{"even count", []int64{100, 200, 300, 400}, 250},
		{"odd count", []int64{100, 200, 300}, 200},
		{"single", []int64{42}, 42},
		{"unsorted input", []int64{400, 100, 300, 200}, 250},
		{"repeated values", []int64{100, 100, 200}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := make([]int64, len(tt.prices))
			copy(input, tt.prices)

			assert.Equal(t, tt.want, median(tt.prices))
			assert.Equal(t, input, tt.prices, "median must not reorder its input")
		})
	}
}
