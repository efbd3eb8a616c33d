package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"nycsales/pkg/contracts/domain"
)

// SalesTestFixtures provides spreadsheet and record fixtures shared by the
// ingestion, schema, and pipeline tests.
type SalesTestFixtures struct {
	TestDataDir string
}

// NewSalesTestFixtures creates a new fixtures manager
func NewSalesTestFixtures(testDataDir string) *SalesTestFixtures {
	return &SalesTestFixtures{
		TestDataDir: testDataDir,
	}
}

// CanonicalHeader returns the canonical header row in layout order.
func (f *SalesTestFixtures) CanonicalHeader() []string {
	return domain.CanonicalColumns()
}

// LegacyHeader returns a header row using the historical spellings that the
// alias table must fold back onto the canonical schema.
func (f *SalesTestFixtures) LegacyHeader() []string {
	return []string{
		"BOROUGH",
		"NEIGHBORHOOD",
		"BUILDING CLASS CATEGORY",
		"TAX CLASS AS OF FINAL ROLL 18/19",
		"BLOCK",
		"LOT",
		"EASE-MENT",
		"BUILDING CLASS AS OF FINAL ROLL 18/19",
		"ADDRESS",
		"APART\nMENT\nNUMBER",
		"ZIP CODE",
		"RESIDENTIAL\nUNITS",
		"COMMERCIAL\nUNITS",
		"TOTAL\nUNITS",
		"LAND\nSQUARE FEET",
		"GROSS\nSQUARE FEET",
		"YEAR BUILT",
		"TAX CLASS AT TIME OF SALE",
		"BUILDING CLASS AT TIME OF SALE",
		"SALE\nPRICE",
		"SALE DATE",
	}
}

// DataRow builds one 21-cell source row with plausible defaults. The caller
// supplies the fields the test cares about.
func (f *SalesTestFixtures) DataRow(borough, neighborhood, category, address string, price int64, saleDate string) []string {
	return []string{
		borough,
		neighborhood,
		category,
		"1",
		"1234",
		"56",
		"",
		"A1",
		address,
		"",
		"11201",
		"1",
		"0",
		"1",
		"2000",
		"1800",
		"1925",
		"1",
		"A1",
		fmt.Sprintf("%d", price),
		saleDate,
	}
}

// GetSampleRecords returns deterministic normalized records spanning two
// years of one Brooklyn group, enough to exercise grouping and YoY.
func (f *SalesTestFixtures) GetSampleRecords() []domain.SaleRecord {
	records := make([]domain.SaleRecord, 0, 4)
	for i, sale := range []struct {
		price int64
		date  time.Time
	}{
		{300000, time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC)},
		{310000, time.Date(2019, 9, 2, 0, 0, 0, 0, time.UTC)},
		{330000, time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)},
		{340000, time.Date(2020, 11, 20, 0, 0, 0, 0, time.UTC)},
	} {
		records = append(records, domain.SaleRecord{
			Borough:          domain.BoroughBrooklyn,
			BoroughName:      "BROOKLYN",
			Neighborhood:     "PARK SLOPE",
			BuildingCategory: "01 ONE FAMILY DWELLINGS",
			Block:            "1234",
			Lot:              fmt.Sprintf("%d", 10+i),
			Address:          fmt.Sprintf("%d 5 AVENUE", 100+i),
			ZipCode:          "11215",
			SalePrice:        sale.price,
			SaleDate:         sale.date,
			SaleYear:         sale.date.Year(),
		})
	}
	return records
}

// WriteCSVFile writes rows as a CSV file under TestDataDir and returns its
// path.
func (f *SalesTestFixtures) WriteCSVFile(t *testing.T, name string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(f.TestDataDir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture csv: %v", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write fixture csv: %v", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush fixture csv: %v", err)
	}
	return path
}

// WriteXLSXFile writes rows to the first sheet of a new workbook under
// TestDataDir and returns its path.
func (f *SalesTestFixtures) WriteXLSXFile(t *testing.T, name string, rows [][]string) string {
	t.Helper()

	wb := excelize.NewFile()
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := wb.SetSheetRow(sheet, cell, &cells); err != nil {
			t.Fatalf("set sheet row: %v", err)
		}
	}

	path := filepath.Join(f.TestDataDir, name)
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("save fixture workbook: %v", err)
	}
	return path
}
