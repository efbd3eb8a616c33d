package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nycsales/pkg/contracts/domain"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"already clean", "BOROUGH", "BOROUGH"},
		{"lowercase", "neighborhood", "NEIGHBORHOOD"},
		{"surrounding space", "  ADDRESS  ", "ADDRESS"},
		{"embedded newline", "SALE\nPRICE", "SALE PRICE"},
		{"newline runs", "APART\nMENT\nNUMBER", "APART MENT NUMBER"},
		{"double spaces", "LAND  SQUARE  FEET", "LAND SQUARE FEET"},
		{"tabs", "ZIP\tCODE", "ZIP CODE"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.label))
		})
	}
}

func TestDefaultAliasTable_Resolve(t *testing.T) {
	table := DefaultAliasTable()

	tests := []struct {
		name  string
		label string
		want  string
		ok    bool
	}{
		{"canonical passthrough", "BOROUGH", domain.ColBorough, true},
		{"hyphenated easement", "EASE-MENT", domain.ColEasement, true},
		{"plain easement", "EASEMENT", domain.ColEasement, true},
		{"tax class final roll", "TAX CLASS AS OF FINAL ROLL 18/19", domain.ColTaxClassPresent, true},
		{"tax class final roll other vintage", "TAX CLASS AS OF FINAL ROLL 17/18", domain.ColTaxClassPresent, true},
		{"building class final roll", "BUILDING CLASS AS OF FINAL ROLL 18/19", domain.ColBuildingClassPresent, true},
		{"split apartment number", "APART\nMENT\nNUMBER", domain.ColApartmentNumber, true},
		{"joined apartment number", "APARTMENT NUMBER", domain.ColApartmentNumber, true},
		{"wrapped residential units", "RESIDENTIAL\nUNITS", domain.ColResidentialUnits, true},
		{"concatenated units", "COMMERCIALUNITS", domain.ColCommercialUnits, true},
		{"wrapped square feet", "GROSS\nSQUARE FEET", domain.ColGrossSquareFeet, true},
		{"wrapped sale price", "SALE\nPRICE", domain.ColSalePrice, true},
		{"lowercase sale date", "sale date", domain.ColSaleDate, true},
		{"building class at sale wrapped", "BUILDING CLASS\nAT TIME OF SALE", domain.ColBuildingClassAtSale, true},
		{"unknown header", "LOT FRONTAGE", "", false},
		{"empty cell", "", "", false},
		{"blank cell", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Resolve(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultAliasTable_ResolvesEveryCanonicalColumn(t *testing.T) {
	table := DefaultAliasTable()
	for _, col := range domain.CanonicalColumns() {
		got, ok := table.Resolve(col)
		require.True(t, ok, "column %q must resolve to itself", col)
		assert.Equal(t, col, got)
	}
}

func TestLoadAliasTable(t *testing.T) {
	t.Run("appends site rules to defaults", func(t *testing.T) {
		path := writeAliasFile(t, `
rules:
  - match: "BORO(UGH)? CODE"
    canonical: "BOROUGH"
  - pattern: "^SOLD ON$"
    replace: "SALE DATE"
`)
		table, err := LoadAliasTable(path)
		require.NoError(t, err)

		got, ok := table.Resolve("BORO CODE")
		require.True(t, ok)
		assert.Equal(t, domain.ColBorough, got)

		got, ok = table.Resolve("SOLD ON")
		require.True(t, ok)
		assert.Equal(t, domain.ColSaleDate, got)

		// Defaults still apply.
		got, ok = table.Resolve("EASE-MENT")
		require.True(t, ok)
		assert.Equal(t, domain.ColEasement, got)
	})

	t.Run("rejects non-canonical target", func(t *testing.T) {
		path := writeAliasFile(t, `
rules:
  - match: "BORO"
    canonical: "BOROUGH CODE"
`)
		_, err := LoadAliasTable(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a canonical column")
	})

	t.Run("rejects invalid regex", func(t *testing.T) {
		path := writeAliasFile(t, `
rules:
  - match: "BORO["
    canonical: "BOROUGH"
`)
		_, err := LoadAliasTable(path)
		require.Error(t, err)
	})

	t.Run("rejects incomplete rule", func(t *testing.T) {
		path := writeAliasFile(t, `
rules:
  - match: "BORO"
`)
		_, err := LoadAliasTable(path)
		require.Error(t, err)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		path := writeAliasFile(t, "rules: [\n")
		_, err := LoadAliasTable(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadAliasTable(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func writeAliasFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
