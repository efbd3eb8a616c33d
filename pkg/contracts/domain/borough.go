package domain

import "strings"

// Borough codes as they appear in the BOROUGH column.
const (
	BoroughManhattan    = 1
	BoroughBronx        = 2
	BoroughBrooklyn     = 3
	BoroughQueens       = 4
	BoroughStatenIsland = 5
)

var boroughNames = map[int]string{
	BoroughManhattan:    "MANHATTAN",
	BoroughBronx:        "BRONX",
	BoroughBrooklyn:     "BROOKLYN",
	BoroughQueens:       "QUEENS",
	BoroughStatenIsland: "STATEN ISLAND",
}

// BoroughName resolves a borough code to its display name. The second return
// is false for codes outside 1..5.
func BoroughName(code int) (string, bool) {
	name, ok := boroughNames[code]
	return name, ok
}

// IsBoroughName reports whether name is one of the five borough display
// names, ignoring case.
func IsBoroughName(name string) bool {
	for _, known := range boroughNames {
		if strings.EqualFold(known, name) {
			return true
		}
	}
	return false
}
