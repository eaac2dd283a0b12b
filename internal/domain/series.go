package domain

import "fmt"

// Fixed fields of a CPI-U series identifier.
const (
	SeriesPrefix     = "CU"
	SeasonalFlag     = "U" // not seasonally adjusted
	PeriodicityFlag  = "R" // monthly
	areaCodeOffset   = len(SeriesPrefix) + len(SeasonalFlag) + len(PeriodicityFlag)
	areaCodeLength   = 4
	itemCodeOffset   = areaCodeOffset + areaCodeLength
	minSeriesIDBytes = itemCodeOffset + 1
)

// SeriesID is a BLS series identifier, e.g. "CUURS200SAF".
type SeriesID string

// EncodeSeriesID builds the identifier for an area and item code. Only the
// layout is fixed; codes are not validated.
func EncodeSeriesID(areaCode, itemCode string) SeriesID {
	return SeriesID(SeriesPrefix + SeasonalFlag + PeriodicityFlag + areaCode + itemCode)
}

// DecodeSeriesID splits an identifier into its area code (bytes 4-8) and item
// code (byte 8 onward). Identifiers too short to carry both fail with
// ErrInvalidIdentifier.
func DecodeSeriesID(id SeriesID) (areaCode, itemCode string, err error) {
	if len(id) < minSeriesIDBytes {
		return "", "", fmt.Errorf("decode %q: %w: want at least %d characters, got %d",
			string(id), ErrInvalidIdentifier, minSeriesIDBytes, len(id))
	}
	s := string(id)
	return s[areaCodeOffset:itemCodeOffset], s[itemCodeOffset:], nil
}

// GenerateSeriesIDs returns one identifier per (geography, item) pair,
// geography-major so the output follows catalog order.
func GenerateSeriesIDs(geographies []GeographyEntry, items []ItemEntry) []SeriesID {
	ids := make([]SeriesID, 0, len(geographies)*len(items))
	for _, g := range geographies {
		for _, it := range items {
			ids = append(ids, EncodeSeriesID(g.Code, it.Code))
		}
	}
	return ids
}
