package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog(
		[]GeographyEntry{{Code: "S200", Name: "Los Angeles"}},
		[]ItemEntry{{Code: "SAF", Name: "Food and beverages"}, {Code: "SAH", Name: "Housing"}},
	)
}

func TestEnrich(t *testing.T) {
	obs := []Observation{{
		SeriesID:   "CUURS200SAF",
		Year:       "2024",
		Period:     "M02",
		PeriodName: "February",
		Latest:     true,
		Value:      "342.117",
		Footnotes:  []Footnote{{}},
	}}

	records, stats, err := Enrich(obs, testCatalog())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, EnrichedRecord{
		ID:         "CUURS200SAF",
		AreaName:   "Los Angeles",
		ItemName:   "Food and beverages",
		Year:       "2024",
		Period:     "M02",
		PeriodName: "February",
		Latest:     true,
		Value:      "342.117",
		Footnotes:  []Footnote{{}},
	}, records[0])
	assert.Equal(t, EnrichStats{}, stats)
}

func TestEnrich_LeftJoinKeepsUnmatchedRows(t *testing.T) {
	obs := []Observation{
		{SeriesID: "CUURS999SAH", Year: "2024", Period: "M01", Value: "1"},
		{SeriesID: "CUURS200SEF", Year: "2024", Period: "M01", Value: "2"},
		{SeriesID: "CUURS200SAF", Year: "2024", Period: "M01", Value: "3"},
	}

	records, stats, err := Enrich(obs, testCatalog())
	require.NoError(t, err)
	require.Len(t, records, len(obs))

	assert.Empty(t, records[0].AreaName)
	assert.Equal(t, "Housing", records[0].ItemName)

	assert.Equal(t, "Los Angeles", records[1].AreaName)
	assert.Empty(t, records[1].ItemName)

	assert.Equal(t, "Los Angeles", records[2].AreaName)
	assert.Equal(t, "Food and beverages", records[2].ItemName)

	assert.Equal(t, EnrichStats{UnmatchedAreas: 1, UnmatchedItems: 1}, stats)
}

func TestEnrich_InvalidIdentifier(t *testing.T) {
	_, _, err := Enrich([]Observation{{SeriesID: "CUUR"}}, testCatalog())
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestEnrichedRecord_Columns(t *testing.T) {
	rec := EnrichedRecord{
		ID:         "CUURS200SAF",
		AreaName:   "Los Angeles",
		ItemName:   "Food and beverages",
		Year:       "2024",
		Period:     "M02",
		PeriodName: "February",
		Latest:     true,
		Value:      "342.117",
	}

	cols, err := rec.Columns()
	require.NoError(t, err)

	assert.Len(t, cols, len(OutputHeader))
	assert.Equal(t, []string{
		"CUURS200SAF", "Los Angeles", "Food and beverages", "2024", "M02", "February", "true", "342.117", "[]",
	}, cols)
}
