package domain

import "fmt"

// EnrichStats counts join misses for one Enrich call.
type EnrichStats struct {
	UnmatchedAreas int
	UnmatchedItems int
}

// Enrich left-joins observations against the catalog. Every observation yields
// exactly one record; codes missing from the catalog leave the name empty.
// The decoded codes are join keys only and are not carried into the record.
func Enrich(observations []Observation, catalog *Catalog) ([]EnrichedRecord, EnrichStats, error) {
	var stats EnrichStats
	records := make([]EnrichedRecord, 0, len(observations))
	for _, obs := range observations {
		areaCode, itemCode, err := DecodeSeriesID(obs.SeriesID)
		if err != nil {
			return nil, stats, fmt.Errorf("enrich: %w", err)
		}

		areaName, ok := catalog.AreaName(areaCode)
		if !ok {
			stats.UnmatchedAreas++
		}
		itemName, ok := catalog.ItemName(itemCode)
		if !ok {
			stats.UnmatchedItems++
		}

		records = append(records, EnrichedRecord{
			ID:         obs.SeriesID,
			AreaName:   areaName,
			ItemName:   itemName,
			Year:       obs.Year,
			Period:     obs.Period,
			PeriodName: obs.PeriodName,
			Latest:     bool(obs.Latest),
			Value:      obs.Value,
			Footnotes:  obs.Footnotes,
		})
	}
	return records, stats, nil
}
