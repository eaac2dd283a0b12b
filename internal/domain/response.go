package domain

import (
	"encoding/json"
	"fmt"
)

// apiResponse mirrors the BLS v2 timeseries payload. Only the fields the ETL
// reads are declared; pointers distinguish "absent" from "empty".
type apiResponse struct {
	Status  string      `json:"status"`
	Message []string    `json:"message"`
	Results *apiResults `json:"Results"`
}

type apiResults struct {
	Series *[]apiSeries `json:"series"`
}

type apiSeries struct {
	SeriesID SeriesID          `json:"seriesID"`
	Data     *[]apiObservation `json:"data"`
}

type apiObservation struct {
	Year       string     `json:"year"`
	Period     string     `json:"period"`
	PeriodName string     `json:"periodName"`
	Latest     Flag       `json:"latest"`
	Value      string     `json:"value"`
	Footnotes  []Footnote `json:"footnotes"`
}

// ParseResponse flattens Results.series[].data[] into observations, copying
// each series' ID onto its data points. The ID appears once per series in the
// payload, never per observation.
func ParseResponse(raw []byte) ([]Observation, error) {
	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if resp.Results == nil || resp.Results.Series == nil {
		return nil, fmt.Errorf("%w: missing Results.series (status %q, message %v)",
			ErrMalformedResponse, resp.Status, resp.Message)
	}

	var out []Observation
	for i, s := range *resp.Results.Series {
		if s.SeriesID == "" {
			return nil, fmt.Errorf("%w: series %d has no seriesID", ErrMalformedResponse, i)
		}
		if s.Data == nil {
			return nil, fmt.Errorf("%w: series %s has no data array", ErrMalformedResponse, s.SeriesID)
		}
		for _, d := range *s.Data {
			out = append(out, Observation{
				SeriesID:   s.SeriesID,
				Year:       d.Year,
				Period:     d.Period,
				PeriodName: d.PeriodName,
				Latest:     d.Latest,
				Value:      d.Value,
				Footnotes:  d.Footnotes,
			})
		}
	}
	return out, nil
}
