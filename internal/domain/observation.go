package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// OutputHeader is the fixed column layout of the enriched flat file.
var OutputHeader = []string{
	"ID", "area_name", "item_name", "year", "period", "periodName", "latest", "value", "footnotes",
}

// Footnote annotates an observation (e.g. preliminary values).
type Footnote struct {
	Code string `json:"code,omitempty"`
	Text string `json:"text,omitempty"`
}

// Observation is one data point returned by the API, tagged with the series
// it belongs to.
type Observation struct {
	SeriesID   SeriesID   `json:"seriesID"`
	Year       string     `json:"year"`
	Period     string     `json:"period"`
	PeriodName string     `json:"periodName"`
	Latest     Flag       `json:"latest"`
	Value      string     `json:"value"`
	Footnotes  []Footnote `json:"footnotes"`
}

// EnrichedRecord is an observation joined with its area and item names.
// AreaName and ItemName are empty when the code is not in the catalog.
type EnrichedRecord struct {
	ID         SeriesID   `json:"id"`
	AreaName   string     `json:"area_name"`
	ItemName   string     `json:"item_name"`
	Year       string     `json:"year"`
	Period     string     `json:"period"`
	PeriodName string     `json:"periodName"`
	Latest     bool       `json:"latest"`
	Value      string     `json:"value"`
	Footnotes  []Footnote `json:"footnotes"`
}

// Columns renders the record in OutputHeader order.
func (r EnrichedRecord) Columns() ([]string, error) {
	notes, err := FormatFootnotes(r.Footnotes)
	if err != nil {
		return nil, err
	}
	return []string{
		string(r.ID),
		r.AreaName,
		r.ItemName,
		r.Year,
		r.Period,
		r.PeriodName,
		strconv.FormatBool(r.Latest),
		r.Value,
		notes,
	}, nil
}

// FormatFootnotes encodes footnotes as compact JSON. The API pads the list
// with empty objects, which are kept so the column mirrors the payload.
func FormatFootnotes(notes []Footnote) (string, error) {
	if notes == nil {
		notes = []Footnote{}
	}
	b, err := json.Marshal(notes)
	if err != nil {
		return "", fmt.Errorf("encode footnotes: %w", err)
	}
	return string(b), nil
}

// Flag is a boolean the API sends either as a JSON bool or as the string
// "true". Missing or empty means false.
type Flag bool

// UnmarshalJSON accepts true, false, "true", "false", "" and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = false
			return nil
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("parse flag %q: %w", s, err)
		}
		*f = Flag(v)
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Flag(v)
	return nil
}
