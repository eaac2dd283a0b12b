package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// trailingMetadataColumns is the number of trailing columns (display_level,
// selectable, sort_sequence) dropped from every reference feed row.
const trailingMetadataColumns = 3

var (
	// metroAreaRe matches metropolitan area codes such as "S200".
	metroAreaRe = regexp.MustCompile(`^S\d{3}$`)

	// allItemsRe matches over-aggregated item names: any name starting with
	// "All items", e.g. "All items less food, shelter, and energy" or
	// "All items - old base".
	allItemsRe = regexp.MustCompile(`^All items[\w, ]*`)
)

const sizeClassMarker = "Size Class A"

// ReferenceRow is one reference feed row after the metadata columns are dropped.
type ReferenceRow struct {
	Code string
	Name string
}

// GeographyEntry is a metropolitan area from the cu.area taxonomy.
type GeographyEntry struct {
	Code string
	Name string
}

// ItemEntry is a top-level expenditure category from the cu.item taxonomy.
type ItemEntry struct {
	Code string
	Name string
}

// ParseReferenceLine splits a tab-delimited feed line, discards the trailing
// metadata columns and returns the code and name.
func ParseReferenceLine(line string) (ReferenceRow, error) {
	cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	cols = TrimMetadataColumns(cols)
	if len(cols) < 2 {
		return ReferenceRow{}, fmt.Errorf("%w: expected code and name columns in %q", ErrMalformedReferenceData, line)
	}
	row := ReferenceRow{
		Code: strings.TrimSpace(cols[0]),
		Name: strings.TrimSpace(cols[1]),
	}
	if row.Code == "" {
		return ReferenceRow{}, fmt.Errorf("%w: empty code in %q", ErrMalformedReferenceData, line)
	}
	return row, nil
}

// TrimMetadataColumns drops the trailing metadata columns from a feed row.
func TrimMetadataColumns(cols []string) []string {
	if len(cols) <= trailingMetadataColumns {
		return nil
	}
	return cols[:len(cols)-trailingMetadataColumns]
}

// ParseReferenceLines parses every non-blank line, stopping at the first
// malformed one.
func ParseReferenceLines(lines []string) ([]ReferenceRow, error) {
	rows := make([]ReferenceRow, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := ParseReferenceLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadGeographies parses raw cu.area rows and keeps metropolitan areas only.
// Size-class aggregates share the S### code shape and are excluded by name.
func LoadGeographies(lines []string) ([]GeographyEntry, error) {
	rows, err := ParseReferenceLines(lines)
	if err != nil {
		return nil, fmt.Errorf("load geographies: %w", err)
	}
	return FilterGeographies(rows), nil
}

// FilterGeographies applies the metro-area rules to already parsed rows.
func FilterGeographies(rows []ReferenceRow) []GeographyEntry {
	var out []GeographyEntry
	for _, r := range rows {
		if !metroAreaRe.MatchString(r.Code) || strings.Contains(r.Name, sizeClassMarker) {
			continue
		}
		out = append(out, GeographyEntry(r))
	}
	return out
}

// LoadItems parses raw cu.item rows and keeps top-level categories.
func LoadItems(lines []string) ([]ItemEntry, error) {
	rows, err := ParseReferenceLines(lines)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return FilterItems(rows), nil
}

// FilterItems applies the item rules to already parsed rows: codes shorter
// than four characters, excluding the "All items" aggregates.
func FilterItems(rows []ReferenceRow) []ItemEntry {
	var out []ItemEntry
	for _, r := range rows {
		if len(r.Code) >= 4 || allItemsRe.MatchString(r.Name) {
			continue
		}
		out = append(out, ItemEntry(r))
	}
	return out
}

// Catalog is the filtered reference data for one run. It is read-only after
// NewCatalog returns and safe to share.
type Catalog struct {
	Geographies []GeographyEntry
	Items       []ItemEntry

	areaNames map[string]string
	itemNames map[string]string
}

// NewCatalog indexes the filtered entries by code. Later duplicates win.
func NewCatalog(geographies []GeographyEntry, items []ItemEntry) *Catalog {
	c := &Catalog{
		Geographies: geographies,
		Items:       items,
		areaNames:   make(map[string]string, len(geographies)),
		itemNames:   make(map[string]string, len(items)),
	}
	for _, g := range geographies {
		c.areaNames[g.Code] = g.Name
	}
	for _, it := range items {
		c.itemNames[it.Code] = it.Name
	}
	return c
}

// AreaName returns the geography name for code, if the code is in scope.
func (c *Catalog) AreaName(code string) (string, bool) {
	name, ok := c.areaNames[code]
	return name, ok
}

// ItemName returns the item name for code, if the code is in scope.
func (c *Catalog) ItemName(code string) (string, bool) {
	name, ok := c.itemNames[code]
	return name, ok
}

// SeriesCount is the size of the geography × item cross product.
func (c *Catalog) SeriesCount() int {
	return len(c.Geographies) * len(c.Items)
}
