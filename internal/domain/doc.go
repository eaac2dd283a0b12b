// Package domain models Bureau of Labor Statistics (BLS) consumer price index
// data and the rules that select, fetch and enrich it.
//
// # Data Source
//
// Observations come from the BLS Public Data API v2
// (https://api.bls.gov/publicAPI/v2/timeseries/data/). Human-readable names
// come from the flat-file taxonomies published next to the CU database at
// https://download.bls.gov/pub/time.series/cu/ (cu.area and cu.item).
//
// # Series Identifiers
//
// A CPI-U series ID is a fixed-width concatenation with no separators:
//
//	CU U R S200 SAF
//	|  | | |    └── item code (variable length, rest of the string)
//	|  | | └─────── area code (4 characters, offset 4-8)
//	|  | └───────── periodicity: R = monthly
//	|  └─────────── seasonal adjustment: U = not seasonally adjusted
//	└────────────── survey prefix
//
// Decoding is positional, so the area code must always be exactly four
// characters. See [EncodeSeriesID] and [DecodeSeriesID].
//
// # Reference Feeds
//
// Both taxonomies are tab-delimited with a header row and five columns:
//
//	area_code  area_name  display_level  selectable  sort_sequence
//	item_code  item_name  display_level  selectable  sort_sequence
//
// The trailing three columns are display metadata and are dropped.
//
// Area filter: only metropolitan areas ("S" + three digits, e.g. S200 =
// Chicago-Naperville-Elgin). Regions and size classes ("Northeast - Size
// Class A") reuse some of those codes and are excluded by name.
//
// Item filter: only codes shorter than four characters (top-level groups such
// as SAF = Food and beverages). "All items" variants are excluded because they
// aggregate every other category.
//
// # API Limits
//
// A registered key allows 50 series per request and a daily request quota.
// The API does not push back synchronously on request rate, so callers pace
// requests themselves; see [Batches] and [MaxSeriesPerRequest].
//
// # Output
//
// Enriched rows are written in the fixed [OutputHeader] column order. The
// latest flag arrives as the string "true" on the most recent observation
// only; every other observation omits it.
package domain
