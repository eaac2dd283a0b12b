package domain

import "errors"

// Error kinds surfaced by the ETL. Callers wrap these with context and match
// them with errors.Is.
var (
	// ErrMalformedReferenceData means a reference feed row is missing its code
	// or name column. Fatal for catalog construction.
	ErrMalformedReferenceData = errors.New("malformed reference data")

	// ErrTransientNetwork means the API call failed at the connection level or
	// with a server-side 5xx after any configured retries were exhausted.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrRateLimited means the API rejected the call because of throttling or
	// an exhausted daily quota.
	ErrRateLimited = errors.New("rate limited")

	// ErrRequestRefused means the API declined the request for a reason other
	// than quota, such as an invalid registration key. Every later request
	// would be refused the same way.
	ErrRequestRefused = errors.New("request refused")

	// ErrMalformedResponse means the API payload did not have the expected
	// Results.series[].data[] shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidIdentifier means a series ID is too short to hold an area and
	// an item code.
	ErrInvalidIdentifier = errors.New("invalid identifier format")
)
