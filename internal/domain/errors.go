package domain

import "errors"

// Closed set of error kinds surfaced by the ingestion core. Callers branch on
// these with errors.Is rather than matching message text.
var (
	// ErrSourceNotFound is returned when a named source key has no match.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNoEnabledSources is returned when a sync is requested but every
	// configured source is disabled.
	ErrNoEnabledSources = errors.New("no enabled sources configured")

	// ErrInvalidSourceType is returned for a source type outside the
	// supported set.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrUnsupportedSourceType is returned when a reader cannot be resolved
	// for a source's declared type.
	ErrUnsupportedSourceType = errors.New("unsupported source type")

	// ErrInvalidTimeout is returned when timeout_ms does not parse to an
	// integer in the accepted range.
	ErrInvalidTimeout = errors.New("timeout_ms must be an integer between 1000 and 120000")

	// ErrInvalidShape is returned when a patch value has the wrong JSON shape.
	ErrInvalidShape = errors.New("value must be a plain object")

	// ErrInvalidSourceData is returned when a feed's payload is not the
	// expected record collection.
	ErrInvalidSourceData = errors.New("invalid source data")

	// ErrFetchFailed wraps transport level failures from remote sources.
	ErrFetchFailed = errors.New("fetch failed")
)
