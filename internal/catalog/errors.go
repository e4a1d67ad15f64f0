package catalog

import "errors"

// Error taxonomy. Anything that reaches a boundary without matching one of
// these is treated as unexpected.
var (
	// ErrSourceUnavailable reports a network or transport fault reaching a remote source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedDocument reports that an expected structural anchor is missing.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrStorage reports a cache medium I/O fault.
	ErrStorage = errors.New("storage fault")
	// ErrNotFound reports an identifier absent from the current record set.
	ErrNotFound = errors.New("not found")
)
