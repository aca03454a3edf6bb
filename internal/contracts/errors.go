package contracts

import "errors"

var (
	// ErrSourceUnavailable means an input table is missing or unreadable
	ErrSourceUnavailable = errors.New("source table unavailable")

	// ErrSchemaMismatch means a required column is absent
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrMalformedRecord means a cell could not be parsed
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUpstreamNotCompleted means a dependent job was started before its upstream succeeded
	ErrUpstreamNotCompleted = errors.New("upstream job not completed")
)
