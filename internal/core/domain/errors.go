package domain

import "errors"

var (
	// ErrMalformedRecord marks an input line that cannot become a task.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNoEndpoints is returned when no upstream endpoint is configured.
	ErrNoEndpoints = errors.New("no endpoints configured")
)
