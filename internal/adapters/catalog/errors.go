package catalog

import (
	"errors"
	"fmt"
)

// Sentinel kinds for catalog errors.
var (
	ErrEmptyQuery        = errors.New("search query is empty")
	ErrUpstream          = errors.New("catalog returned an error status")
	ErrMalformedResponse = errors.New("catalog response could not be decoded")
	ErrUnavailable       = errors.New("movie catalog unavailable")
)

// UpstreamError carries the status and a truncated body of a non-2xx reply.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog returned status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }
