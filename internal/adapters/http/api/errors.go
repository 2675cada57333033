package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrStatsUnavailable = errors.New("stats unavailable")
)
