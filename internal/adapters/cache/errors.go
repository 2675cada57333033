package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrOpen   = errors.New("open catalog cache")
	ErrClosed = errors.New("catalog cache closed")
)
