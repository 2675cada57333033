package config

import "errors"

// Load and Validate wrap one of these.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrLoadConfig    = errors.New("failed to load configuration")
)
