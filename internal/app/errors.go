package service

import "errors"

// Sentinel kinds for workflow errors.
var (
	ErrUnknownOwner        = errors.New("unknown owner")
	ErrInvalidID           = errors.New("invalid id")
	ErrMissingDependencies = errors.New("service requires a store and a catalog")
)
