package health

import "errors"

var (
	// ErrCheckFailed marks results whose check ran and found a failure.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks results synthesized after a check overran
	// its deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned for lookups of unregistered names.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
