// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity or remote resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a compare-and-set write lost against a concurrent writer.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed operator authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingConfig is matched by every ConfigurationError.
	ErrMissingConfig = errors.New("missing configuration")
)
