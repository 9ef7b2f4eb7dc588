package auth

import "errors"

var (
	// ErrUnauthorized means the caller presented no credential or a wrong one.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServerMisconfigured means a secret the check depends on is not configured.
	ErrServerMisconfigured = errors.New("server misconfigured")
)
