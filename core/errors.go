package core

import "errors"

var (
	// ErrInvalidToken covers absent, malformed, unknown and expired tokens
	ErrInvalidToken = errors.New("invalid token")

	// ErrStoreUnavailable is returned when the session store cannot be read or written
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrSweepPartialFailure is returned when a sweep could not delete every expired session
	ErrSweepPartialFailure = errors.New("sweep partially failed")

	ErrTokenExists        = errors.New("token already exists")
	ErrTokenNotFound      = errors.New("token not found")
	ErrInvalidSubject     = errors.New("invalid subject")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
