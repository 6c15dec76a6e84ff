// Package common defines shared sentinel errors and small crypto helpers
// used across tokenvault components. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate token id")

	// ErrConfiguration is fatal at startup: a required secret is missing
	// or too short for the configured environment.
	ErrConfiguration = errors.New("configuration error")

	// Token lifecycle errors. These are internal reason codes; the public
	// validation boundary collapses all of them into ErrTokenInvalid so a
	// caller cannot tell why a token was rejected.
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTypeMismatch = errors.New("token type mismatch")
)
