package auth

import "errors"

var (
	// ErrNotConfigured is returned by every token operation when no signing
	// secret was configured.
	ErrNotConfigured = errors.New("token signing secret not configured")
	// ErrMalformedToken is returned when a token is not a structurally valid JWT.
	ErrMalformedToken = errors.New("malformed token")
	// ErrBadSignature is returned when the token MAC does not verify or the
	// token declares an algorithm other than HS256.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrEmptySubject is returned when issuing a token without a subject.
	ErrEmptySubject = errors.New("token subject is empty")
	// ErrHashing wraps internal failures of the credential hasher.
	ErrHashing = errors.New("password hashing failed")
)
