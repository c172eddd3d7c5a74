package errors

import (
	"errors"
	"fmt"
)

// Common error types for the OAuth proxy
var (
	// Client errors
	ErrInvalidClient       = errors.New("invalid client")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrInvalidRedirectURI  = errors.New("invalid redirect URI")
	ErrClientNotFound      = errors.New("client not found")

	// Grant errors
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrCodeConsumed         = errors.New("authorization code already consumed")
	ErrInvalidCodeVerifier  = errors.New("invalid code verifier")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrStateMismatch  = errors.New("state mismatch")

	// Authentication / authorization errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrTokenExpired    = errors.New("token expired")

	// Infrastructure errors
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrStoreUnavailable    = errors.New("token store unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
