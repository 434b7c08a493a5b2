package auth

import (
	"fmt"

	"github.com/envlink/envlink/internal/connection"
)

// AuthError reports a failed authentication exchange, carrying the scheme
// attempted and the underlying cause.
type AuthError struct {
	Scheme connection.LoginType
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Scheme, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(scheme connection.LoginType, err error) *AuthError {
	return &AuthError{Scheme: scheme, Err: err}
}
