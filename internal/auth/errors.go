package auth

import "errors"

var (
	// ErrUnauthenticated covers unknown email, digest mismatch and inactive
	// identities alike so callers cannot tell which case occurred.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrTokenInvalid marks malformed, unsigned or unknown tokens, including
	// reset tokens that never existed or were already consumed.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrTokenExpired marks a well-formed token past its expiry. Kept distinct
	// from ErrTokenInvalid so clients can choose silent refresh over re-login.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrForbidden marks a valid identity with insufficient permissions.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrConflict marks duplicate registration.
	ErrConflict = errors.New("auth: already exists")

	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)
