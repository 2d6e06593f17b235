package auth

import "errors"

// Error taxonomy for the authentication and access-control subsystem.
// Every failure is terminal for the request; nothing here is retryable.
var (
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrConflict           = errors.New("auth: username already taken")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUnauthenticated    = errors.New("auth: token required")
	ErrRevoked            = errors.New("auth: token revoked")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: malformed token")
	ErrBadSignature       = errors.New("auth: invalid token signature")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrNotFound           = errors.New("auth: not found")
)

// IsInvalidToken reports whether err means the token itself is broken
// (as opposed to expired or revoked, which call for a re-login).
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrTokenMalformed) || errors.Is(err, ErrBadSignature)
}
