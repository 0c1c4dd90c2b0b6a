package registry

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeEmailExists        = "email_already_exists"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeSignatureInvalid   = "token_signature_invalid"
	TextCodeTokenExpired       = "token_expired"
	TextCodeUnauthenticated    = "unauthenticated"
	TextCodeInsufficientRole   = "insufficient_role"
	TextCodeNotOwner           = "not_owner"
	TextCodeNotFound           = "not_found"
)

// ErrInvalidCredentials is returned for a failed login or password
// change. The message is deliberately generic so callers cannot tell
// whether the email existed.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrEmailAlreadyExists is returned when registration hits an email
// that is already taken.
var ErrEmailAlreadyExists = errors.New("user with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(errors.CodeConflict)

// ErrTokenMalformed is returned when a bearer token cannot be parsed.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrSignatureInvalid is returned when a token parses but its
// signature does not verify against the process signing key.
var ErrSignatureInvalid = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeSignatureInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its expiry claim.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated is the terminal outcome of the authenticate stage
// when no verified identity could be resolved.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrInsufficientRole is returned when the caller's role is not in the
// operation's required set. Evaluated before any ownership check.
var ErrInsufficientRole = errors.New("access denied", errors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(errors.CodeForbidden)

// ErrNotOwner is returned when an authenticated farmer targets a
// resource owned by a different farmer profile.
var ErrNotOwner = errors.New("access denied", errors.CategoryAuthz).
	WithTextCode(TextCodeNotOwner).
	WithCode(errors.CodeForbidden)

// ErrNotFound is returned when a referenced entity is absent.
var ErrNotFound = errors.New("record not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// IsAuthzDenied reports whether err is an authorization (not
// authentication) rejection.
func IsAuthzDenied(err error) bool {
	return errors.Is(err, ErrNotOwner) || errors.Is(err, ErrInsufficientRole)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
