package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds methods to deal with authentication and the
// account lifecycle
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, msg RegisterMessage) (*AuthResult, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error
	CreateAdmin(ctx context.Context, email, password string) (*User, error)
	AuthenticateToken(token string) (AuthClaims, error)
}

// TokenService issues and validates signed session tokens
type TokenService interface {
	Issue(claims *JWTClaims) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

// SimpleConfig is a literal Config for wiring and tests
type SimpleConfig struct {
	SigningKey      string
	SigningMethod   string
	ContextKey      string
	TokenExpiration int
	TokenLookup     string
	AuthScheme      string
	Issuer          string
	Audience        []string
}

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c SimpleConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c SimpleConfig) GetTokenExpiration() int { return c.TokenExpiration }

func (c SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization"
	}
	return c.TokenLookup
}

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetIssuer() string { return c.Issuer }

func (c SimpleConfig) GetAudience() []string { return c.Audience }

var _ Config = SimpleConfig{}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] REGISTRY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] REGISTRY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] REGISTRY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] REGISTRY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
