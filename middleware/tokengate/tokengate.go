package tokengate

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization

	// ErrTokenMissing is returned when no extractor produced a raw token.
	ErrTokenMissing = errors.New("missing or malformed token")
	// ErrAccessDenied is returned when the token is valid but the role
	// check failed.
	ErrAccessDenied = errors.New("access denied")
)

// TokenValidator validates tokens without creating an import cycle
// with the root package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims is the subset of verified claims the gate needs for its
// role checks. The root package's claims satisfy it.
type AuthClaims interface {
	Subject() string
	Role() string
	HasRole(role string) bool
	IsAdmin() bool
}

// Config configures the token gate middleware.
type Config struct {
	// Filter skips the gate for matching requests
	Filter func(router.Context) bool
	// SuccessHandler runs after the token was validated and the role
	// check passed. Defaults to ctx.Next().
	SuccessHandler router.HandlerFunc
	// ErrorHandler receives extraction, validation, and role errors
	ErrorHandler router.ErrorHandler
	// ContextKey is the router locals key the claims are stashed under
	ContextKey string
	// TokenLookup is a comma separated list of source:name pairs,
	// e.g. "header:Authorization,cookie:user"
	TokenLookup string
	// AuthScheme is the expected prefix on header tokens
	AuthScheme string
	// TokenValidator is required
	TokenValidator TokenValidator
	// RequiredRoles, when set, admits only callers whose role is in
	// the set. Role failures are reported through ErrorHandler with
	// an error wrapping ErrAccessDenied.
	RequiredRoles []string
	// ContextEnricher propagates claims to the standard context after
	// a successful validation
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context
}

// New builds the token gate middleware.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := checkRoles(claims, cfg.RequiredRoles); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func checkRoles(claims AuthClaims, roles []string) error {
	if len(roles) == 0 {
		return nil
	}

	for _, role := range roles {
		if claims.HasRole(role) {
			return nil
		}
	}

	return fmt.Errorf("%w: role %q not allowed", ErrAccessDenied, claims.Role())
}

// GetDefaultConfig fills in the zero values of an optional Config.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if errors.Is(err, ErrAccessDenied) {
				return c.Status(router.StatusForbidden).SendString(ErrAccessDenied.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil {
		panic("tokengate: middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}
