package registry

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/farmlot/go-registry/middleware/tokengate"
	"github.com/goliatone/go-router"
)

// RouteGate wires the token middleware into protected routes and
// translates domain errors into JSON responses.
type RouteGate struct {
	auth         Authenticator
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewRouteGate(auther Authenticator, cfg Config) *RouteGate {
	g := &RouteGate{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	g.ErrorHandler = g.defaultErrHandler

	return g
}

// ProtectedRoute admits any authenticated caller whose role is in the
// given set. An empty set admits every authenticated caller.
func (g *RouteGate) ProtectedRoute(roles ...Role) router.MiddlewareFunc {
	required := make([]string, len(roles))
	for i, role := range roles {
		required[i] = string(role)
	}

	return tokengate.New(tokengate.Config{
		ErrorHandler:    g.gateErrHandler,
		ContextKey:      g.cfg.GetContextKey(),
		TokenLookup:     g.cfg.GetTokenLookup(),
		AuthScheme:      g.cfg.GetAuthScheme(),
		TokenValidator:  g.tokenValidator(),
		RequiredRoles:   required,
		ContextEnricher: ContextEnricherAdapter,
	})
}

// AdminRoute admits only admin callers.
func (g *RouteGate) AdminRoute() router.MiddlewareFunc {
	return g.ProtectedRoute(RoleAdmin)
}

func (g *RouteGate) tokenValidator() tokengate.TokenValidator {
	return gateValidator{auth: g.auth}
}

type gateValidator struct {
	auth Authenticator
}

func (v gateValidator) Validate(tokenString string) (tokengate.AuthClaims, error) {
	claims, err := v.auth.AuthenticateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return gateClaims{AuthClaims: claims}, nil
}

// gateClaims adapts verified claims to the middleware's string-based
// role view.
type gateClaims struct {
	AuthClaims
}

func (c gateClaims) Role() string             { return string(c.AuthClaims.Role()) }
func (c gateClaims) HasRole(role string) bool { return c.AuthClaims.HasRole(Role(role)) }

// ContextEnricherAdapter stores validated claims in the standard
// context so services reached from a handler can read them back.
func ContextEnricherAdapter(c context.Context, claims tokengate.AuthClaims) context.Context {
	switch v := claims.(type) {
	case gateClaims:
		return WithClaimsContext(c, v.AuthClaims)
	case AuthClaims:
		return WithClaimsContext(c, v)
	default:
		return c
	}
}

func (g *RouteGate) gateErrHandler(c router.Context, err error) error {
	var richErr *errors.Error

	switch {
	case IsTokenExpiredError(err):
		richErr = ErrTokenExpired
	case IsMalformedError(err):
		richErr = ErrTokenMalformed
	case errors.As(err, &richErr):
	default:
		richErr = errors.Wrap(err, errors.CategoryAuth, "invalid authentication token").
			WithTextCode(TextCodeUnauthenticated).
			WithCode(errors.CodeUnauthorized)
	}

	return g.ErrorHandler(c, richErr)
}

func (g *RouteGate) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "an unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Info(
		"request error",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}
