package tokengate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmlot/go-registry/middleware/tokengate"
)

// stubContext implements the handful of router.Context methods the
// gate touches. Everything else panics through the embedded nil
// interface.
// routerContext is an alias so it can be embedded without the field
// name colliding with the Context() method below.
type routerContext = router.Context

type stubContext struct {
	routerContext

	headers map[string]string
	queries map[string]string
	params  map[string]string
	cookies map[string]string
	locals  map[any]any

	ctx        context.Context
	nextCalled bool
	statusCode int
	body       string
}

func newStubContext() *stubContext {
	return &stubContext{
		headers: map[string]string{},
		queries: map[string]string{},
		params:  map[string]string{},
		cookies: map[string]string{},
		locals:  map[any]any{},
		ctx:     context.Background(),
	}
}

func (c *stubContext) Next() error {
	c.nextCalled = true
	return nil
}

func (c *stubContext) GetString(key string, def string) string {
	if v, ok := c.headers[key]; ok {
		return v
	}
	return def
}

func (c *stubContext) Query(key string, def ...string) string {
	if v, ok := c.queries[key]; ok {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

func (c *stubContext) Param(key string, def ...string) string {
	if v, ok := c.params[key]; ok {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

func (c *stubContext) Cookies(key string, def ...string) string {
	if v, ok := c.cookies[key]; ok {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

func (c *stubContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *stubContext) Context() context.Context {
	return c.ctx
}

func (c *stubContext) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *stubContext) Status(code int) router.Context {
	c.statusCode = code
	return c
}

func (c *stubContext) SendString(s string) error {
	c.body = s
	return nil
}

type stubClaims struct {
	subject string
	role    string
}

func (c stubClaims) Subject() string         { return c.subject }
func (c stubClaims) Role() string            { return c.role }
func (c stubClaims) HasRole(role string) bool { return c.role == role }
func (c stubClaims) IsAdmin() bool           { return c.role == "ADMIN" }

type stubValidator struct {
	claims tokengate.AuthClaims
	err    error
}

func (v stubValidator) Validate(string) (tokengate.AuthClaims, error) {
	return v.claims, v.err
}

func passthroughErr(_ router.Context, err error) error { return err }

func noopNext(ctx router.Context) error { return ctx.Next() }

func TestTokenGateHeaderExtraction(t *testing.T) {
	claims := stubClaims{subject: "123", role: "FARMER"}
	mw := tokengate.New(tokengate.Config{
		TokenValidator: stubValidator{claims: claims},
		ErrorHandler:   passthroughErr,
	})

	t.Run("valid bearer token passes through", func(t *testing.T) {
		ctx := newStubContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

		require.NoError(t, mw(noopNext)(ctx))
		assert.True(t, ctx.nextCalled)
		assert.Equal(t, claims, ctx.locals["user"])
	})

	t.Run("missing token stops the chain", func(t *testing.T) {
		ctx := newStubContext()

		err := mw(noopNext)(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, tokengate.ErrTokenMissing))
		assert.False(t, ctx.nextCalled)
	})

	t.Run("wrong scheme reads as missing", func(t *testing.T) {
		ctx := newStubContext()
		ctx.headers[router.HeaderAuthorization] = "Basic dXNlcjpwYXNz"

		err := mw(noopNext)(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, tokengate.ErrTokenMissing))
	})
}

func TestTokenGateCustomLookup(t *testing.T) {
	claims := stubClaims{subject: "123", role: "FARMER"}
	mw := tokengate.New(tokengate.Config{
		TokenValidator: stubValidator{claims: claims},
		ErrorHandler:   passthroughErr,
		TokenLookup:    "query:token,param:jwt,cookie:session",
	})

	t.Run("query", func(t *testing.T) {
		ctx := newStubContext()
		ctx.queries["token"] = "a.b.c"
		require.NoError(t, mw(noopNext)(ctx))
		assert.True(t, ctx.nextCalled)
	})

	t.Run("param", func(t *testing.T) {
		ctx := newStubContext()
		ctx.params["jwt"] = "a.b.c"
		require.NoError(t, mw(noopNext)(ctx))
		assert.True(t, ctx.nextCalled)
	})

	t.Run("cookie", func(t *testing.T) {
		ctx := newStubContext()
		ctx.cookies["session"] = "a.b.c"
		require.NoError(t, mw(noopNext)(ctx))
		assert.True(t, ctx.nextCalled)
	})
}

func TestTokenGateValidatorError(t *testing.T) {
	wantErr := errors.New("token expired")
	mw := tokengate.New(tokengate.Config{
		TokenValidator: stubValidator{err: wantErr},
		ErrorHandler:   passthroughErr,
	})

	ctx := newStubContext()
	ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

	err := mw(noopNext)(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr))
	assert.False(t, ctx.nextCalled)
}

func TestTokenGateRequiredRoles(t *testing.T) {
	newGate := func(claims tokengate.AuthClaims, roles ...string) router.MiddlewareFunc {
		return tokengate.New(tokengate.Config{
			TokenValidator: stubValidator{claims: claims},
			ErrorHandler:   passthroughErr,
			RequiredRoles:  roles,
		})
	}

	t.Run("matching role admitted", func(t *testing.T) {
		ctx := newStubContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

		mw := newGate(stubClaims{role: "FARMER"}, "ADMIN", "FARMER")
		require.NoError(t, mw(noopNext)(ctx))
		assert.True(t, ctx.nextCalled)
	})

	t.Run("role outside the set denied", func(t *testing.T) {
		ctx := newStubContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

		mw := newGate(stubClaims{role: "FARMER"}, "ADMIN")
		err := mw(noopNext)(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, tokengate.ErrAccessDenied))
		assert.False(t, ctx.nextCalled)
	})

	t.Run("empty set admits every verified caller", func(t *testing.T) {
		ctx := newStubContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

		mw := newGate(stubClaims{role: "FARMER"})
		require.NoError(t, mw(noopNext)(ctx))
		assert.True(t, ctx.nextCalled)
	})
}

func TestTokenGateFilter(t *testing.T) {
	mw := tokengate.New(tokengate.Config{
		TokenValidator: stubValidator{err: errors.New("must not run")},
		ErrorHandler:   passthroughErr,
		Filter:         func(router.Context) bool { return true },
	})

	ctx := newStubContext()
	require.NoError(t, mw(noopNext)(ctx))
	assert.True(t, ctx.nextCalled, "filtered requests bypass the gate")
}

func TestTokenGateContextEnricher(t *testing.T) {
	type enrichedKey struct{}

	mw := tokengate.New(tokengate.Config{
		TokenValidator: stubValidator{claims: stubClaims{subject: "123", role: "FARMER"}},
		ErrorHandler:   passthroughErr,
		ContextEnricher: func(c context.Context, claims tokengate.AuthClaims) context.Context {
			return context.WithValue(c, enrichedKey{}, claims.Subject())
		},
	})

	ctx := newStubContext()
	ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

	require.NoError(t, mw(noopNext)(ctx))
	assert.Equal(t, "123", ctx.ctx.Value(enrichedKey{}))
}

func TestTokenGateDefaultErrorHandler(t *testing.T) {
	t.Run("role denial maps to forbidden", func(t *testing.T) {
		ctx := newStubContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

		mw := tokengate.New(tokengate.Config{
			TokenValidator: stubValidator{claims: stubClaims{role: "FARMER"}},
			RequiredRoles:  []string{"ADMIN"},
		})
		require.NoError(t, mw(noopNext)(ctx))
		assert.Equal(t, router.StatusForbidden, ctx.statusCode)
	})

	t.Run("token failure maps to unauthorized", func(t *testing.T) {
		ctx := newStubContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer a.b.c"

		mw := tokengate.New(tokengate.Config{
			TokenValidator: stubValidator{err: errors.New("bad signature")},
		})
		require.NoError(t, mw(noopNext)(ctx))
		assert.Equal(t, router.StatusUnauthorized, ctx.statusCode)
	})
}

func TestGetExtractors(t *testing.T) {
	assert.Len(t, tokengate.GetExtractors("header:Authorization"), 1)
	assert.Len(t, tokengate.GetExtractors("header:Authorization,cookie:session,query:token"), 3)
	assert.Len(t, tokengate.GetExtractors("header:Authorization, param:jwt"), 2)
	assert.Empty(t, tokengate.GetExtractors("garbage"))
}

func TestGetDefaultConfig(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		cfg := tokengate.GetDefaultConfig(tokengate.Config{
			TokenValidator: stubValidator{},
		})
		assert.Equal(t, "user", cfg.ContextKey)
		assert.Equal(t, "header:"+router.HeaderAuthorization, cfg.TokenLookup)
		assert.Equal(t, "Bearer", cfg.AuthScheme)
		assert.NotNil(t, cfg.SuccessHandler)
		assert.NotNil(t, cfg.ErrorHandler)
	})

	t.Run("panics without a validator", func(t *testing.T) {
		assert.Panics(t, func() {
			tokengate.GetDefaultConfig()
		})
	})
}
