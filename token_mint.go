package registry

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// ScopedTokenOptions controls how MintScopedToken issues short-lived tokens.
type ScopedTokenOptions struct {
	// TTL overrides the default token expiration. Zero uses TokenService defaults.
	TTL time.Duration
	// Issuer overrides the default issuer if provided.
	Issuer string
	// Audience overrides the default audience if provided.
	Audience []string
	// IssuedAt overrides the issuance time. Zero uses time.Now().
	IssuedAt time.Time
}

type tokenDefaults struct {
	issuer   string
	audience jwt.ClaimStrings
	ttl      time.Duration
}

type tokenDefaultsProvider interface {
	tokenDefaults() tokenDefaults
}

// MintScopedToken mints a short-lived JWT for an account with an
// explicit TTL. It uses TokenService defaults for issuer, audience,
// and TTL when available.
func MintScopedToken(tokenService TokenService, user *User, opts ScopedTokenOptions) (string, time.Time, error) {
	if tokenService == nil {
		return "", time.Time{}, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}
	if user == nil {
		return "", time.Time{}, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	issuer := opts.Issuer
	audience := opts.Audience
	ttl := opts.TTL

	if defaultsProvider, ok := tokenService.(tokenDefaultsProvider); ok {
		defaults := defaultsProvider.tokenDefaults()
		if issuer == "" {
			issuer = defaults.issuer
		}
		if len(audience) == 0 {
			audience = defaults.audience
		}
		if ttl == 0 {
			ttl = defaults.ttl
		}
	}

	if ttl < 0 {
		return "", time.Time{}, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	expiresAt := issuedAt.Add(ttl)

	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	claims := ClaimsForUser(user)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   user.ID.String(),
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := tokenService.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}
