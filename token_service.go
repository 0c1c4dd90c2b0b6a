package registry

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenService creates a new TokenService instance. The signing key
// is process-wide secret state, set once here and never rotated
// mid-run.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience []string, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        jwt.ClaimStrings(audience),
		logger:          logger,
	}
}

// Issue signs the given claims, stamping issuer, audience, issuance
// time and, when an expiration is configured, the expiry.
func (ts *TokenServiceImpl) Issue(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	now := time.Now()
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Audience = ts.audience
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	if claims.RegisteredClaims.Subject == "" {
		claims.RegisteredClaims.Subject = claims.UID
	}
	if ts.tokenExpiration > 0 {
		claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Hour))
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// SignClaims signs the claims exactly as given, without stamping the
// service defaults. Issue is the normal path; this exists for callers
// that already shaped the registered claims themselves.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) tokenDefaults() tokenDefaults {
	return tokenDefaults{
		issuer:   ts.issuer,
		audience: ts.audience,
		ttl:      time.Duration(ts.tokenExpiration) * time.Hour,
	}
}

// Validate parses and validates a token string, returning structured
// claims. Rejections are distinguishable: malformed, bad signature,
// or expired. An unverifiable token is never partially trusted.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode)
		}
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}
