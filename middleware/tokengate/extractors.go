package tokengate

import (
	"strings"

	"github.com/goliatone/go-router"
)

// TokenExtractor pulls a raw token out of a request.
type TokenExtractor func(c router.Context) (string, error)

// ExtractRawTokenFromContext runs the extractors in order and returns
// the first raw token found.
func ExtractRawTokenFromContext(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// GetExtractors parses a lookup string into extractors. The format is
// a comma separated list of source:name pairs, e.g.
// "header:Authorization,cookie:user,query:auth_token"
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		if len(parts) < 2 {
			continue
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, tokenFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

func tokenFromHeader(header string, authScheme string) TokenExtractor {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		scheme := strings.TrimSpace(authScheme)
		l := len(scheme)
		if l == 0 {
			return "", ErrTokenMissing
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], scheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func tokenFromParam(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
