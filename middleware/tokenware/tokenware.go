// Package tokenware authenticates API requests with a bearer ID token. The
// validator owns key material (normally a JWKS-backed validator from
// provider/restid); the middleware only extracts, validates, and stores the
// claims for downstream handlers.
package tokenware

import (
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup       = "header:" + router.HeaderAuthorization
	ErrTokenMissingOrInvalid = errors.New("missing or malformed bearer token")
)

// AuthClaims is the validated-claims surface the middleware needs. The jwt
// RegisteredClaims type satisfies it, as does restid.IDTokenClaims.
type AuthClaims interface {
	GetSubject() (string, error)
}

// TokenValidator validates a raw token string. Implementations decide the
// algorithm, issuer, and key source.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// ValidatorFunc adapts a function to TokenValidator.
type ValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate implements TokenValidator.
func (f ValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

type Config struct {
	// Filter skips the middleware for matching requests.
	Filter func(router.Context) bool

	// SuccessHandler runs after the claims are stored. Default: ctx.Next.
	SuccessHandler router.HandlerFunc

	// ErrorHandler maps validation failures to responses.
	ErrorHandler router.ErrorHandler

	// ContextKey is the router locals key for the validated claims.
	// Default: "identity".
	ContextKey string

	// TokenLookup is a comma-separated list of sources, e.g.
	// "header:Authorization,cookie:token,query:auth_token".
	TokenLookup string

	// AuthScheme strips the scheme prefix from header tokens.
	// Default: "Bearer".
	AuthScheme string

	// TokenValidator is required.
	TokenValidator TokenValidator

	// Authorize runs after validation and can reject the request, e.g. an
	// admin gate that inspects the claims against the profile service.
	Authorize func(ctx router.Context, claims AuthClaims) error
}

// New builds the middleware.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := getDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawToken(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.Authorize != nil {
				if err := cfg.Authorize(ctx, claims); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			ctx.Locals(cfg.ContextKey, claims)

			return cfg.SuccessHandler(ctx)
		}
	}
}

// ExtractRawToken runs the extractors in order and returns the first hit.
func ExtractRawToken(ctx router.Context, extractors []TokenExtractor) (string, error) {
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

func getDefaultConfig(config ...Config) (cfg Config) {
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
			if err.Error() == ErrTokenMissingOrInvalid.Error() {
				return c.Status(router.StatusBadRequest).SendString(ErrTokenMissingOrInvalid.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil {
		panic("SESSION: token middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "identity"
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

// GetExtractors parses a token lookup spec into extractor funcs.
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:token,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) < 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
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

type TokenExtractor func(c router.Context) (string, error)

// tokenFromHeader returns a function that extracts the token from a header.
func tokenFromHeader(header string, authScheme string) TokenExtractor {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		authScheme = strings.TrimSpace(authScheme)
		l := len(authScheme)
		if l == 0 {
			return "", ErrTokenMissingOrInvalid
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissingOrInvalid
	}
}

// tokenFromQuery returns a function that extracts the token from the query
// string.
func tokenFromQuery(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissingOrInvalid
		}
		return token, nil
	}
}

// tokenFromParam returns a function that extracts the token from a url param.
func tokenFromParam(param string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissingOrInvalid
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts the token from the named
// cookie.
func tokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissingOrInvalid
		}
		return token, nil
	}
}
