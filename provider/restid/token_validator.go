package restid

import (
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// IDTokenClaims are the claims carried by the service's ID tokens. Subject
// is the account's external id.
type IDTokenClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// TokenValidator validates service-issued ID tokens against the published
// JWKS. Server-side consumers use it to authenticate bearer tokens without a
// round trip to the identity service.
type TokenValidator struct {
	config Config
	jwks   *keyfunc.JWKS
}

// NewTokenValidator fetches the JWKS and keeps it refreshed in the
// background. Call Close when done.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		return nil, fmt.Errorf("restid: JWKS URL is required")
	}

	options := keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute,
		RefreshUnknownKID: true,
	}
	if cfg.ContextFunc != nil {
		options.Ctx = cfg.ContextFunc()
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, options)
	if err != nil {
		return nil, fmt.Errorf("restid: failed to fetch JWKS: %w", err)
	}

	return &TokenValidator{config: cfg, jwks: jwks}, nil
}

// Validate parses and verifies tokenString, returning its claims.
func (v *TokenValidator) Validate(tokenString string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
	}
	if v.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc, parserOpts...)
	if err != nil {
		return nil, normalizeValidationError(err)
	}
	if !token.Valid {
		return nil, goerrors.New("token is invalid", goerrors.CategoryAuth).
			WithTextCode("TOKEN_INVALID").
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}

// Close stops the background JWKS refresh.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func normalizeValidationError(err error) error {
	code := "TOKEN_MALFORMED"
	if goerrors.Is(err, jwt.ErrTokenExpired) {
		code = "TOKEN_EXPIRED"
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, "token validation failed").
		WithTextCode(code).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{
			"provider": "restid",
		})
}
