package restid

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds identity service configuration.
type Config struct {
	// BaseURL is the identity service root (e.g. "https://id.example.com").
	BaseURL string

	// APIKey is the browser/API key appended to every accounts call.
	APIKey string

	// JWKSURL is where the service publishes its signing keys. Required for
	// token validation, unused by the account flows.
	JWKSURL string

	// Issuer is the expected "iss" claim on ID tokens.
	Issuer string

	// Audience is the expected "aud" claim on ID tokens.
	Audience string

	// RefreshMargin is how long before expiry a cached ID token is treated
	// as stale. Default: 1 minute.
	RefreshMargin time.Duration

	// HTTPClient overrides the client used for account calls.
	HTTPClient *http.Client

	// ContextFunc provides a context for JWKS fetches.
	// Default: context.Background.
	ContextFunc func() context.Context
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		RefreshMargin: time.Minute,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("restid: base URL is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("restid: API key is required")
	}
	return nil
}

func (c Config) refreshMargin() time.Duration {
	if c.RefreshMargin <= 0 {
		return time.Minute
	}
	return c.RefreshMargin
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
