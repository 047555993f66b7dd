package session

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig sources configuration from the process environment. It satisfies
// both Config and PersistenceConfig.
type EnvConfig struct {
	IdentityBaseURL      string        `env:"SESSION_IDENTITY_BASE_URL"`
	IdentityAPIKey       string        `env:"SESSION_IDENTITY_API_KEY"`
	ProfileAPIBaseURL    string        `env:"SESSION_PROFILE_API_BASE_URL"`
	TokenKey             string        `env:"SESSION_TOKEN_KEY" envDefault:"hivecash.session.token"`
	LegacyTokenKey       string        `env:"SESSION_LEGACY_TOKEN_KEY" envDefault:"token"`
	RejectedRouteKey     string        `env:"SESSION_REJECTED_ROUTE_KEY" envDefault:"hivecash.rejected.route"`
	RejectedRouteDefault string        `env:"SESSION_REJECTED_ROUTE_DEFAULT" envDefault:"/dashboard"`
	LoadingView          string        `env:"SESSION_LOADING_VIEW" envDefault:"session/loading"`
	DSN                  string        `env:"SESSION_STORE_DSN" envDefault:"file::memory:?cache=shared"`
	Debug                bool          `env:"SESSION_DEBUG"`
	PingTimeout          time.Duration `env:"SESSION_STORE_PING_TIMEOUT" envDefault:"5s"`
}

// LoadEnvConfig parses configuration from the environment.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to parse environment configuration")
	}
	return cfg, nil
}

var _ Config = (*EnvConfig)(nil)
var _ PersistenceConfig = (*EnvConfig)(nil)

func (c *EnvConfig) GetIdentityBaseURL() string      { return c.IdentityBaseURL }
func (c *EnvConfig) GetIdentityAPIKey() string       { return c.IdentityAPIKey }
func (c *EnvConfig) GetProfileAPIBaseURL() string    { return c.ProfileAPIBaseURL }
func (c *EnvConfig) GetTokenKey() string             { return c.TokenKey }
func (c *EnvConfig) GetLegacyTokenKey() string       { return c.LegacyTokenKey }
func (c *EnvConfig) GetRejectedRouteKey() string     { return c.RejectedRouteKey }
func (c *EnvConfig) GetRejectedRouteDefault() string { return c.RejectedRouteDefault }
func (c *EnvConfig) GetLoadingView() string          { return c.LoadingView }
func (c *EnvConfig) GetDSN() string                  { return c.DSN }
func (c *EnvConfig) GetDebug() bool                  { return c.Debug }
func (c *EnvConfig) GetDriver() string               { return "" }
func (c *EnvConfig) GetServer() string               { return "" }
func (c *EnvConfig) GetPingTimeout() time.Duration   { return c.PingTimeout }
func (c *EnvConfig) GetOtelIdentifier() string       { return "" }
