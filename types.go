package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of the identity provider's signed-in user.
// It is distinct from the application Profile (role, status).
type Identity interface {
	ID() string
	Email() string
	DisplayName() string
}

// ChangeReason describes why a session-change notification was emitted.
type ChangeReason string

const (
	ChangeSignIn  ChangeReason = "sign-in"
	ChangeSignOut ChangeReason = "sign-out"
	ChangeRefresh ChangeReason = "token-refresh"
)

// SessionChange is a single notification from the identity provider's
// session-change stream. Identity is nil when the provider reports no
// current user.
type SessionChange struct {
	Identity Identity
	Reason   ChangeReason
}

// IdentityProvider wraps the external identity service. Implementations own
// credentials and tokens; the rest of the package never sees a password
// hash or a refresh token.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, displayName string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	UpdateDisplayName(ctx context.Context, displayName string) (Identity, error)
	Reauthenticate(ctx context.Context, password string) error
	CurrentIdentity() Identity
	// IDToken returns a currently valid bearer token, refreshing it against
	// the provider when forceRefresh is set or the cached token is stale.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
	// Subscribe registers a listener on the session-change stream. The
	// returned func tears the subscription down.
	Subscribe() (<-chan SessionChange, func())
}

// ProfileService is the REST collaborator holding application user records.
type ProfileService interface {
	Create(ctx context.Context, rec NewProfile) (Profile, error)
	Get(ctx context.Context, externalID string) (Profile, error)
	Update(ctx context.Context, externalID string, patch ProfilePatch) (Profile, error)
	ListUsers(ctx context.Context) ([]Profile, error)
	ListParticipants(ctx context.Context) ([]Profile, error)
}

// TokenStore persists the provider bearer token between calls. Clear is
// idempotent: clearing an empty store is not an error.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SnapshotSource exposes the latest resolved session snapshot. Manager is
// the canonical implementation; tests substitute fixed snapshots.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// Config holds portal session options.
type Config interface {
	GetIdentityBaseURL() string
	GetIdentityAPIKey() string
	GetProfileAPIBaseURL() string
	GetTokenKey() string
	GetLegacyTokenKey() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetLoadingView() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
