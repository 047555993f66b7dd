package restid

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/hivecash/go-session"
)

// IdentityProvider implements session.IdentityProvider on top of Client. It
// keeps the signed-in account, the token pair, and the subscriber list; the
// refresh token never leaves this struct.
type IdentityProvider struct {
	client *Client
	config Config
	clock  func() time.Time

	mu           sync.Mutex
	current      *identity
	idToken      string
	refreshToken string
	expiresAt    time.Time

	subMu   sync.Mutex
	subs    map[int]chan session.SessionChange
	nextSub int
}

// IdentityProviderOption customizes the provider.
type IdentityProviderOption func(*IdentityProvider)

// WithClock injects a clock, used by tests to control token expiry.
func WithClock(clock func() time.Time) IdentityProviderOption {
	return func(p *IdentityProvider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewIdentityProvider creates a provider against the identity service in cfg.
func NewIdentityProvider(cfg Config, opts ...IdentityProviderOption) (*IdentityProvider, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	p := &IdentityProvider{
		client: client,
		config: cfg,
		clock:  time.Now,
		subs:   map[int]chan session.SessionChange{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

var _ session.IdentityProvider = (*IdentityProvider)(nil)

// SignUp registers a new account and signs it in.
func (p *IdentityProvider) SignUp(ctx context.Context, email, password, displayName string) (session.Identity, error) {
	creds, err := p.client.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}

	id := p.adopt(creds)
	p.broadcast(session.SessionChange{Identity: id, Reason: session.ChangeSignIn})
	return id, nil
}

// SignIn exchanges credentials for a session.
func (p *IdentityProvider) SignIn(ctx context.Context, email, password string) (session.Identity, error) {
	creds, err := p.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	id := p.adopt(creds)
	p.broadcast(session.SessionChange{Identity: id, Reason: session.ChangeSignIn})
	return id, nil
}

// SignOut drops local credentials and notifies subscribers. It never fails:
// there is no server-side session to tear down.
func (p *IdentityProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.idToken = ""
	p.refreshToken = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()

	p.broadcast(session.SessionChange{Identity: nil, Reason: session.ChangeSignOut})
	return nil
}

// SendPasswordReset asks the service to mail a reset link. It does not
// require a signed-in session.
func (p *IdentityProvider) SendPasswordReset(ctx context.Context, email string) error {
	return p.client.SendPasswordReset(ctx, email)
}

// UpdateDisplayName updates the signed-in account's display name.
func (p *IdentityProvider) UpdateDisplayName(ctx context.Context, displayName string) (session.Identity, error) {
	token, err := p.IDToken(ctx, false)
	if err != nil {
		return nil, err
	}

	creds, err := p.client.UpdateDisplayName(ctx, token, displayName)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.current != nil {
		p.current = &identity{
			id:          p.current.id,
			email:       p.current.email,
			displayName: displayName,
		}
	}
	if creds.IDToken != "" {
		p.idToken = creds.IDToken
		p.expiresAt = creds.expiry(p.clock())
	}
	if creds.RefreshToken != "" {
		p.refreshToken = creds.RefreshToken
	}
	id := p.current
	p.mu.Unlock()

	if id == nil {
		return nil, session.ErrNotAuthenticated
	}
	return id, nil
}

// Reauthenticate re-verifies the signed-in user's password, refreshing the
// token pair on success.
func (p *IdentityProvider) Reauthenticate(ctx context.Context, password string) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil {
		return session.ErrNotAuthenticated
	}
	if current.email == "" {
		return session.ErrNoIdentityEmail
	}

	creds, err := p.client.SignIn(ctx, current.email, password)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.idToken = creds.IDToken
	p.refreshToken = creds.RefreshToken
	p.expiresAt = creds.expiry(p.clock())
	id := p.current
	p.mu.Unlock()

	p.broadcast(session.SessionChange{Identity: id, Reason: session.ChangeRefresh})
	return nil
}

// CurrentIdentity returns the signed-in identity, or nil.
func (p *IdentityProvider) CurrentIdentity() session.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	return p.current
}

// IDToken returns a valid bearer token, exchanging the refresh token when the
// cached one is stale or forceRefresh is set. Subscribers are notified after
// a successful refresh so mirrored stores stay current.
func (p *IdentityProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return "", session.ErrNotAuthenticated
	}

	fresh := p.idToken != "" && p.clock().Add(p.config.refreshMargin()).Before(p.expiresAt)
	if fresh && !forceRefresh {
		token := p.idToken
		p.mu.Unlock()
		return token, nil
	}

	refreshToken := p.refreshToken
	p.mu.Unlock()

	if refreshToken == "" {
		return "", session.ErrNoToken
	}

	creds, err := p.client.Refresh(ctx, refreshToken)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "failed to refresh session token")
	}

	p.mu.Lock()
	p.idToken = creds.IDToken
	if creds.RefreshToken != "" {
		p.refreshToken = creds.RefreshToken
	}
	p.expiresAt = creds.expiry(p.clock())
	id := p.current
	token := p.idToken
	p.mu.Unlock()

	p.broadcast(session.SessionChange{Identity: id, Reason: session.ChangeRefresh})
	return token, nil
}

// Subscribe registers a session-change listener. The channel is buffered;
// a subscriber that stops draining loses notifications rather than blocking
// the provider.
func (p *IdentityProvider) Subscribe() (<-chan session.SessionChange, func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	id := p.nextSub
	p.nextSub++

	ch := make(chan session.SessionChange, 16)
	p.subs[id] = ch

	cancel := func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if existing, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(existing)
		}
	}

	return ch, cancel
}

func (p *IdentityProvider) adopt(creds credentials) *identity {
	id := &identity{
		id:          creds.LocalID,
		email:       creds.Email,
		displayName: creds.DisplayName,
	}

	p.mu.Lock()
	p.current = id
	p.idToken = creds.IDToken
	p.refreshToken = creds.RefreshToken
	p.expiresAt = creds.expiry(p.clock())
	p.mu.Unlock()

	return id
}

func (p *IdentityProvider) broadcast(change session.SessionChange) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// identity is the provider-side implementation of session.Identity.
type identity struct {
	id          string
	email       string
	displayName string
}

func (u *identity) ID() string          { return u.id }
func (u *identity) Email() string       { return u.email }
func (u *identity) DisplayName() string { return u.displayName }
