package session

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Manager composes the identity provider, profile service, and token store
// into the single source of truth for "who is signed in and what can they
// do". It is constructed once by the application root and handed to
// consumers explicitly; there is no package-level session state.
type Manager struct {
	provider     IdentityProvider
	profiles     ProfileService
	tokens       TokenStore
	logger       Logger
	activitySink ActivitySink
	states       StateMachine

	mu       sync.RWMutex
	snap     Snapshot
	watchers map[int]func(Snapshot)
	nextID   int

	// changeMu serializes the read-compute-publish sequences of the change
	// loop and out-of-loop snapshot patches.
	changeMu sync.Mutex

	provision *ProvisionProfileHandler

	cancelSub func()
	done      chan struct{}
	closeOnce sync.Once
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for session events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachine overrides the session state machine.
func WithStateMachine(sm StateMachine) ManagerOption {
	return func(m *Manager) {
		if sm != nil {
			m.states = sm
		}
	}
}

// NewManager builds a Manager and subscribes it to the provider's
// session-change stream for the lifetime of the application. Notifications
// are consumed by a single goroutine, so one notification's full sequence
// (identity update, token refresh, profile fetch/create) completes before
// the next is handled.
func NewManager(provider IdentityProvider, profiles ProfileService, tokens TokenStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider:     provider,
		profiles:     profiles,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		snap:         Snapshot{Loading: true, Profile: Unprovisioned()},
		watchers:     map[int]func(Snapshot){},
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.states == nil {
		m.states = NewStateMachine(
			WithStateMachineActivitySink(m.activitySink),
			WithStateMachineLogger(m.logger),
		)
	}

	m.provision = NewProvisionProfileHandler(profiles, m.activitySink)

	ch, cancel := provider.Subscribe()
	m.cancelSub = cancel
	go m.consume(ch)

	return m
}

// Close tears down the session-change subscription. Safe to call more than
// once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.cancelSub != nil {
			m.cancelSub()
		}
	})
}

// Provider exposes the underlying identity provider for flows that talk to
// it directly, such as password reset initialization.
func (m *Manager) Provider() IdentityProvider {
	return m.provider
}

// Profiles exposes the profile service for flows that write profiles outside
// a signed-in session, such as the apply form.
func (m *Manager) Profiles() ProfileService {
	return m.profiles
}

// Snapshot returns the latest resolved session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Watch registers a callback invoked after every snapshot update, in update
// order. The returned func cancels the registration.
func (m *Manager) Watch(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// SignUp creates an identity-provider account, then provisions the matching
// application profile. If profile creation fails the provider account still
// exists: the error is logged, not rolled back, and provisioning is retried
// lazily on the next session-change.
func (m *Manager) SignUp(ctx context.Context, email, password, displayName string) error {
	identity, err := m.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		m.emit(ctx, ActivityEventSignUpFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return err
	}

	m.saveToken(ctx, true)

	if _, err := m.provisionProfile(ctx, identity.ID(), email, displayName); err != nil {
		m.logger.Error("sign-up profile creation failed, will self-heal on next session change", "error", err)
		m.emit(ctx, ActivityEventProfileWriteError, m.actorFromIdentity(identity), identity.ID(), map[string]any{
			"operation": "create",
			"error":     err.Error(),
		})
	}

	m.emit(ctx, ActivityEventSignUpSuccess, m.actorFromIdentity(identity), identity.ID(), map[string]any{
		"email": email,
	})

	return nil
}

// SignIn authenticates against the identity provider. The profile fetch is
// not done here; it happens on the resulting session-change notification so
// there is a single fetch path.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	identity, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		m.emit(ctx, ActivityEventSignInFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return err
	}

	m.emit(ctx, ActivityEventSignInSuccess, m.actorFromIdentity(identity), identity.ID(), map[string]any{
		"email": email,
	})

	return nil
}

// SignOut clears the token store, then terminates the identity-provider
// session. The store is cleared first so there is no window where the token
// is still readable while the provider is mid-teardown. Idempotent.
func (m *Manager) SignOut(ctx context.Context) error {
	actor := m.actorFromIdentity(m.provider.CurrentIdentity())

	if err := m.tokens.Clear(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear token store")
	}

	if err := m.provider.SignOut(ctx); err != nil {
		return err
	}

	m.emit(ctx, ActivityEventSignOut, actor, actor.ID, nil)
	return nil
}

// ResetPassword delegates to the identity provider.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if err := m.provider.SendPasswordReset(ctx, email); err != nil {
		return err
	}
	m.emit(ctx, ActivityEventPasswordReset, ActorRef{Type: "unknown"}, "", map[string]any{
		"email": email,
	})
	return nil
}

// UpdateDisplayName updates the identity-provider record, then best-effort
// updates the application profile. A profile write failure here is logged
// rather than surfaced: the provider update, which the user asked for,
// already succeeded.
func (m *Manager) UpdateDisplayName(ctx context.Context, displayName string) error {
	identity := m.provider.CurrentIdentity()
	if identity == nil {
		return ErrNotAuthenticated
	}

	updated, err := m.provider.UpdateDisplayName(ctx, displayName)
	if err != nil {
		return err
	}
	if updated != nil {
		identity = updated
	}

	profile, err := m.profiles.Update(ctx, identity.ID(), ProfilePatch{DisplayName: &displayName})
	if err != nil {
		m.logger.Warn("profile display name update failed after provider update", "error", err)
		m.emit(ctx, ActivityEventProfileWriteError, m.actorFromIdentity(identity), identity.ID(), map[string]any{
			"operation": "update",
			"error":     err.Error(),
		})
		return nil
	}

	m.patchSnapshot(ctx, identity, Provisioned(profile))
	return nil
}

// Reauthenticate re-proves credentials with the identity provider, required
// before sensitive operations such as changing a password.
func (m *Manager) Reauthenticate(ctx context.Context, password string) error {
	identity := m.provider.CurrentIdentity()
	if identity == nil {
		return ErrNotAuthenticated
	}
	if identity.Email() == "" {
		return ErrNoIdentityEmail
	}
	return m.provider.Reauthenticate(ctx, password)
}

func (m *Manager) consume(ch <-chan SessionChange) {
	for {
		select {
		case <-m.done:
			return
		case change, ok := <-ch:
			if !ok {
				return
			}
			m.handleChange(context.Background(), change)
		}
	}
}

// handleChange runs one notification's full sequence. Notifications arrive on
// a single goroutine; changeMu additionally keeps out-of-loop patches from
// interleaving with a sequence in flight.
func (m *Manager) handleChange(ctx context.Context, change SessionChange) {
	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	prev := m.Snapshot()

	next := Snapshot{
		Identity: change.Identity,
		Profile:  Unprovisioned(),
		Loading:  false,
	}

	if change.Identity != nil {
		// A refresh notification means the provider just renewed its token.
		// Forcing another refresh here would make the provider notify again,
		// feeding the loop forever; the cached token is taken as is.
		force := change.Reason != ChangeRefresh
		if m.saveToken(ctx, force) && change.Reason == ChangeRefresh {
			m.emit(ctx, ActivityEventTokenRefresh, m.actorFromIdentity(change.Identity), change.Identity.ID(), nil)
		}
		next.Profile = m.resolveProfile(ctx, change.Identity)
	} else {
		if err := m.tokens.Clear(ctx); err != nil {
			m.logger.Error("token store clear failed on sign-out notification", "error", err)
		}
	}

	m.publish(ctx, prev, next, string(change.Reason))
}

// resolveProfile fetches the application profile and, when the user is not
// yet provisioned, attempts to create it from identity defaults. Failures
// here are background reconciliation errors: logged, never surfaced.
func (m *Manager) resolveProfile(ctx context.Context, identity Identity) ProfileState {
	profile, err := m.profiles.Get(ctx, identity.ID())
	if err == nil {
		return Provisioned(profile)
	}

	if !IsProfileNotFound(err) {
		m.logger.Warn("profile fetch failed, treating identity as unprovisioned", "error", err)
	}

	if identity.Email() == "" || identity.DisplayName() == "" {
		return Unprovisioned()
	}

	created, err := m.provisionProfile(ctx, identity.ID(), identity.Email(), identity.DisplayName())
	if err != nil {
		m.logger.Error("profile self-heal creation failed", "error", err)
		m.emit(ctx, ActivityEventProfileWriteError, m.actorFromIdentity(identity), identity.ID(), map[string]any{
			"operation": "selfheal-create",
			"error":     err.Error(),
		})
		return Unprovisioned()
	}

	m.emit(ctx, ActivityEventProfileSelfHeal, m.actorFromIdentity(identity), identity.ID(), nil)
	return Provisioned(created)
}

// patchSnapshot replaces the profile portion of the snapshot outside the
// change loop (e.g. after an explicit profile update). A sign-out processed
// between the triggering update and the patch wins: the patch is dropped
// rather than resurrecting a session the provider has torn down.
func (m *Manager) patchSnapshot(ctx context.Context, identity Identity, profile ProfileState) {
	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	prev := m.Snapshot()
	if prev.Identity == nil || m.provider.CurrentIdentity() == nil {
		return
	}

	next := prev
	next.Identity = identity
	next.Profile = profile
	m.publish(ctx, prev, next, "profile-update")
}

// provisionProfile routes profile creation through the provisioning command
// so sign-up, self-heal, and the apply flow share one code path.
func (m *Manager) provisionProfile(ctx context.Context, externalID, email, displayName string) (Profile, error) {
	var profile Profile
	err := m.provision.Execute(ctx, ProvisionProfileMessage{
		ExternalID:  externalID,
		Email:       email,
		DisplayName: displayName,
		OnResponse:  func(p Profile) { profile = p },
	})
	return profile, err
}

func (m *Manager) publish(ctx context.Context, prev, next Snapshot, reason string) {
	// Profile is never provisioned while identity is absent.
	if next.Identity == nil {
		next.Profile = Unprovisioned()
	}

	m.mu.Lock()
	m.snap = next
	watchers := make([]func(Snapshot), 0, len(m.watchers))
	for _, fn := range m.watchers {
		watchers = append(watchers, fn)
	}
	m.mu.Unlock()

	actor := m.actorFromIdentity(next.Identity)
	if err := m.states.Apply(ctx, actor, prev.State(), next.State(), reason); err != nil {
		m.logger.Warn("unexpected session state transition", "from", prev.State(), "to", next.State(), "error", err)
	}

	for _, fn := range watchers {
		fn(next)
	}
}

// saveToken mirrors the provider token into the store, optionally forcing a
// refresh first. Returns true when the store was written.
func (m *Manager) saveToken(ctx context.Context, forceRefresh bool) bool {
	token, err := m.provider.IDToken(ctx, forceRefresh)
	if err != nil {
		m.logger.Error("token refresh failed", "error", err)
		return false
	}
	if err := m.tokens.Save(ctx, token); err != nil {
		m.logger.Error("token store write failed", "error", err)
		return false
	}
	return true
}

func (m *Manager) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, externalID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		ExternalID: externalID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := m.activitySink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}

func (m *Manager) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: identity.ID(), Type: "user"}
}
