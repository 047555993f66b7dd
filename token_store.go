package session

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// TokenBackend is the key/value surface token stores are built on.
// Implementations must treat Delete of a missing key as a no-op.
type TokenBackend interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// DualKeyStore mirrors the bearer token under two keys: the current one and
// a legacy one kept for an older call site. Both are written on every save
// and removed together on clear; the duplication carries no other
// semantics. Collapsing the two call sites behind this single accessor is
// deliberate: nothing outside this type knows there are two keys.
type DualKeyStore struct {
	backend   TokenBackend
	key       string
	legacyKey string
}

// NewDualKeyStore builds a store over backend using cfg's key names.
func NewDualKeyStore(backend TokenBackend, cfg Config) *DualKeyStore {
	return &DualKeyStore{
		backend:   backend,
		key:       cfg.GetTokenKey(),
		legacyKey: cfg.GetLegacyTokenKey(),
	}
}

// Save writes the token under both keys. Last write wins; both writers
// (token-refresh listener and sign-out) always write the provider's current
// token, never a stale cached value, so no locking discipline is needed
// beyond the backend's own.
func (s *DualKeyStore) Save(ctx context.Context, token string) error {
	if err := s.backend.Put(ctx, s.key, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist token")
	}
	if err := s.backend.Put(ctx, s.legacyKey, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist legacy token")
	}
	return nil
}

// Load returns the current token, falling back to the legacy key, or
// ErrNoToken when both are absent.
func (s *DualKeyStore) Load(ctx context.Context) (string, error) {
	if token, err := s.backend.Get(ctx, s.key); err == nil && token != "" {
		return token, nil
	}
	token, err := s.backend.Get(ctx, s.legacyKey)
	if err != nil || token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes both keys. Idempotent: clearing an empty store succeeds.
func (s *DualKeyStore) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear token")
	}
	if err := s.backend.Delete(ctx, s.legacyKey); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear legacy token")
	}
	return nil
}

var _ TokenStore = (*DualKeyStore)(nil)

// MemoryBackend is an in-process TokenBackend for tests and ephemeral
// sessions.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: map[string]string{}}
}

func (m *MemoryBackend) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNoToken
	}
	return value, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var _ TokenBackend = (*MemoryBackend)(nil)
