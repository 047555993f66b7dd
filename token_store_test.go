package session_test

import (
	"context"
	"testing"

	session "github.com/hivecash/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDualKeyStoreMirrorsBothKeys(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemoryBackend()
	store := session.NewDualKeyStore(backend, cfgStub{})

	require.NoError(t, store.Save(ctx, "tok-abc"))

	current, err := backend.Get(ctx, cfgStub{}.GetTokenKey())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", current)

	legacy, err := backend.Get(ctx, cfgStub{}.GetLegacyTokenKey())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", legacy)
}

func TestDualKeyStoreLoadFallsBackToLegacy(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemoryBackend()
	store := session.NewDualKeyStore(backend, cfgStub{})

	// Only the legacy key present, as written by an older deployment.
	require.NoError(t, backend.Put(ctx, cfgStub{}.GetLegacyTokenKey(), "tok-old"))

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-old", token)
}

func TestDualKeyStoreLoadPrefersCurrent(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemoryBackend()
	store := session.NewDualKeyStore(backend, cfgStub{})

	require.NoError(t, backend.Put(ctx, cfgStub{}.GetTokenKey(), "tok-new"))
	require.NoError(t, backend.Put(ctx, cfgStub{}.GetLegacyTokenKey(), "tok-old"))

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", token)
}

func TestDualKeyStoreLoadEmpty(t *testing.T) {
	store := session.NewDualKeyStore(session.NewMemoryBackend(), cfgStub{})

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoToken)
}

func TestDualKeyStoreClearIdempotent(t *testing.T) {
	ctx := context.Background()
	store := session.NewDualKeyStore(session.NewMemoryBackend(), cfgStub{})

	require.NoError(t, store.Save(ctx, "tok-abc"))
	require.NoError(t, store.Clear(ctx))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoToken)

	// Clearing an already empty store is not an error.
	require.NoError(t, store.Clear(ctx))
}
