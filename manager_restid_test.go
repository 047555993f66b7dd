package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	session "github.com/hivecash/go-session"
	"github.com/hivecash/go-session/provider/restid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestManagerWithRestIDProviderSettlesAfterSignIn drives the Manager through
// the real provider. The sign-in notification forces one token refresh; the
// provider's resulting refresh notification must reuse the cached token
// instead of renewing again, otherwise the two would feed each other forever.
func TestManagerWithRestIDProviderSettlesAfterSignIn(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/accounts:signInWithPassword":
			json.NewEncoder(w).Encode(map[string]string{
				"localId":      "uid-1",
				"email":        "u@example.com",
				"displayName":  "U",
				"idToken":      "id-tok-1",
				"refreshToken": "refresh-tok",
				"expiresIn":    "3600",
			})
		case "/v1/token":
			atomic.AddInt32(&refreshes, 1)
			json.NewEncoder(w).Encode(map[string]string{
				"user_id":       "uid-1",
				"id_token":      "id-tok-2",
				"refresh_token": "refresh-tok",
				"expires_in":    "3600",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	provider, err := restid.NewIdentityProvider(restid.DefaultConfig(srv.URL, "test-key"))
	require.NoError(t, err)

	profiles := newFakeProfiles()
	tokens := session.NewDualKeyStore(session.NewMemoryBackend(), cfgStub{})
	mgr := session.NewManager(provider, profiles, tokens)
	t.Cleanup(mgr.Close)

	require.NoError(t, mgr.SignIn(context.Background(), "u@example.com", "pw"))

	waitForSnapshot(t, mgr, func(s session.Snapshot) bool {
		return s.Identity != nil && s.Profile.IsProvisioned()
	})

	// Give a runaway refresh cycle time to show itself.
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, 1, profiles.creates)

	token, err := tokens.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-tok-2", token)
}
