package session_test

import (
	"testing"

	session "github.com/hivecash/go-session"
	"github.com/stretchr/testify/assert"
)

func snapLoading() session.Snapshot {
	return session.Snapshot{Loading: true, Profile: session.Unprovisioned()}
}

func snapAnonymous() session.Snapshot {
	return session.Snapshot{Profile: session.Unprovisioned()}
}

func snapWith(role session.Role, status session.ProfileStatus) session.Snapshot {
	return session.Snapshot{
		Identity: testIdentity{id: "uid-1", email: "u@example.com", name: "U"},
		Profile: session.Provisioned(session.Profile{
			ID:     "uid-1",
			Email:  "u@example.com",
			Role:   role,
			Status: status,
		}),
	}
}

func snapUnprovisioned() session.Snapshot {
	return session.Snapshot{
		Identity: testIdentity{id: "uid-1", email: "u@example.com", name: "U"},
		Profile:  session.Unprovisioned(),
	}
}

func TestDecide(t *testing.T) {
	routes := session.DefaultGuardRoutes()

	tests := []struct {
		name string
		path string
		opts session.GuardOptions
		snap session.Snapshot
		want session.Decision
	}{
		{
			name: "loading renders placeholder without redirect",
			path: "/user/dashboard",
			opts: session.DefaultGuardOptions(),
			snap: snapLoading(),
			want: session.Decision{Kind: session.DecisionLoading},
		},
		{
			name: "anonymous is sent to login and the path is remembered",
			path: "/user/settings",
			opts: session.DefaultGuardOptions(),
			snap: snapAnonymous(),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/login", From: "/user/settings"},
		},
		{
			name: "non-admin on an admin route is sent to unauthorized",
			path: "/admin/participants",
			opts: session.GuardOptions{RequireAdmin: true, RequireApproved: true},
			snap: snapWith(session.RoleParticipant, session.StatusActive),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/unauthorized"},
		},
		{
			name: "unprovisioned profile is sent to apply",
			path: "/user/dashboard",
			opts: session.DefaultGuardOptions(),
			snap: snapUnprovisioned(),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/apply-now"},
		},
		{
			name: "provisioned but role unset is sent to apply",
			path: "/user/dashboard",
			opts: session.DefaultGuardOptions(),
			snap: snapWith(session.RoleUnset, session.StatusActive),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/apply-now"},
		},
		{
			name: "inactive profile is sent to deactivated",
			path: "/user/dashboard",
			opts: session.DefaultGuardOptions(),
			snap: snapWith(session.RoleParticipant, session.StatusInactive),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/deactivated"},
		},
		{
			name: "participant on the generic dashboard goes to the user home",
			path: "/dashboard",
			opts: session.DefaultGuardOptions(),
			snap: snapWith(session.RoleParticipant, session.StatusActive),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/user/dashboard"},
		},
		{
			name: "admin on root goes to the admin home",
			path: "/",
			opts: session.DefaultGuardOptions(),
			snap: snapWith(session.RoleAdmin, session.StatusActive),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/admin/dashboard"},
		},
		{
			name: "active participant renders the requested route",
			path: "/user/settings",
			opts: session.DefaultGuardOptions(),
			snap: snapWith(session.RoleParticipant, session.StatusActive),
			want: session.Decision{Kind: session.DecisionAllow},
		},
		{
			name: "admin passes the admin gate and renders",
			path: "/admin/participants",
			opts: session.GuardOptions{RequireAdmin: true, RequireApproved: true},
			snap: snapWith(session.RoleAdmin, session.StatusActive),
			want: session.Decision{Kind: session.DecisionAllow},
		},
		{
			name: "admin gate outranks onboarding: unprovisioned non-admin hits unauthorized first",
			path: "/admin/participants",
			opts: session.GuardOptions{RequireAdmin: true, RequireApproved: true},
			snap: snapUnprovisioned(),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/unauthorized"},
		},
		{
			name: "loading outranks everything including admin gate",
			path: "/admin/participants",
			opts: session.GuardOptions{RequireAdmin: true, RequireApproved: true},
			snap: snapLoading(),
			want: session.Decision{Kind: session.DecisionLoading},
		},
		{
			name: "deactivated admin is still sent to deactivated",
			path: "/admin/dashboard",
			opts: session.GuardOptions{RequireAdmin: true, RequireApproved: true},
			snap: snapWith(session.RoleAdmin, session.StatusInactive),
			want: session.Decision{Kind: session.DecisionRedirect, Target: "/deactivated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := session.Decide(tt.path, tt.opts, tt.snap, routes)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideNeverErrors(t *testing.T) {
	routes := session.DefaultGuardRoutes()

	// Zero values everywhere still produce a decision.
	got := session.Decide("", session.GuardOptions{}, session.Snapshot{}, routes)
	assert.Equal(t, session.DecisionRedirect, got.Kind)
	assert.Equal(t, routes.Login, got.Target)
}

func TestSnapshotIsAdminDerived(t *testing.T) {
	snap := snapWith(session.RoleAdmin, session.StatusActive)
	assert.True(t, snap.IsAdmin())

	// The flag follows the profile; there is no stored admin bit.
	snap.Profile = session.Provisioned(session.Profile{ID: "uid-1", Role: session.RoleParticipant})
	assert.False(t, snap.IsAdmin())

	snap.Profile = session.Unprovisioned()
	assert.False(t, snap.IsAdmin())
}

func TestSnapshotState(t *testing.T) {
	tests := []struct {
		name string
		snap session.Snapshot
		want session.State
	}{
		{"loading", snapLoading(), session.StateLoading},
		{"anonymous", snapAnonymous(), session.StateAnonymous},
		{"unprovisioned identity", snapUnprovisioned(), session.StatePendingOnboarding},
		{"role unset", snapWith(session.RoleUnset, session.StatusActive), session.StatePendingOnboarding},
		{"deactivated", snapWith(session.RoleParticipant, session.StatusInactive), session.StateDeactivated},
		{"admin", snapWith(session.RoleAdmin, session.StatusActive), session.StateAdminAuthorized},
		{"participant", snapWith(session.RoleParticipant, session.StatusActive), session.StateUserAuthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.State())
		})
	}
}
