package session

import (
	"github.com/goliatone/go-router"
)

var TemplateSessionKey = "session"

// TemplateHelpers returns helper functions for template rendering via
// go-template's WithGlobalData option.
//
// In templates:
//
//	{% if session|is_authenticated %}
//	{% if session|is_admin %}
//	{{ session|display_name }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated":    isAuthenticated,
		"is_admin":            isAdmin,
		"is_loading":          isLoading,
		"onboarding_complete": onboardingComplete,
		"display_name":        displayName,
		"session_state":       sessionState,

		"roles": map[string]string{
			"admin":       string(RoleAdmin),
			"participant": string(RoleParticipant),
		},
	}
}

// TemplateHelpersWithSnapshot injects a snapshot as the template session.
func TemplateHelpersWithSnapshot(snap Snapshot) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateSessionKey] = snap
	return helpers
}

// TemplateHelpersWithRouter pulls the snapshot the guard middleware stored in
// the router context and merges it into the helpers.
func TemplateHelpersWithRouter(ctx router.Context, sessionKey string) map[string]any {
	if sessionKey == "" {
		sessionKey = SnapshotLocalsKey
	}

	helpers := TemplateHelpers()

	if snap, ok := GetRouterSnapshot(ctx, sessionKey); ok {
		helpers[TemplateSessionKey] = snap
	}

	return helpers
}

func isAuthenticated(session any) bool {
	snap, ok := asSnapshot(session)
	if !ok {
		return false
	}
	return !snap.Loading && snap.Identity != nil
}

func isAdmin(session any) bool {
	snap, ok := asSnapshot(session)
	if !ok {
		return false
	}
	return snap.IsAdmin()
}

func isLoading(session any) bool {
	snap, ok := asSnapshot(session)
	if !ok {
		return false
	}
	return snap.Loading
}

func onboardingComplete(session any) bool {
	snap, ok := asSnapshot(session)
	if !ok {
		return false
	}
	profile, provisioned := snap.Profile.Profile()
	return provisioned && profile.OnboardingComplete()
}

func displayName(session any) string {
	snap, ok := asSnapshot(session)
	if !ok {
		return ""
	}

	if profile, provisioned := snap.Profile.Profile(); provisioned && profile.DisplayName != "" {
		return profile.DisplayName
	}
	if snap.Identity != nil {
		return snap.Identity.DisplayName()
	}
	return ""
}

func sessionState(session any) string {
	snap, ok := asSnapshot(session)
	if !ok {
		return string(StateAnonymous)
	}
	return string(snap.State())
}

func asSnapshot(session any) (Snapshot, bool) {
	switch s := session.(type) {
	case Snapshot:
		return s, true
	case *Snapshot:
		if s == nil {
			return Snapshot{}, false
		}
		return *s, true
	default:
		return Snapshot{}, false
	}
}
