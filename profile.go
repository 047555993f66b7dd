package session

import (
	"time"
)

// Role is the application-level role carried by a Profile.
type Role = string

const (
	// RoleAdmin can manage participants, campaigns, and eligibility requests.
	RoleAdmin Role = "admin"
	// RoleParticipant is an approved campaign participant.
	RoleParticipant Role = "participant"
	// RoleUnset marks a profile whose onboarding has not completed.
	RoleUnset Role = ""
)

// ProfileStatus is the lifecycle status of a Profile.
type ProfileStatus = string

const (
	StatusActive   ProfileStatus = "active"
	StatusInactive ProfileStatus = "inactive"
)

// ParseRole safely parses a string into a Role.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role == RoleAdmin || role == RoleParticipant || role == RoleUnset
}

// Profile is the application user record, keyed by the identity provider's
// external id. It is owned by the profile service; this package only ever
// holds a copy.
type Profile struct {
	ID          string        `json:"id,omitempty"`
	Email       string        `json:"email,omitempty"`
	DisplayName string        `json:"displayName,omitempty"`
	Role        Role          `json:"role,omitempty"`
	Status      ProfileStatus `json:"status,omitempty"`
	CreatedAt   *time.Time    `json:"created_at,omitempty"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
}

// IsActive treats a missing status as active; the profile service only
// writes "inactive" explicitly.
func (p Profile) IsActive() bool {
	return p.Status != StatusInactive
}

// OnboardingComplete reports whether a role has been assigned.
func (p Profile) OnboardingComplete() bool {
	return p.Role != RoleUnset
}

// NewProfile is the creation payload for POST /users.
type NewProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// ProfilePatch is a partial update for PUT /users/{id}. Nil fields are
// omitted from the request body.
type ProfilePatch struct {
	DisplayName *string        `json:"displayName,omitempty"`
	Role        *Role          `json:"role,omitempty"`
	Status      *ProfileStatus `json:"status,omitempty"`
}

// ProfileState is a tagged variant: either Unprovisioned (no application
// profile for the current identity) or Provisioned with a Profile.
// "Onboarding incomplete" is therefore a type-level state rather than an
// absent-field convention.
type ProfileState struct {
	profile *Profile
}

// Unprovisioned returns the absent state.
func Unprovisioned() ProfileState {
	return ProfileState{}
}

// Provisioned wraps a fetched or created profile.
func Provisioned(p Profile) ProfileState {
	return ProfileState{profile: &p}
}

// IsProvisioned reports whether a profile is present.
func (s ProfileState) IsProvisioned() bool {
	return s.profile != nil
}

// Profile returns the wrapped profile, if provisioned.
func (s ProfileState) Profile() (Profile, bool) {
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// Role returns the profile role, or RoleUnset when unprovisioned.
func (s ProfileState) Role() Role {
	if s.profile == nil {
		return RoleUnset
	}
	return s.profile.Role
}
