package session

// Snapshot is the resolved session state at a point in time. It is a value:
// watchers receive copies and can never race the Manager's own bookkeeping.
//
// Invariant: Profile is never provisioned while Identity is nil. The Manager
// is the only writer and enforces this on every update.
type Snapshot struct {
	Identity Identity
	Profile  ProfileState
	Loading  bool
}

// IsAdmin is derived from the profile role on every call; there is no stored
// flag to go stale.
func (s Snapshot) IsAdmin() bool {
	return s.Profile.Role() == RoleAdmin
}

// State collapses the snapshot into the session state machine's view.
func (s Snapshot) State() State {
	switch {
	case s.Loading:
		return StateLoading
	case s.Identity == nil:
		return StateAnonymous
	case s.Profile.Role() == RoleUnset:
		return StatePendingOnboarding
	default:
		profile, _ := s.Profile.Profile()
		if !profile.IsActive() {
			return StateDeactivated
		}
		if s.IsAdmin() {
			return StateAdminAuthorized
		}
		return StateUserAuthorized
	}
}
