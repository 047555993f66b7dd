package session

// GuardOptions parameterizes a guarded route.
type GuardOptions struct {
	// RequireAdmin redirects non-admin sessions to the unauthorized view.
	RequireAdmin bool
	// RequireApproved is accepted for call-site compatibility but does not
	// currently participate in the decision.
	RequireApproved bool
}

// DefaultGuardOptions returns the defaults: RequireAdmin off,
// RequireApproved on.
func DefaultGuardOptions() GuardOptions {
	return GuardOptions{RequireAdmin: false, RequireApproved: true}
}

// DecisionKind discriminates guard decisions.
type DecisionKind int

const (
	// DecisionAllow renders the requested children.
	DecisionAllow DecisionKind = iota
	// DecisionLoading renders a loading placeholder; no redirect.
	DecisionLoading
	// DecisionRedirect sends the client elsewhere. From carries the
	// originally requested path when it should be restored post-login.
	DecisionRedirect
)

// Decision is the outcome of one guard evaluation. The guard never errors:
// every unmet precondition maps to a redirect.
type Decision struct {
	Kind   DecisionKind
	Target string
	From   string
}

func allow() Decision {
	return Decision{Kind: DecisionAllow}
}

func loading() Decision {
	return Decision{Kind: DecisionLoading}
}

func redirect(target string) Decision {
	return Decision{Kind: DecisionRedirect, Target: target}
}

func redirectFrom(target, from string) Decision {
	return Decision{Kind: DecisionRedirect, Target: target, From: from}
}

// GuardRoutes names the navigation targets the guard redirects to.
type GuardRoutes struct {
	Login        string
	Apply        string
	Unauthorized string
	Deactivated  string
	AdminHome    string
	UserHome     string
	Root         string
	Dashboard    string
}

// DefaultGuardRoutes returns the portal's route map.
func DefaultGuardRoutes() GuardRoutes {
	return GuardRoutes{
		Login:        "/login",
		Apply:        "/apply-now",
		Unauthorized: "/unauthorized",
		Deactivated:  "/deactivated",
		AdminHome:    "/admin/dashboard",
		UserHome:     "/user/dashboard",
		Root:         "/",
		Dashboard:    "/dashboard",
	}
}

// Decide is the route authorization policy: a pure function over the
// requested path, the guard options, and the session snapshot. Rules are
// evaluated in order; the first match wins.
func Decide(path string, opts GuardOptions, snap Snapshot, routes GuardRoutes) Decision {
	if snap.Loading {
		return loading()
	}

	if snap.Identity == nil {
		return redirectFrom(routes.Login, path)
	}

	if opts.RequireAdmin && !snap.IsAdmin() {
		return redirect(routes.Unauthorized)
	}

	profile, provisioned := snap.Profile.Profile()
	if !provisioned || profile.Role == RoleUnset {
		return redirect(routes.Apply)
	}

	if !profile.IsActive() {
		return redirect(routes.Deactivated)
	}

	// The bare root and the generic dashboard fan out to the role-specific
	// home; this beats rendering children for those two paths.
	if path == routes.Root || path == routes.Dashboard {
		if snap.IsAdmin() {
			return redirect(routes.AdminHome)
		}
		return redirect(routes.UserHome)
	}

	return allow()
}
