package session

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/hivecash/go-session/middleware/tokenware"
)

// SnapshotLocalsKey is where guard middleware stores the snapshot in the
// router context for downstream handlers and template helpers.
var SnapshotLocalsKey = "session"

// RouteGuard gates rendering of protected views based on the session
// snapshot. It re-evaluates the pure Decide policy on every request and only
// acts on the returned Decision: render, loading view, or redirect.
type RouteGuard struct {
	source       SnapshotSource
	cfg          Config
	routes       GuardRoutes
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewRouteGuard builds a guard over the given snapshot source (normally the
// Manager).
func NewRouteGuard(source SnapshotSource, cfg Config) (*RouteGuard, error) {
	if source == nil {
		return nil, goerrors.New("route guard requires a snapshot source", goerrors.CategoryBadInput)
	}

	g := &RouteGuard{
		source: source,
		cfg:    cfg,
		routes: DefaultGuardRoutes(),
		Logger: defLogger{},
	}
	g.ErrorHandler = g.defaultErrHandler

	return g, nil
}

// WithRoutes overrides the redirect targets.
func (g *RouteGuard) WithRoutes(routes GuardRoutes) *RouteGuard {
	g.routes = routes
	return g
}

// WithLogger overrides the guard logger.
func (g *RouteGuard) WithLogger(logger Logger) *RouteGuard {
	if logger != nil {
		g.Logger = logger
	}
	return g
}

// Routes returns the guard's redirect targets.
func (g *RouteGuard) Routes() GuardRoutes {
	return g.routes
}

// Protected returns middleware enforcing the guard policy for one route.
func (g *RouteGuard) Protected(opts GuardOptions) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			snap := g.source.Snapshot()
			decision := Decide(ctx.Path(), opts, snap, g.routes)

			switch decision.Kind {
			case DecisionAllow:
				ctx.Locals(SnapshotLocalsKey, snap)
				ctx.SetContext(WithSnapshotContext(ctx.Context(), snap))
				return ctx.Next()
			case DecisionLoading:
				return ctx.Render(g.cfg.GetLoadingView(), router.ViewContext{})
			default:
				if decision.From != "" {
					g.SetRedirect(ctx, decision.From)
				}
				return g.redirect(ctx, decision.Target)
			}
		}
	}
}

// ProtectedAPI returns middleware for JSON API routes. Browser routes carry
// session state server side; API calls instead authenticate every request
// with a bearer ID token. The validator is normally a restid.TokenValidator
// wrapped in tokenware.ValidatorFunc.
func (g *RouteGuard) ProtectedAPI(validator tokenware.TokenValidator, opts GuardOptions) router.MiddlewareFunc {
	return tokenware.New(tokenware.Config{
		TokenValidator: validator,
		Authorize: func(ctx router.Context, claims tokenware.AuthClaims) error {
			snap := g.source.Snapshot()
			if opts.RequireAdmin && !snap.IsAdmin() {
				return goerrors.New("administrator access required", goerrors.CategoryAuthz).
					WithCode(http.StatusForbidden)
			}
			ctx.Locals(SnapshotLocalsKey, snap)
			return nil
		},
		ErrorHandler: g.apiErrHandler,
	})
}

func (g *RouteGuard) apiErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryAuthz {
		return c.Status(http.StatusForbidden).SendString("Administrator access required")
	}
	if err.Error() == tokenware.ErrTokenMissingOrInvalid.Error() {
		return c.Status(http.StatusBadRequest).SendString(tokenware.ErrTokenMissingOrInvalid.Error())
	}
	return c.Status(http.StatusUnauthorized).SendString("Invalid or expired token")
}

// SetRedirect stores the originally requested path in a short-lived cookie
// so the login flow can restore it.
func (g *RouteGuard) SetRedirect(ctx router.Context, path string) {
	rejectedRoute := g.cfg.GetRejectedRouteKey()

	g.Logger.Info("setting redirect cookie", "key", rejectedRoute, "path", path)

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    path,
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the stored path, falling back to def.
func (g *RouteGuard) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

// GetRedirectOrDefault pops the stored path, falling back to the referer
// header, then the configured default.
func (g *RouteGuard) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

func (g *RouteGuard) redirect(ctx router.Context, target string) error {
	statusCode := http.StatusSeeOther
	if ctx.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return ctx.Redirect(target, statusCode)
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	g.Logger.Info(
		"guard error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		g.SetRedirect(c, c.OriginalURL())
		return g.redirect(c, g.routes.Login)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
