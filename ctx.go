package session

import (
	"context"

	"github.com/goliatone/go-router"
)

var snapshotCtxKey = &contextKey{"snapshot"}
var profileCtxKey = &contextKey{"profile"}

type contextKey struct {
	name string
}

// WithSnapshotContext sets the session snapshot in the given context.
func WithSnapshotContext(r context.Context, snap Snapshot) context.Context {
	return context.WithValue(r, snapshotCtxKey, snap)
}

// SnapshotFromContext finds the session snapshot in the context.
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	raw, ok := ctx.Value(snapshotCtxKey).(Snapshot)
	return raw, ok
}

// WithProfileContext sets the resolved profile in the given context.
func WithProfileContext(r context.Context, profile Profile) context.Context {
	return context.WithValue(r, profileCtxKey, profile)
}

// ProfileFromContext finds the profile in the context.
func ProfileFromContext(ctx context.Context) (Profile, bool) {
	raw, ok := ctx.Value(profileCtxKey).(Profile)
	return raw, ok
}

// GetRouterSnapshot extracts the snapshot the guard middleware stored in the
// router context.
func GetRouterSnapshot(ctx router.Context, key string) (Snapshot, bool) {
	if key == "" {
		key = SnapshotLocalsKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return Snapshot{}, false
	}
	snap, ok := raw.(Snapshot)
	return snap, ok
}

// IsAdminFromContext reports whether the context carries an admin session.
func IsAdminFromContext(ctx context.Context) bool {
	snap, ok := SnapshotFromContext(ctx)
	if !ok {
		return false
	}
	return snap.IsAdmin()
}
