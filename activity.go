package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess     ActivityEventType = "session.signin.success"
	ActivityEventSignInFailure     ActivityEventType = "session.signin.failure"
	ActivityEventSignUpSuccess     ActivityEventType = "session.signup.success"
	ActivityEventSignUpFailure     ActivityEventType = "session.signup.failure"
	ActivityEventSignOut           ActivityEventType = "session.signout"
	ActivityEventTokenRefresh      ActivityEventType = "session.token.refresh"
	ActivityEventProfileSelfHeal   ActivityEventType = "session.profile.selfheal"
	ActivityEventProfileProvision  ActivityEventType = "session.profile.provisioned"
	ActivityEventProfileWriteError ActivityEventType = "session.profile.write_error"
	ActivityEventPasswordReset     ActivityEventType = "session.password.reset"
	ActivityEventApplication       ActivityEventType = "portal.application.submitted"
	ActivityEventStateChanged      ActivityEventType = "session.state.changed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	ExternalID string
	FromState  State
	ToState    State
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: callers log failures and move on.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
