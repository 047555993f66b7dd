package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// State is the session state machine's view of a Snapshot.
type State string

const (
	StateLoading           State = "loading"
	StateAnonymous         State = "anonymous"
	StatePendingOnboarding State = "pending-onboarding"
	StateDeactivated       State = "deactivated"
	StateAdminAuthorized   State = "admin-authorized"
	StateUserAuthorized    State = "user-authorized"
)

// ErrInvalidTransition is returned when a session state change does not
// correspond to any legal identity/profile event.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_SESSION_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor  ActorRef
	From   State
	To     State
	Reason string
}

// TransitionHook is executed after a state change has been accepted.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*stateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *stateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink that receives
// transition events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *stateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *stateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionHook adds a hook executed after each accepted transition.
func WithTransitionHook(h TransitionHook) StateMachineOption {
	return func(sm *stateMachine) {
		if h != nil {
			sm.hooks = append(sm.hooks, h)
		}
	}
}

// StateMachine validates and records session state changes. States are
// derived from Snapshots; the machine never mutates session state itself,
// it only checks that an observed change is explicable and publishes it.
type StateMachine interface {
	Apply(ctx context.Context, actor ActorRef, from, to State, reason string) error
	CanTransition(from, to State) bool
}

// NewStateMachine returns the default implementation.
//
// There is no terminal state: every signed-in state can fall back to
// Anonymous (sign-out from any screen), and Loading is only ever left, never
// re-entered.
func NewStateMachine(opts ...StateMachineOption) StateMachine {
	sm := &stateMachine{
		transitions: map[State]map[State]struct{}{
			StateLoading: {
				StateAnonymous:         {},
				StatePendingOnboarding: {},
				StateDeactivated:       {},
				StateAdminAuthorized:   {},
				StateUserAuthorized:    {},
			},
			StateAnonymous: {
				StatePendingOnboarding: {},
				StateDeactivated:       {},
				StateAdminAuthorized:   {},
				StateUserAuthorized:    {},
			},
			StatePendingOnboarding: {
				StateAnonymous:       {},
				StateDeactivated:     {},
				StateAdminAuthorized: {},
				StateUserAuthorized:  {},
			},
			StateDeactivated: {
				StateAnonymous:         {},
				StatePendingOnboarding: {},
				StateAdminAuthorized:   {},
				StateUserAuthorized:    {},
			},
			StateAdminAuthorized: {
				StateAnonymous:         {},
				StatePendingOnboarding: {},
				StateDeactivated:       {},
				StateUserAuthorized:    {},
			},
			StateUserAuthorized: {
				StateAnonymous:         {},
				StatePendingOnboarding: {},
				StateDeactivated:       {},
				StateAdminAuthorized:   {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type stateMachine struct {
	transitions  map[State]map[State]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
	hooks        []TransitionHook
}

func (sm *stateMachine) CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *stateMachine) Apply(ctx context.Context, actor ActorRef, from, to State, reason string) error {
	if from == to {
		return nil
	}

	if !sm.CanTransition(from, to) {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	}

	tc := TransitionContext{
		Actor:  actor,
		From:   from,
		To:     to,
		Reason: reason,
	}

	for _, hook := range sm.hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tc); err != nil {
			return err
		}
	}

	event := ActivityEvent{
		EventType:  ActivityEventStateChanged,
		Actor:      actor,
		FromState:  from,
		ToState:    to,
		OccurredAt: sm.now(),
	}
	if reason != "" {
		event.Metadata = map[string]any{"reason": reason}
	}

	if err := sm.activitySink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}

	return nil
}
