package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// InitializePasswordResetMessage asks the identity provider to start a
// password reset for the given email. The provider mails the link; no reset
// state is kept locally.
type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "session.password_reset" }

type InitializePasswordResetResponse struct {
	Email   string
	Success bool
}

type InitializePasswordResetHandler struct {
	provider IdentityProvider
	activity ActivitySink
}

// NewInitializePasswordResetHandler wires the handler to its collaborators.
func NewInitializePasswordResetHandler(provider IdentityProvider, activity ActivitySink) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		provider: provider,
		activity: normalizeActivitySink(activity),
	}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Email == "" {
		return goerrors.New("email is required for password reset", goerrors.CategoryBadInput)
	}

	if err := h.provider.SendPasswordReset(ctx, event.Email); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		Actor:      ActorRef{ID: event.Email, Type: "user"},
		Metadata:   map[string]any{"email": event.Email},
		OccurredAt: time.Now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Email:   event.Email,
			Success: true,
		})
	}

	return nil
}
