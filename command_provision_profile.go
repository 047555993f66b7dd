package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// ProvisionProfileMessage requests creation of an application profile for an
// identity. When UseHashid is set and ExternalID is empty the id is derived
// deterministically from the email, so retried provisioning converges on the
// same record.
type ProvisionProfileMessage struct {
	ExternalID  string `json:"external_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	UseHashid   bool
	OnResponse  func(Profile)
}

func (e ProvisionProfileMessage) Type() string { return "profile.provision" }

type ProvisionProfileHandler struct {
	profiles ProfileService
	activity ActivitySink
}

// NewProvisionProfileHandler wires the handler to its collaborators.
func NewProvisionProfileHandler(profiles ProfileService, activity ActivitySink) *ProvisionProfileHandler {
	return &ProvisionProfileHandler{
		profiles: profiles,
		activity: normalizeActivitySink(activity),
	}
}

func (h *ProvisionProfileHandler) Execute(ctx context.Context, event ProvisionProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ProvisionProfileHandler) execute(ctx context.Context, event ProvisionProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Email == "" {
		return goerrors.New("email is required to provision a profile", goerrors.CategoryBadInput)
	}

	externalID := event.ExternalID
	if externalID == "" && event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			externalID = id.String()
		}
	}
	if externalID == "" {
		return goerrors.New("external id is required to provision a profile", goerrors.CategoryBadInput)
	}

	profile, err := h.profiles.Create(ctx, NewProfile{
		ID:          externalID,
		Email:       event.Email,
		DisplayName: event.DisplayName,
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to provision profile")
	}

	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventProfileProvision,
		Actor:      ActorRef{ID: externalID, Type: "user"},
		ExternalID: externalID,
		Metadata:   map[string]any{"email": event.Email},
		OccurredAt: time.Now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(profile)
	}

	return nil
}
