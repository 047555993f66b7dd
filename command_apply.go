package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// SubmitApplicationMessage carries an influencer application from the
// marketing site's apply form.
type SubmitApplicationMessage struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PhoneRegion  string `json:"phone_region"`
	SocialHandle string `json:"social_handle"`
	Platform     string `json:"platform"`
	OnResponse   func(resp *SubmitApplicationResponse)
}

func (e SubmitApplicationMessage) Type() string { return "portal.application.submit" }

type SubmitApplicationResponse struct {
	ProfileID       string
	NormalizedPhone string
	Success         bool
}

type SubmitApplicationHandler struct {
	provision *ProvisionProfileHandler
	activity  ActivitySink
}

// NewSubmitApplicationHandler wires the handler to the profile service and
// its activity sink.
func NewSubmitApplicationHandler(profiles ProfileService, activity ActivitySink) *SubmitApplicationHandler {
	sink := normalizeActivitySink(activity)
	return &SubmitApplicationHandler{
		provision: NewProvisionProfileHandler(profiles, sink),
		activity:  sink,
	}
}

func (h *SubmitApplicationHandler) Execute(ctx context.Context, event SubmitApplicationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during application submission",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SubmitApplicationHandler) execute(ctx context.Context, event SubmitApplicationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &SubmitApplicationResponse{}

	phone, err := NormalizePhone(event.Phone, event.PhoneRegion)
	if err != nil {
		return err
	}
	resp.NormalizedPhone = phone

	// The applicant has no identity-provider account yet, so the profile id
	// is derived from the email. Role stays unset until an admin reviews the
	// application.
	var profile Profile
	if err := h.provision.Execute(ctx, ProvisionProfileMessage{
		Email:       event.Email,
		DisplayName: event.FullName,
		UseHashid:   true,
		OnResponse:  func(p Profile) { profile = p },
	}); err != nil {
		return err
	}
	resp.ProfileID = profile.ID

	if err := h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventApplication,
		Actor:      ActorRef{ID: event.Email, Type: "applicant"},
		ExternalID: profile.ID,
		Metadata: map[string]any{
			"full_name":     event.FullName,
			"email":         event.Email,
			"phone":         phone,
			"social_handle": event.SocialHandle,
			"platform":      event.Platform,
			"profile_id":    profile.ID,
		},
		OccurredAt: time.Now(),
	}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record application")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// NormalizePhone parses a phone number and returns its E.164 form. Region is
// the default country for numbers without an international prefix; it
// defaults to US.
func NormalizePhone(phone, region string) (string, error) {
	if region == "" {
		region = "US"
	}

	parsed, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithTextCode("INVALID_PHONE")
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", goerrors.New("phone number is not valid for its region", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
