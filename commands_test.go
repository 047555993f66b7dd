package session_test

import (
	"context"
	"errors"
	"testing"

	session "github.com/hivecash/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		region  string
		want    string
		wantErr bool
	}{
		{
			name:   "national number defaults to US",
			phone:  "(415) 555-2671",
			region: "",
			want:   "+14155552671",
		},
		{
			name:   "international prefix wins over region",
			phone:  "+44 20 7946 0958",
			region: "US",
			want:   "+442079460958",
		},
		{
			name:   "explicit region",
			phone:  "20 7946 0958",
			region: "GB",
			want:   "+442079460958",
		},
		{
			name:    "garbage input",
			phone:   "not a phone",
			region:  "US",
			wantErr: true,
		},
		{
			name:    "too short for region",
			phone:   "555",
			region:  "US",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := session.NormalizePhone(tt.phone, tt.region)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubmitApplicationHandler(t *testing.T) {
	profiles := newFakeProfiles()
	sink := &captureSink{}
	handler := session.NewSubmitApplicationHandler(profiles, sink)

	var resp *session.SubmitApplicationResponse
	err := handler.Execute(context.Background(), session.SubmitApplicationMessage{
		FullName:     "Jamie Rivera",
		Email:        "jamie@example.com",
		Phone:        "(415) 555-2671",
		SocialHandle: "@jamie",
		Platform:     "instagram",
		OnResponse:   func(r *session.SubmitApplicationResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "+14155552671", resp.NormalizedPhone)

	// The application lands as an unreviewed profile: role stays unset until
	// an admin approves it.
	require.NotEmpty(t, resp.ProfileID)
	assert.Equal(t, 1, profiles.creates)
	created, err := profiles.Get(context.Background(), resp.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, "jamie@example.com", created.Email)
	assert.Equal(t, "Jamie Rivera", created.DisplayName)
	assert.Equal(t, session.RoleUnset, created.Role)

	events := sink.byType(session.ActivityEventApplication)
	require.Len(t, events, 1)
	assert.Equal(t, "jamie@example.com", events[0].Actor.ID)
	assert.Equal(t, "+14155552671", events[0].Metadata["phone"])
	assert.Equal(t, "instagram", events[0].Metadata["platform"])
	assert.Equal(t, resp.ProfileID, events[0].Metadata["profile_id"])
}

func TestSubmitApplicationHandlerRejectsBadPhone(t *testing.T) {
	profiles := newFakeProfiles()
	sink := &captureSink{}
	handler := session.NewSubmitApplicationHandler(profiles, sink)

	err := handler.Execute(context.Background(), session.SubmitApplicationMessage{
		Email: "jamie@example.com",
		Phone: "nope",
	})
	require.Error(t, err)
	assert.Empty(t, sink.events)
	assert.Equal(t, 0, profiles.creates)
}

func TestSubmitApplicationHandlerProfileWriteFailure(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.createErr = errors.New("profile service down")
	sink := &captureSink{}
	handler := session.NewSubmitApplicationHandler(profiles, sink)

	err := handler.Execute(context.Background(), session.SubmitApplicationMessage{
		FullName: "Jamie Rivera",
		Email:    "jamie@example.com",
		Phone:    "(415) 555-2671",
	})
	require.Error(t, err)
	assert.Empty(t, sink.byType(session.ActivityEventApplication))
}

func TestSubmitApplicationHandlerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := session.NewSubmitApplicationHandler(newFakeProfiles(), nil)
	err := handler.Execute(ctx, session.SubmitApplicationMessage{Phone: "(415) 555-2671"})
	assert.Error(t, err)
}

func TestProvisionProfileHandler(t *testing.T) {
	profiles := newFakeProfiles()
	sink := &captureSink{}
	handler := session.NewProvisionProfileHandler(profiles, sink)

	var got session.Profile
	err := handler.Execute(context.Background(), session.ProvisionProfileMessage{
		ExternalID:  "uid-1",
		Email:       "u@example.com",
		DisplayName: "U",
		OnResponse:  func(p session.Profile) { got = p },
	})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.ID)
	assert.Equal(t, 1, profiles.creates)
	assert.Len(t, sink.byType(session.ActivityEventProfileProvision), 1)
}

func TestProvisionProfileHandlerHashidIsDeterministic(t *testing.T) {
	profiles := newFakeProfiles()
	handler := session.NewProvisionProfileHandler(profiles, nil)

	var first, second session.Profile
	msg := session.ProvisionProfileMessage{
		Email:       "u@example.com",
		DisplayName: "U",
		UseHashid:   true,
	}

	msg.OnResponse = func(p session.Profile) { first = p }
	require.NoError(t, handler.Execute(context.Background(), msg))

	msg.OnResponse = func(p session.Profile) { second = p }
	require.NoError(t, handler.Execute(context.Background(), msg))

	assert.NotEmpty(t, first.ID)
	// Same email always derives the same id, so retries converge.
	assert.Equal(t, first.ID, second.ID)
}

func TestProvisionProfileHandlerRequiresEmailAndID(t *testing.T) {
	handler := session.NewProvisionProfileHandler(newFakeProfiles(), nil)

	err := handler.Execute(context.Background(), session.ProvisionProfileMessage{
		ExternalID: "uid-1",
	})
	assert.Error(t, err)

	err = handler.Execute(context.Background(), session.ProvisionProfileMessage{
		Email: "u@example.com",
	})
	assert.Error(t, err)
}

func TestProvisionProfileHandlerCreateFailure(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.createErr = errors.New("profile service down")
	sink := &captureSink{}
	handler := session.NewProvisionProfileHandler(profiles, sink)

	err := handler.Execute(context.Background(), session.ProvisionProfileMessage{
		ExternalID: "uid-1",
		Email:      "u@example.com",
	})
	require.Error(t, err)
	assert.Empty(t, sink.events)
}

func TestInitializePasswordResetHandler(t *testing.T) {
	provider := newFakeProvider()
	sink := &captureSink{}
	handler := session.NewInitializePasswordResetHandler(provider, sink)

	var resp *session.InitializePasswordResetResponse
	err := handler.Execute(context.Background(), session.InitializePasswordResetMessage{
		Email:      "u@example.com",
		OnResponse: func(r *session.InitializePasswordResetResponse) { resp = r },
	})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"u@example.com"}, provider.resetEmails)
	assert.Len(t, sink.byType(session.ActivityEventPasswordReset), 1)
}

func TestInitializePasswordResetHandlerRequiresEmail(t *testing.T) {
	handler := session.NewInitializePasswordResetHandler(newFakeProvider(), nil)

	err := handler.Execute(context.Background(), session.InitializePasswordResetMessage{})
	assert.Error(t, err)
}

func TestInitializePasswordResetHandlerProviderFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.resetErr = errors.New("mailer down")
	sink := &captureSink{}
	handler := session.NewInitializePasswordResetHandler(provider, sink)

	err := handler.Execute(context.Background(), session.InitializePasswordResetMessage{
		Email: "u@example.com",
	})
	require.Error(t, err)
	assert.Empty(t, sink.events)
}
