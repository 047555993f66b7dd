package restid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Client talks to the identity service's accounts API. It is stateless;
// IdentityProvider layers credential state on top.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates an accounts API client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		http:   cfg.httpClient(),
	}, nil
}

// credentials is the common shape returned by sign-up, sign-in, and
// account-update calls.
type credentials struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (c credentials) expiry(now time.Time) time.Time {
	seconds, err := strconv.Atoi(c.ExpiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return now.Add(time.Duration(seconds) * time.Second)
}

// SignUp registers a new account with the identity service.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (credentials, error) {
	creds, err := c.accounts(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"displayName":       displayName,
		"returnSecureToken": true,
	})
	if err != nil {
		return credentials{}, err
	}
	if creds.DisplayName == "" {
		creds.DisplayName = displayName
	}
	return creds, nil
}

// SignIn exchanges email and password for a token pair.
func (c *Client) SignIn(ctx context.Context, email, password string) (credentials, error) {
	return c.accounts(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// SendPasswordReset asks the service to mail a reset link.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	_, err := c.accounts(ctx, "sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
	return err
}

// UpdateDisplayName updates the profile attributes attached to idToken.
func (c *Client) UpdateDisplayName(ctx context.Context, idToken, displayName string) (credentials, error) {
	return c.accounts(ctx, "update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": true,
	})
}

// Lookup resolves the account behind idToken.
func (c *Client) Lookup(ctx context.Context, idToken string) (credentials, error) {
	raw, err := c.post(ctx, c.accountsURL("lookup"), map[string]any{"idToken": idToken})
	if err != nil {
		return credentials{}, err
	}

	var payload struct {
		Users []credentials `json:"users"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return credentials{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode lookup response")
	}
	if len(payload.Users) == 0 {
		return credentials{}, goerrors.New("identity not found", goerrors.CategoryAuth).
			WithTextCode("IDENTITY_NOT_FOUND").
			WithCode(goerrors.CodeUnauthorized)
	}

	return payload.Users[0], nil
}

// Refresh exchanges a refresh token for a fresh ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (credentials, error) {
	url := fmt.Sprintf("%s/v1/token?key=%s", strings.TrimSuffix(c.config.BaseURL, "/"), c.config.APIKey)
	raw, err := c.post(ctx, url, map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return credentials{}, err
	}

	var payload struct {
		UserID       string `json:"user_id"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return credentials{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode refresh response")
	}

	return credentials{
		LocalID:      payload.UserID,
		IDToken:      payload.IDToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

func (c *Client) accounts(ctx context.Context, action string, body map[string]any) (credentials, error) {
	raw, err := c.post(ctx, c.accountsURL(action), body)
	if err != nil {
		return credentials{}, err
	}

	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return credentials{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode accounts response")
	}

	return creds, nil
}

func (c *Client) accountsURL(action string) string {
	return fmt.Sprintf("%s/v1/accounts:%s?key=%s",
		strings.TrimSuffix(c.config.BaseURL, "/"), action, c.config.APIKey)
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity service unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read identity response")
	}

	if resp.StatusCode >= 400 {
		return nil, normalizeServiceError(resp.StatusCode, raw)
	}

	return raw, nil
}

// normalizeServiceError maps the service's error envelope into a rich error.
// The service reports machine codes like EMAIL_EXISTS or INVALID_PASSWORD in
// error.message.
func normalizeServiceError(status int, raw []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	code := "IDENTITY_ERROR"
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		code = strings.SplitN(envelope.Error.Message, " ", 2)[0]
	}

	category := goerrors.CategoryAuth
	switch code {
	case "EMAIL_EXISTS":
		category = goerrors.CategoryConflict
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		category = goerrors.CategoryRateLimit
	}
	if status >= 500 {
		category = goerrors.CategoryInternal
	}

	return goerrors.New("identity service rejected the request", category).
		WithTextCode(code).
		WithCode(status)
}
