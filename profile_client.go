package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	goerrors "github.com/goliatone/go-errors"
)

// ProfileClient is the REST implementation of ProfileService. Every
// authenticated request carries a bearer token sourced from the TokenStore;
// when the store is empty the request fails locally before it is sent.
type ProfileClient struct {
	baseURL  string
	client   *http.Client
	tokens   TokenStore
	logger   Logger
	maxTries uint
}

// ProfileClientOption customizes the client.
type ProfileClientOption func(*ProfileClient)

// WithProfileHTTPClient overrides the underlying http.Client.
func WithProfileHTTPClient(client *http.Client) ProfileClientOption {
	return func(c *ProfileClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithProfileLogger overrides the client logger.
func WithProfileLogger(logger Logger) ProfileClientOption {
	return func(c *ProfileClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProfileMaxTries bounds retry attempts for transient failures.
func WithProfileMaxTries(tries uint) ProfileClientOption {
	return func(c *ProfileClient) {
		if tries > 0 {
			c.maxTries = tries
		}
	}
}

// NewProfileClient builds a client for the profile service at baseURL.
func NewProfileClient(baseURL string, tokens TokenStore, opts ...ProfileClientOption) *ProfileClient {
	c := &ProfileClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: 15 * time.Second},
		tokens:   tokens,
		logger:   defLogger{},
		maxTries: 3,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

var _ ProfileService = (*ProfileClient)(nil)

// Create provisions a profile record via POST /users.
func (c *ProfileClient) Create(ctx context.Context, rec NewProfile) (Profile, error) {
	return c.do(ctx, http.MethodPost, "/users", rec)
}

// Get fetches the profile keyed by the identity provider's external id.
// 404 and any other read failure are both reported as ErrProfileNotFound:
// downstream the distinction does not matter, the user is treated as not
// yet provisioned.
func (c *ProfileClient) Get(ctx context.Context, externalID string) (Profile, error) {
	profile, err := c.do(ctx, http.MethodGet, "/users/"+externalID, nil)
	if err != nil {
		if goerrors.Is(err, ErrNoToken) {
			return Profile{}, err
		}
		notFound := ErrProfileNotFound.Clone()
		notFound.Source = err
		return Profile{}, notFound.WithMetadata(map[string]any{
			"external_id": externalID,
		})
	}
	return profile, nil
}

// Update applies a partial update via PUT /users/{id}.
func (c *ProfileClient) Update(ctx context.Context, externalID string, patch ProfilePatch) (Profile, error) {
	return c.do(ctx, http.MethodPut, "/users/"+externalID, patch)
}

// ListUsers returns every profile (admin listing endpoint).
func (c *ProfileClient) ListUsers(ctx context.Context) ([]Profile, error) {
	return c.list(ctx, "/api/users")
}

// ListParticipants returns participant profiles (admin listing endpoint).
func (c *ProfileClient) ListParticipants(ctx context.Context) ([]Profile, error) {
	return c.list(ctx, "/api/users/participants")
}

func (c *ProfileClient) do(ctx context.Context, method, path string, body any) (Profile, error) {
	raw, err := c.roundTrip(ctx, method, path, body)
	if err != nil {
		return Profile{}, err
	}

	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return Profile{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode profile response")
	}

	return profile, nil
}

func (c *ProfileClient) list(ctx context.Context, path string) ([]Profile, error) {
	raw, err := c.roundTrip(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode profile listing")
	}

	return profiles, nil
}

// roundTrip sends one authenticated request, retrying transient failures
// (network errors and 5xx) with exponential backoff. 4xx responses are
// permanent.
func (c *ProfileClient) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, ErrNoToken
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encode request body")
		}
	}

	operation := func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, backoff.Permanent(goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request"))
		}

		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("profile service returned %d", resp.StatusCode)
		}

		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(goerrors.New(
				fmt.Sprintf("profile service returned %d", resp.StatusCode),
				categoryForStatus(resp.StatusCode),
			).WithCode(resp.StatusCode).WithMetadata(map[string]any{
				"path":   path,
				"method": method,
			}))
		}

		return raw, nil
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		c.logger.Debug("profile service %s %s failed: %v", method, path, err)
		return nil, err
	}

	return raw, nil
}

func categoryForStatus(status int) goerrors.Category {
	switch status {
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	default:
		return goerrors.CategoryBadInput
	}
}
