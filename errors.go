package session

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrNotAuthenticated is returned when an authenticated operation is invoked
// with no current identity.
var ErrNotAuthenticated = goerrors.New("no authenticated identity", goerrors.CategoryAuth).
	WithTextCode("NOT_AUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoIdentityEmail is returned when reauthentication is requested for an
// identity that carries no email.
var ErrNoIdentityEmail = goerrors.New("current identity has no email", goerrors.CategoryAuth).
	WithTextCode("NO_IDENTITY_EMAIL").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoToken is the local pre-flight failure for authenticated REST calls
// when the token store is empty. The request is never sent.
var ErrNoToken = goerrors.New("no bearer token available", goerrors.CategoryAuth).
	WithTextCode("NO_TOKEN").
	WithCode(goerrors.CodeUnauthorized)

// ErrProfileNotFound means the identity has no application profile yet.
// Benign during onboarding; it triggers the self-heal creation attempt.
var ErrProfileNotFound = goerrors.New("application profile not provisioned", goerrors.CategoryNotFound).
	WithTextCode("PROFILE_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrIdentityNotFound is the error we return when the identity provider
// reports no such user.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeUnauthorized)

// IsProfileNotFound reports whether err means "not yet provisioned". Any
// profile-service read failure is treated this way on the self-heal path.
func IsProfileNotFound(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrProfileNotFound) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == "PROFILE_NOT_FOUND"
	}
	return false
}

// IsNotAuthenticated reports whether err is the missing-identity failure.
func IsNotAuthenticated(err error) bool {
	return goerrors.Is(err, ErrNotAuthenticated)
}
