// Package restid implements session.IdentityProvider against a REST identity
// service with an Identity-Toolkit style accounts API. It owns the refresh
// token and password flows; callers only ever see identities and ID tokens.
package restid
