// Package session is the authentication and session core for the HiveCash
// portal: it tracks who is signed in, provisions their application profile,
// and gates route rendering accordingly.
//
// Session lifecycle:
//   - Manager is the single source of truth for the current session. It
//     subscribes to the identity provider's session-change stream and, on
//     each notification, refreshes the bearer token into the TokenStore and
//     fetches (or self-heals by creating) the application profile. Consumers
//     observe the resulting Snapshot via Watch.
//   - Profile provisioning is deliberately lazy: a user can exist at the
//     identity provider before their application profile does (right after
//     sign-up, or after a partial failure); the next session-change repairs
//     the gap instead of requiring a reconciliation job.
//
// Route authorization:
//   - Decide is a pure function from (path, GuardOptions, Snapshot) to a
//     Decision, so the full redirect policy is unit-testable without a
//     router. RouteGuard acts on Decisions as go-router middleware, carrying
//     the originally requested path in a short-lived cookie for post-login
//     redirects.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by the Manager and
//     the portal controller to describe sign-in, sign-up, sign-out, token
//     refresh, and profile self-heal events. Sink errors are logged, never
//     propagated, so audit forwarding cannot block authentication.
package session
