// Package stockroom provides the session lifecycle of the inventory dashboard
// client: sign-up, confirmation, sign-in, password reset and sign-out against
// an external identity provider, plus the token source used to authorize
// inventory API requests.
//
// Session lifecycle:
//   - Manager drives every flow and is the only writer of the SessionStore.
//     It exposes booleans (IsAuthenticated, IsLoading), the current AuthState
//     and the derived UserProfile. Raw tokens never leave the store.
//   - SessionStore keeps the last committed Session behind a RWMutex and
//     persists the identity handle through a SessionCache so RestoreSession can
//     pick it up on the next process start.
//   - AuthStateMachine validates transitions between unknown, restoring,
//     authenticating, authenticated and unauthenticated states.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Manager to describe
//     login, logout, sign-up and password reset events. Sinks run best-effort
//     (errors are logged) so you can forward to metrics or a queue without
//     blocking authentication.
//
// Providers:
//   - IdentityProvider is the narrow contract the core depends on. The
//     provider/cognito package implements it on top of AWS Cognito user pools.
package stockroom
