// Package auth implements session-based authentication for a CRM admin
// backend: opaque bearer tokens, a server-side session store, and an
// HTTP gate that resolves tokens into an AuthContext.
//
// Tokens and sessions:
//   - Tokens are opaque random strings prefixed by kind (session or
//     API); nothing about a token is self-validating, the session row
//     is the source of truth. Deleting the row revokes the credential.
//   - SessionManager centralizes the lifecycle: login mints a token and
//     persists a session with the client fingerprint, logout deletes one
//     session, logoutAll deletes every session for a user, and password
//     rotation keeps only the most recently active session.
//
// Request gating:
//   - middleware/sessionware extracts the bearer token from the request
//     and calls SessionManager.AuthenticateRequest. Every failure mode
//     (missing, unknown, expired, archived owner) yields the same 401
//     body. A fingerprint mismatch downgrades trust and logs a warning
//     but never rejects the request.
//
// Bootstrap:
//   - InitRootHandler creates the first user without authentication,
//     gated by a configured root email and an empty users table. Once a
//     user exists the endpoint answers 403 forever.
package auth
