// Package client talks to a gophmaster server on behalf of one player.
//
// # Overview
//
// A GRPCClient owns a single bidirectional stream to the server. Requests
// are framed as packet.Frame values and correlated with their responses by
// ID, so several requests may be in flight at once.
//
// Before any credential is sent the client must call Handshake, which
// agrees an X25519 session key with the server. Credential bundles and the
// account info returned by SignIn and SignUp are sealed under that key.
//
// InitDatabase opens the CLI's local SQLite database, which remembers
// session tokens per server so a later run can resume with SignInWithToken.
//
// # Error Handling
//
// Transport failures map to ErrUnavailable. A request the server answered
// with anything but Success yields a *StatusError; use StatusOf to read the
// status.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use. Every request accepts a
// context.Context; cancelling it abandons the wait, not the request.
package client
