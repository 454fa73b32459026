// Package cli provides the interactive gophmaster command-line client.
//
// It dials the server, completes the key handshake and runs a REPL whose
// commands map one to one onto the account operations of the client
// package: guest, password, token and email sign-in, registration, password
// reset, email confirmation and extra properties.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
