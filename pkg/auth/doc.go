// Package auth verifies user credentials against the directory backend.
//
// The Authenticator borrows a pooled connection, resolves the user's
// entry, verifies the password with a user bind, and maps the entry's
// directory groups to local roles through the pool's role mapping. The
// connection goes back to the pool on every path.
package auth
