// Package memory is an in-process identity backend. It keeps identities and
// bcrypt password hashes in memory and gives every auth context its own
// sign-in state, which makes it suitable for local runs and tests.
package memory
