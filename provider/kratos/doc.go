// Package kratos is the Ory Kratos identity backend. Identities are
// managed through the admin API; administrators sign in with the native
// (API) login flow and are signed out by revoking the session token.
package kratos
