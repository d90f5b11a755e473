// Package auth0 is the Auth0 identity backend. Identities are created and
// deleted through the Management API; administrators sign in with the
// resource owner password grant against a database connection.
package auth0
