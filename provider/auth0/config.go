package auth0

import (
	"fmt"
	"strings"
)

const defaultConnection = "Username-Password-Authentication"

// Config holds Auth0 tenant settings.
type Config struct {
	// Domain is the Auth0 tenant domain (e.g., "example.us.auth0.com").
	Domain string

	// ClientID and ClientSecret belong to an application allowed to use the
	// Management API and the password grant.
	ClientID     string
	ClientSecret string

	// Connection is the database connection identities live in.
	// Default: "Username-Password-Authentication".
	Connection string

	// Audience is sent with password grants (optional).
	Audience string
}

// Validate checks the required settings
func (c Config) Validate() error {
	if strings.TrimSpace(c.Domain) == "" {
		return fmt.Errorf("auth0: domain is required")
	}
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("auth0: client credentials are required")
	}
	return nil
}

func (c Config) connection() string {
	if strings.TrimSpace(c.Connection) == "" {
		return defaultConnection
	}
	return c.Connection
}

func (c Config) domain() string {
	domain := strings.TrimSpace(c.Domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}
