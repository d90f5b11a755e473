package auth0

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	accounts "github.com/ia-nocode/user-roles-v4"
)

const providerName = "auth0"

type statusError interface {
	Status() int
}

// classify maps Auth0 API failures onto accounts error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return accounts.ProviderError(accounts.KindNetwork, providerName, "network", err)
	}

	msg := strings.ToLower(err.Error())

	var se statusError
	if errors.As(err, &se) {
		switch se.Status() {
		case http.StatusConflict:
			return accounts.ProviderError(accounts.KindEmailInUse, providerName, "user_exists", err)
		case http.StatusTooManyRequests:
			return accounts.ProviderError(accounts.KindTooManyRequests, providerName, "too_many_requests", err)
		case http.StatusNotFound:
			return accounts.ProviderError(accounts.KindNotFound, providerName, "not_found", err)
		case http.StatusUnauthorized:
			return accounts.ProviderError(accounts.KindInvalidCredential, providerName, "unauthorized", err)
		case http.StatusBadRequest:
			return classifyBadRequest(msg, err)
		case http.StatusForbidden:
			if strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "wrong email or password") {
				return accounts.ProviderError(accounts.KindInvalidCredential, providerName, "invalid_grant", err)
			}
			if strings.Contains(msg, "too_many_attempts") || strings.Contains(msg, "blocked") {
				return accounts.ProviderError(accounts.KindTooManyRequests, providerName, "too_many_attempts", err)
			}
		}
	}

	switch {
	case strings.Contains(msg, "invalid_grant"), strings.Contains(msg, "wrong email or password"):
		return accounts.ProviderError(accounts.KindInvalidCredential, providerName, "invalid_grant", err)
	case strings.Contains(msg, "too_many_attempts"):
		return accounts.ProviderError(accounts.KindTooManyRequests, providerName, "too_many_attempts", err)
	case strings.Contains(msg, "user already exists"):
		return accounts.ProviderError(accounts.KindEmailInUse, providerName, "user_exists", err)
	}

	return accounts.ProviderError(accounts.KindUnknownProvider, providerName, "unknown", err)
}

func classifyBadRequest(msg string, err error) error {
	switch {
	case strings.Contains(msg, "passwordstrengtherror"), strings.Contains(msg, "password is too weak"):
		return accounts.ProviderError(accounts.KindWeakPassword, providerName, "password_strength", err)
	case strings.Contains(msg, "already exists"):
		return accounts.ProviderError(accounts.KindEmailInUse, providerName, "user_exists", err)
	case strings.Contains(msg, "email"):
		return accounts.ProviderError(accounts.KindInvalidEmail, providerName, "invalid_email", err)
	default:
		return accounts.ProviderError(accounts.KindUnknownProvider, providerName, "bad_request", err)
	}
}
