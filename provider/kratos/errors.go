package kratos

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	accounts "github.com/ia-nocode/user-roles-v4"
	kratosclient "github.com/ory/kratos-client-go"
)

const providerName = "kratos"

// Kratos UI message ids
const (
	msgIDInvalidCredentials = 4000006
	msgIDDuplicate          = 4000007
	msgIDPasswordPolicy     = 4000005
	msgIDInvalidFormat      = 4000001
)

// classify maps Kratos API failures onto accounts error kinds.
func classify(err error, resp *http.Response) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return accounts.ProviderError(accounts.KindNetwork, providerName, "network", err)
	}

	var apiErr *kratosclient.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		if kind, code, ok := classifyBody(apiErr.Body()); ok {
			return accounts.ProviderError(kind, providerName, code, err)
		}
	}

	if resp != nil {
		return classifyStatus(resp.StatusCode, err)
	}

	return accounts.ProviderError(accounts.KindUnknownProvider, providerName, "unknown", err)
}

func classifyStatus(status int, err error) error {
	switch status {
	case http.StatusConflict:
		return accounts.ProviderError(accounts.KindEmailInUse, providerName, "conflict", err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return accounts.ProviderError(accounts.KindInvalidCredential, providerName, "unauthorized", err)
	case http.StatusNotFound, http.StatusGone:
		return accounts.ProviderError(accounts.KindNotFound, providerName, "not_found", err)
	case http.StatusTooManyRequests:
		return accounts.ProviderError(accounts.KindTooManyRequests, providerName, "too_many_requests", err)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return accounts.ProviderError(accounts.KindNetwork, providerName, "unavailable", err)
	default:
		return accounts.ProviderError(accounts.KindUnknownProvider, providerName, "http_error", err)
	}
}

type uiMessage struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type uiNode struct {
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
	Messages []uiMessage `json:"messages"`
}

type errorBody struct {
	Error *struct {
		Code   int    `json:"code"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"error"`
	UI *struct {
		Messages []uiMessage `json:"messages"`
		Nodes    []uiNode    `json:"nodes"`
	} `json:"ui"`
}

// classifyBody reads a Kratos error payload: either a generic error or a
// flow with UI messages.
func classifyBody(body []byte) (accounts.ErrorKind, string, bool) {
	if len(body) == 0 {
		return "", "", false
	}

	var payload errorBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", false
	}

	if payload.UI != nil {
		for _, msg := range payload.UI.Messages {
			if kind, code, ok := classifyMessage(msg, ""); ok {
				return kind, code, true
			}
		}
		for _, node := range payload.UI.Nodes {
			for _, msg := range node.Messages {
				if kind, code, ok := classifyMessage(msg, node.Attributes.Name); ok {
					return kind, code, true
				}
			}
		}
	}

	if payload.Error != nil {
		if payload.Error.Code == http.StatusConflict {
			return accounts.KindEmailInUse, "conflict", true
		}
		if payload.Error.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(payload.Error.Reason), "password") {
			return accounts.KindWeakPassword, "password_policy", true
		}
	}

	return "", "", false
}

func classifyMessage(msg uiMessage, field string) (accounts.ErrorKind, string, bool) {
	if msg.Type != "" && msg.Type != "error" {
		return "", "", false
	}
	switch {
	case msg.ID == msgIDInvalidCredentials:
		return accounts.KindInvalidCredential, "invalid_credentials", true
	case msg.ID == msgIDDuplicate:
		return accounts.KindEmailInUse, "duplicate_identifier", true
	case msg.ID == msgIDPasswordPolicy:
		return accounts.KindWeakPassword, "password_policy", true
	case msg.ID == msgIDInvalidFormat && strings.Contains(field, "email"):
		return accounts.KindInvalidEmail, "invalid_email", true
	}
	return "", "", false
}
