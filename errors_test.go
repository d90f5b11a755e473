package accounts_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected accounts.ErrorKind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), accounts.KindUnknown},
		{"rich error", accounts.NewError(accounts.KindEmailInUse, "taken"), accounts.KindEmailInUse},
		{"wrapped with fmt", fmt.Errorf("create: %w", accounts.NewError(accounts.KindWeakPassword, "short")), accounts.KindWeakPassword},
		{"outer kind wins", accounts.WrapError(accounts.NewError(accounts.KindStore, "db"), accounts.KindInconsistent, "partial"), accounts.KindInconsistent},
		{"foreign rich error", goerrors.New("other", goerrors.CategoryInternal), accounts.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, accounts.KindOf(tt.err))
		})
	}
}

func TestWrapErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := accounts.WrapError(cause, accounts.KindStore, "failed to create profile")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, accounts.TextCodeStore, err.TextCode)
	assert.Equal(t, http.StatusInternalServerError, err.Code)
}

func TestProviderErrorMetadata(t *testing.T) {
	err := accounts.ProviderError(accounts.KindInvalidCredential, "auth0", "invalid_grant", errors.New("wrong password"))

	require.True(t, accounts.IsKind(err, accounts.KindInvalidCredential))
	assert.Equal(t, "auth0", err.Metadata["provider"])
	assert.Equal(t, "invalid_grant", err.Metadata["provider_code"])
	assert.Equal(t, goerrors.CategoryAuth, err.Category)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, accounts.StatusFor(accounts.KindEmailInUse))
	assert.Equal(t, http.StatusForbidden, accounts.StatusFor(accounts.KindAccessDenied))
	assert.Equal(t, http.StatusTooManyRequests, accounts.StatusFor(accounts.KindTooManyRequests))
	assert.Equal(t, http.StatusInternalServerError, accounts.StatusFor(accounts.KindUnknown))
}

func TestMessagesFor(t *testing.T) {
	assert.Equal(t, "User created successfully", accounts.MessagesFor("").Text(accounts.MsgCreateSucceeded))
	assert.Equal(t, "Utilisateur créé avec succès", accounts.MessagesFor("FR").Text(accounts.MsgCreateSucceeded))

	partial := accounts.Messages{accounts.MsgDeleteFailed: "nope"}
	assert.Equal(t, "nope", partial.Text(accounts.MsgDeleteFailed))
	assert.Equal(t, "Update failed", partial.Text(accounts.MsgUpdateFailed))
	assert.Equal(t, "custom.key", partial.Text(accounts.MessageKey("custom.key")))

	for key := range accounts.EnglishMessages {
		assert.Contains(t, accounts.FrenchMessages, key)
	}
}
