package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ts, err := accounts.NewTokenService([]byte(testSigningKey), time.Hour,
		accounts.WithTokenClock(func() time.Time { return now }))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ts.TTL())

	identity := accounts.Identity{ID: "uid-1", Email: "admin@example.com"}
	token, expiresAt, err := ts.Generate("sid-1", identity)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", claims.SessionID())
	assert.Equal(t, "uid-1", claims.IdentityID())
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, accounts.DefaultTokenIssuer, claims.Issuer)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ts, err := accounts.NewTokenService([]byte(testSigningKey), time.Minute,
		accounts.WithTokenClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, _, err := ts.Generate("sid-1", accounts.Identity{ID: "uid-1"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.Equal(t, accounts.KindUnauthenticated, accounts.KindOf(err))
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	ts, err := accounts.NewTokenService([]byte(testSigningKey), time.Hour)
	require.NoError(t, err)

	otherKey, err := accounts.NewTokenService([]byte("another-key-another-key-another-key"), time.Hour)
	require.NoError(t, err)
	otherIssuer, err := accounts.NewTokenService([]byte(testSigningKey), time.Hour, accounts.WithTokenIssuer("someone-else"))
	require.NoError(t, err)

	foreignKey, _, err := otherKey.Generate("sid-1", accounts.Identity{ID: "uid-1"})
	require.NoError(t, err)
	foreignIssuer, _, err := otherIssuer.Generate("sid-1", accounts.Identity{ID: "uid-1"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"other key":    foreignKey,
		"other issuer": foreignIssuer,
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Validate(token)
			require.Error(t, err)
			assert.Equal(t, accounts.KindUnauthenticated, accounts.KindOf(err))
		})
	}
}

func TestTokenServiceGeneratesKeyWhenEmpty(t *testing.T) {
	first, err := accounts.NewTokenService(nil, 0)
	require.NoError(t, err)
	second, err := accounts.NewTokenService(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, accounts.DefaultSessionTTL, first.TTL())

	token, _, err := first.Generate("sid-1", accounts.Identity{ID: "uid-1"})
	require.NoError(t, err)

	_, err = first.Validate(token)
	assert.NoError(t, err)
	_, err = second.Validate(token)
	assert.Error(t, err)
}
