package auth0

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/authentication/oauth"
	"github.com/auth0/go-auth0/management"
	"github.com/golang-jwt/jwt/v5"
	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiError struct {
	status int
	msg    string
}

func (e apiError) Error() string { return e.msg }
func (e apiError) Status() int   { return e.status }

type fakeUsers struct {
	users     map[string]*management.User
	createErr error
	deleteErr error
	deleted   []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*management.User{}}
}

func (f *fakeUsers) Create(ctx context.Context, u *management.User, opts ...management.RequestOption) error {
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = auth0.String("auth0|" + u.GetEmail())
	f.users[u.GetID()] = u
	return nil
}

func (f *fakeUsers) Read(ctx context.Context, id string, opts ...management.RequestOption) (*management.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apiError{status: http.StatusNotFound, msg: "404 Not Found: The user does not exist."}
	}
	return u, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string, opts ...management.RequestOption) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) List(ctx context.Context, opts ...management.RequestOption) (*management.UserList, error) {
	list := &management.UserList{}
	for _, u := range f.users {
		list.Users = append(list.Users, u)
	}
	return list, nil
}

type fakeLogin struct {
	idToken string
	err     error
	request oauth.LoginWithPasswordRequest
}

func (f *fakeLogin) LoginWithPassword(ctx context.Context, body oauth.LoginWithPasswordRequest, validation oauth.IDTokenValidationOptions, opts ...authentication.RequestOption) (*oauth.TokenSet, error) {
	f.request = body
	if f.err != nil {
		return nil, f.err
	}
	return &oauth.TokenSet{IDToken: f.idToken}, nil
}

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testConfig() Config {
	return Config{Domain: "example.us.auth0.com", ClientID: "cid", ClientSecret: "secret"}
}

func TestBackendSignInReadsIDToken(t *testing.T) {
	login := &fakeLogin{idToken: signedIDToken(t, jwt.MapClaims{"sub": "auth0|admin", "email": "admin@example.com"})}
	backend := NewBackendWithClients(testConfig(), newFakeUsers(), login)
	ctx := context.Background()

	auth, err := backend.NewAuthContext(ctx, "primary")
	require.NoError(t, err)

	identity, err := auth.SignIn(ctx, "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, accounts.Identity{ID: "auth0|admin", Email: "admin@example.com"}, identity)
	assert.Equal(t, defaultConnection, login.request.Realm)

	current, ok := auth.CurrentIdentity()
	require.True(t, ok)
	assert.Equal(t, identity, current)

	require.NoError(t, auth.SignOut(ctx))
	_, ok = auth.CurrentIdentity()
	assert.False(t, ok)
}

func TestBackendSignInWrongPassword(t *testing.T) {
	login := &fakeLogin{err: apiError{status: http.StatusForbidden, msg: "invalid_grant: Wrong email or password."}}
	backend := NewBackendWithClients(testConfig(), newFakeUsers(), login)
	ctx := context.Background()

	auth, err := backend.NewAuthContext(ctx, "primary")
	require.NoError(t, err)

	_, err = auth.SignIn(ctx, "admin@example.com", "nope")
	assert.Equal(t, accounts.KindInvalidCredential, accounts.KindOf(err))
}

func TestBackendCreateAndDeleteIdentity(t *testing.T) {
	users := newFakeUsers()
	backend := NewBackendWithClients(testConfig(), users, &fakeLogin{})
	ctx := context.Background()

	auth, err := backend.NewAuthContext(ctx, "user-management")
	require.NoError(t, err)

	identity, err := auth.CreateIdentity(ctx, "jane@example.com", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, "auth0|jane@example.com", identity.ID)

	exists, err := backend.IdentityExists(ctx, identity.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	listed, err := backend.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []accounts.Identity{identity}, listed)

	require.NoError(t, auth.DeleteIdentity(ctx, identity))
	assert.Equal(t, []string{identity.ID}, users.deleted)

	exists, err = backend.IdentityExists(ctx, identity.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBackendDeleteRequiresCurrentIdentity(t *testing.T) {
	users := newFakeUsers()
	backend := NewBackendWithClients(testConfig(), users, &fakeLogin{})
	ctx := context.Background()

	auth, err := backend.NewAuthContext(ctx, "user-management")
	require.NoError(t, err)

	err = auth.DeleteIdentity(ctx, accounts.Identity{ID: "auth0|someone"})
	require.Error(t, err)
	assert.Empty(t, users.deleted)
}

func TestBackendClosedContextIsUnusable(t *testing.T) {
	backend := NewBackendWithClients(testConfig(), newFakeUsers(), &fakeLogin{})
	ctx := context.Background()

	auth, err := backend.NewAuthContext(ctx, "user-management")
	require.NoError(t, err)
	require.NoError(t, auth.Close(ctx))

	_, err = auth.CreateIdentity(ctx, "jane@example.com", "pa55word")
	assert.Equal(t, accounts.KindUnknownProvider, accounts.KindOf(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected accounts.ErrorKind
	}{
		{"conflict", apiError{http.StatusConflict, "409 Conflict: The user already exists."}, accounts.KindEmailInUse},
		{"weak password", apiError{http.StatusBadRequest, "400 Bad Request: PasswordStrengthError: Password is too weak"}, accounts.KindWeakPassword},
		{"bad email", apiError{http.StatusBadRequest, "400 Bad Request: Payload validation error: 'Object didn't pass validation for format email'"}, accounts.KindInvalidEmail},
		{"rate limited", apiError{http.StatusTooManyRequests, "429 Too Many Requests"}, accounts.KindTooManyRequests},
		{"blocked", apiError{http.StatusForbidden, "too_many_attempts: account blocked"}, accounts.KindTooManyRequests},
		{"timeout", context.DeadlineExceeded, accounts.KindNetwork},
		{"message only", errors.New("invalid_grant"), accounts.KindInvalidCredential},
		{"anything else", errors.New("teapot"), accounts.KindUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, accounts.KindOf(classify(tt.err)))
		})
	}
}

func TestIdentityFromIDTokenRequiresSubject(t *testing.T) {
	_, err := identityFromIDToken("")
	assert.Error(t, err)

	_, err = identityFromIDToken(signedIDToken(t, jwt.MapClaims{"email": "x@example.com"}))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, testConfig().Validate())
	assert.Error(t, Config{ClientID: "a", ClientSecret: "b"}.Validate())
	assert.Error(t, Config{Domain: "d"}.Validate())
	assert.Equal(t, defaultConnection, Config{}.connection())
}
