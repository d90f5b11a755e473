package auth0

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/authentication/oauth"
	"github.com/auth0/go-auth0/management"
	"github.com/golang-jwt/jwt/v5"
	accounts "github.com/ia-nocode/user-roles-v4"
)

// UserManager is the part of the Management API the backend uses.
// *management.UserManager satisfies it.
type UserManager interface {
	Create(ctx context.Context, u *management.User, opts ...management.RequestOption) error
	Read(ctx context.Context, id string, opts ...management.RequestOption) (*management.User, error)
	Delete(ctx context.Context, id string, opts ...management.RequestOption) error
	List(ctx context.Context, opts ...management.RequestOption) (*management.UserList, error)
}

// PasswordLogin performs the resource owner password grant.
// *authentication.OAuth satisfies it.
type PasswordLogin interface {
	LoginWithPassword(ctx context.Context, body oauth.LoginWithPasswordRequest, validation oauth.IDTokenValidationOptions, opts ...authentication.RequestOption) (*oauth.TokenSet, error)
}

// Backend implements accounts.IdentityBackend on top of Auth0.
type Backend struct {
	config Config
	users  UserManager
	login  PasswordLogin
}

var (
	_ accounts.IdentityBackend = (*Backend)(nil)
	_ accounts.IdentityLister  = (*Backend)(nil)
)

// NewBackend creates the Management and Authentication API clients.
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mgmt, err := management.New(
		cfg.domain(),
		management.WithClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create management client: %w", err)
	}

	authAPI, err := authentication.New(
		ctx,
		cfg.domain(),
		authentication.WithClientID(cfg.ClientID),
		authentication.WithClientSecret(cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create authentication client: %w", err)
	}

	return NewBackendWithClients(cfg, mgmt.User, authAPI.OAuth), nil
}

// NewBackendWithClients builds a backend around existing API clients.
func NewBackendWithClients(cfg Config, users UserManager, login PasswordLogin) *Backend {
	return &Backend{config: cfg, users: users, login: login}
}

// NewAuthContext implements accounts.IdentityBackend.
func (b *Backend) NewAuthContext(ctx context.Context, name string) (accounts.AuthContext, error) {
	return &authContext{backend: b, name: name}, nil
}

// IdentityExists implements accounts.IdentityBackend.
func (b *Backend) IdentityExists(ctx context.Context, identityID string) (bool, error) {
	if strings.TrimSpace(identityID) == "" {
		return false, nil
	}
	if _, err := b.users.Read(ctx, identityID); err != nil {
		classified := classify(err)
		if accounts.IsKind(classified, accounts.KindNotFound) {
			return false, nil
		}
		return false, classified
	}
	return true, nil
}

// ListIdentities implements accounts.IdentityLister.
func (b *Backend) ListIdentities(ctx context.Context) ([]accounts.Identity, error) {
	var out []accounts.Identity
	for page := 0; ; page++ {
		list, err := b.users.List(ctx,
			management.Page(page),
			management.PerPage(100),
			management.Query(fmt.Sprintf(`identities.connection:"%s"`, b.config.connection())),
		)
		if err != nil {
			return nil, classify(err)
		}
		for _, u := range list.Users {
			out = append(out, accounts.Identity{ID: u.GetID(), Email: u.GetEmail()})
		}
		if !list.HasNext() {
			return out, nil
		}
	}
}

type authContext struct {
	backend *Backend
	name    string

	mu      sync.Mutex
	current *accounts.Identity
	closed  bool
}

func (a *authContext) Name() string {
	return a.name
}

func (a *authContext) SignIn(ctx context.Context, email, password string) (accounts.Identity, error) {
	if err := a.usable(); err != nil {
		return accounts.Identity{}, err
	}

	tokens, err := a.backend.login.LoginWithPassword(ctx, oauth.LoginWithPasswordRequest{
		Username: email,
		Password: password,
		Realm:    a.backend.config.connection(),
		Audience: a.backend.config.Audience,
		Scope:    "openid email",
	}, oauth.IDTokenValidationOptions{})
	if err != nil {
		return accounts.Identity{}, classify(err)
	}

	identity, err := identityFromIDToken(tokens.IDToken)
	if err != nil {
		return accounts.Identity{}, accounts.ProviderError(accounts.KindUnknownProvider, providerName, "id_token", err)
	}
	if identity.Email == "" {
		identity.Email = email
	}

	a.setCurrent(&identity)
	return identity, nil
}

// CreateIdentity creates the user in the configured connection and makes it
// the current identity of this context, so it can be deleted again.
func (a *authContext) CreateIdentity(ctx context.Context, email, password string) (accounts.Identity, error) {
	if err := a.usable(); err != nil {
		return accounts.Identity{}, err
	}

	user := &management.User{
		Connection: auth0.String(a.backend.config.connection()),
		Email:      auth0.String(email),
		Password:   auth0.String(password),
	}
	if err := a.backend.users.Create(ctx, user); err != nil {
		return accounts.Identity{}, classify(err)
	}

	identity := accounts.Identity{ID: user.GetID(), Email: user.GetEmail()}
	if identity.Email == "" {
		identity.Email = email
	}
	a.setCurrent(&identity)
	return identity, nil
}

func (a *authContext) DeleteIdentity(ctx context.Context, identity accounts.Identity) error {
	if err := a.usable(); err != nil {
		return err
	}
	current, ok := a.CurrentIdentity()
	if !ok || current.ID != identity.ID {
		return accounts.ProviderError(accounts.KindInvalidCredential, providerName, "not_current", fmt.Errorf("identity %s is not current on %s", identity.ID, a.name))
	}
	if err := a.backend.users.Delete(ctx, identity.ID); err != nil {
		return classify(err)
	}
	a.setCurrent(nil)
	return nil
}

func (a *authContext) CurrentIdentity() (accounts.Identity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return accounts.Identity{}, false
	}
	return *a.current, true
}

// SignOut drops the tokens held by this context. Password grant sessions
// have no server side state to revoke.
func (a *authContext) SignOut(ctx context.Context) error {
	a.setCurrent(nil)
	return nil
}

func (a *authContext) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.current = nil
	return nil
}

func (a *authContext) usable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return accounts.ProviderError(accounts.KindUnknownProvider, providerName, "context_closed", fmt.Errorf("auth context %s is closed", a.name))
	}
	return nil
}

func (a *authContext) setCurrent(identity *accounts.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = identity
}

// identityFromIDToken reads sub and email from an ID token that the
// authentication client already validated.
func identityFromIDToken(idToken string) (accounts.Identity, error) {
	if idToken == "" {
		return accounts.Identity{}, fmt.Errorf("auth0: empty id token")
	}

	token, _, err := jwt.NewParser().ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		return accounts.Identity{}, fmt.Errorf("auth0: unable to parse id token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return accounts.Identity{}, fmt.Errorf("auth0: unexpected id token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return accounts.Identity{}, fmt.Errorf("auth0: id token has no subject")
	}

	email, _ := claims["email"].(string)
	return accounts.Identity{ID: sub, Email: email}, nil
}
