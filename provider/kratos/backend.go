package kratos

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	accounts "github.com/ia-nocode/user-roles-v4"
	kratosclient "github.com/ory/kratos-client-go"
)

// Backend implements accounts.IdentityBackend on top of Ory Kratos.
type Backend struct {
	config Config
	public *kratosclient.APIClient
	admin  *kratosclient.APIClient
}

var (
	_ accounts.IdentityBackend = (*Backend)(nil)
	_ accounts.IdentityLister  = (*Backend)(nil)
)

// NewBackend builds the public and admin API clients.
func NewBackend(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backend{
		config: cfg,
		public: newAPIClient(cfg.PublicURL, cfg.Timeout),
		admin:  newAPIClient(cfg.AdminURL, cfg.Timeout),
	}, nil
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
	_, resp, err := b.admin.IdentityAPI.GetIdentity(ctx, identityID).Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, classify(err, resp)
	}
	return true, nil
}

// ListIdentities implements accounts.IdentityLister. It follows the
// rel="next" Link header until the last page.
func (b *Backend) ListIdentities(ctx context.Context) ([]accounts.Identity, error) {
	out := []accounts.Identity{}
	seen := map[string]bool{}
	token := ""

	for {
		req := b.admin.IdentityAPI.ListIdentities(ctx).PageSize(b.config.pageSize())
		if token != "" {
			req = req.PageToken(token)
		}

		identities, resp, err := req.Execute()
		if err != nil {
			return nil, classify(err, resp)
		}
		for _, identity := range identities {
			out = append(out, accounts.Identity{ID: identity.Id, Email: traitEmail(identity.Traits)})
		}

		token = nextPageToken(resp)
		if token == "" || seen[token] || len(identities) == 0 {
			return out, nil
		}
		seen[token] = true
	}
}

func (b *Backend) createIdentity(ctx context.Context, email, password string) (accounts.Identity, error) {
	body := kratosclient.CreateIdentityBody{
		SchemaId: b.config.schemaID(),
		Traits:   map[string]interface{}{"email": email},
		Credentials: &kratosclient.IdentityWithCredentials{
			Password: &kratosclient.IdentityWithCredentialsPassword{
				Config: &kratosclient.IdentityWithCredentialsPasswordConfig{
					Password: &password,
				},
			},
		},
	}

	created, resp, err := b.admin.IdentityAPI.CreateIdentity(ctx).CreateIdentityBody(body).Execute()
	if err != nil {
		return accounts.Identity{}, classify(err, resp)
	}

	identity := accounts.Identity{ID: created.Id, Email: traitEmail(created.Traits)}
	if identity.Email == "" {
		identity.Email = email
	}
	return identity, nil
}

func (b *Backend) deleteIdentity(ctx context.Context, identityID string) error {
	resp, err := b.admin.IdentityAPI.DeleteIdentity(ctx, identityID).Execute()
	if err != nil {
		return classify(err, resp)
	}
	return nil
}

func (b *Backend) login(ctx context.Context, email, password string) (accounts.Identity, string, error) {
	flow, resp, err := b.public.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return accounts.Identity{}, "", classify(err, resp)
	}

	method := kratosclient.UpdateLoginFlowWithPasswordMethod{
		Method:     "password",
		Identifier: email,
		Password:   password,
	}
	result, resp, err := b.public.FrontendAPI.
		UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(kratosclient.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&method)).
		Execute()
	if err != nil {
		return accounts.Identity{}, "", classify(err, resp)
	}

	if result.Session.Identity == nil {
		return accounts.Identity{}, "", accounts.ProviderError(accounts.KindUnknownProvider, providerName, "no_identity", fmt.Errorf("kratos: session %s carries no identity", result.Session.Id))
	}

	identity := accounts.Identity{
		ID:    result.Session.Identity.Id,
		Email: traitEmail(result.Session.Identity.Traits),
	}
	if identity.Email == "" {
		identity.Email = email
	}
	return identity, result.GetSessionToken(), nil
}

func (b *Backend) logout(ctx context.Context, sessionToken string) error {
	resp, err := b.public.FrontendAPI.
		PerformNativeLogout(ctx).
		PerformNativeLogoutBody(kratosclient.PerformNativeLogoutBody{SessionToken: sessionToken}).
		Execute()
	if err != nil {
		return classify(err, resp)
	}
	return nil
}

func traitEmail(traits interface{}) string {
	m, ok := traits.(map[string]interface{})
	if !ok {
		return ""
	}
	email, _ := m["email"].(string)
	return email
}

type authContext struct {
	backend *Backend
	name    string

	mu           sync.Mutex
	current      *accounts.Identity
	sessionToken string
	closed       bool
}

func (a *authContext) Name() string {
	return a.name
}

func (a *authContext) SignIn(ctx context.Context, email, password string) (accounts.Identity, error) {
	if err := a.usable(); err != nil {
		return accounts.Identity{}, err
	}
	identity, token, err := a.backend.login(ctx, email, password)
	if err != nil {
		return accounts.Identity{}, err
	}
	a.set(&identity, token)
	return identity, nil
}

// CreateIdentity creates the identity through the admin API and makes it
// current on this context without opening a Kratos session.
func (a *authContext) CreateIdentity(ctx context.Context, email, password string) (accounts.Identity, error) {
	if err := a.usable(); err != nil {
		return accounts.Identity{}, err
	}
	identity, err := a.backend.createIdentity(ctx, email, password)
	if err != nil {
		return accounts.Identity{}, err
	}
	a.set(&identity, "")
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
	if err := a.backend.deleteIdentity(ctx, identity.ID); err != nil {
		return err
	}
	a.set(nil, "")
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

func (a *authContext) SignOut(ctx context.Context) error {
	a.mu.Lock()
	token := a.sessionToken
	a.current = nil
	a.sessionToken = ""
	a.mu.Unlock()

	if token == "" {
		return nil
	}
	return a.backend.logout(ctx, token)
}

func (a *authContext) Close(ctx context.Context) error {
	err := a.SignOut(ctx)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return err
}

func (a *authContext) usable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return accounts.ProviderError(accounts.KindUnknownProvider, providerName, "context_closed", fmt.Errorf("auth context %s is closed", a.name))
	}
	return nil
}

func (a *authContext) set(identity *accounts.Identity, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = identity
	a.sessionToken = token
}
