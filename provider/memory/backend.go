package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	accounts "github.com/ia-nocode/user-roles-v4"
	"golang.org/x/crypto/bcrypt"
)

const providerName = "memory"

// Op names a backend call that can be made to fail in tests
type Op string

const (
	OpCreate  Op = "create"
	OpDelete  Op = "delete"
	OpSignIn  Op = "sign_in"
	OpSignOut Op = "sign_out"
	OpClose   Op = "close"
	OpExists  Op = "exists"
)

var errContextClosed = errors.New("memory: auth context is closed")

type identityRecord struct {
	identity accounts.Identity
	hash     []byte
}

// Backend implements accounts.IdentityBackend.
type Backend struct {
	mu                sync.Mutex
	identities        map[string]*identityRecord
	byEmail           map[string]string
	failures          map[Op][]error
	open              int
	cost              int
	minPasswordLength int
	newID             func() string
}

var (
	_ accounts.IdentityBackend = (*Backend)(nil)
	_ accounts.IdentityLister  = (*Backend)(nil)
)

// Option customizes the backend
type Option func(*Backend)

// WithBcryptCost sets the hash cost
func WithBcryptCost(cost int) Option {
	return func(b *Backend) {
		b.cost = cost
	}
}

// WithMinPasswordLength sets the weakest accepted password
func WithMinPasswordLength(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.minPasswordLength = n
		}
	}
}

// WithIDGenerator overrides identity id generation
func WithIDGenerator(fn func() string) Option {
	return func(b *Backend) {
		if fn != nil {
			b.newID = fn
		}
	}
}

func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		identities:        map[string]*identityRecord{},
		byEmail:           map[string]string{},
		failures:          map[Op][]error{},
		cost:              bcrypt.DefaultCost,
		minPasswordLength: accounts.DefaultMinPasswordLength,
		newID:             uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Seed registers an identity without signing it in anywhere.
func (b *Backend) Seed(email, password string) (accounts.Identity, error) {
	return b.register(email, password)
}

// FailNext makes the next call of op return err.
func (b *Backend) FailNext(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], err)
}

// OpenContexts is the number of auth contexts not yet closed
func (b *Backend) OpenContexts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// NewAuthContext implements accounts.IdentityBackend.
func (b *Backend) NewAuthContext(ctx context.Context, name string) (accounts.AuthContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, accounts.ProviderError(accounts.KindNetwork, providerName, "context-done", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open++
	return &authContext{backend: b, name: name}, nil
}

// IdentityExists implements accounts.IdentityBackend.
func (b *Backend) IdentityExists(ctx context.Context, identityID string) (bool, error) {
	if err := b.takeFailure(OpExists); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.identities[identityID]
	return ok, nil
}

// ListIdentities implements accounts.IdentityLister.
func (b *Backend) ListIdentities(ctx context.Context) ([]accounts.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]accounts.Identity, 0, len(b.identities))
	for _, rec := range b.identities {
		out = append(out, rec.identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (b *Backend) register(email, password string) (accounts.Identity, error) {
	email = strings.TrimSpace(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return accounts.Identity{}, accounts.ProviderError(accounts.KindInvalidEmail, providerName, "invalid-email", err)
	}
	if len(password) < b.minPasswordLength {
		return accounts.Identity{}, accounts.ProviderError(accounts.KindWeakPassword, providerName, "weak-password", errors.New("password is too short"))
	}

	hash, err := hashPassword(password, b.cost)
	if err != nil {
		return accounts.Identity{}, accounts.ProviderError(accounts.KindUnknownProvider, providerName, "hash-failed", err)
	}

	key := strings.ToLower(email)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byEmail[key]; ok {
		return accounts.Identity{}, accounts.ProviderError(accounts.KindEmailInUse, providerName, "email-already-in-use", errors.New("email already in use"))
	}

	identity := accounts.Identity{ID: b.newID(), Email: email}
	b.identities[identity.ID] = &identityRecord{identity: identity, hash: hash}
	b.byEmail[key] = identity.ID
	return identity, nil
}

func (b *Backend) verify(email, password string) (accounts.Identity, error) {
	b.mu.Lock()
	id, ok := b.byEmail[strings.ToLower(strings.TrimSpace(email))]
	var rec *identityRecord
	if ok {
		rec = b.identities[id]
	}
	b.mu.Unlock()

	if rec == nil {
		return accounts.Identity{}, accounts.ProviderError(accounts.KindInvalidCredential, providerName, "invalid-credential", errors.New("unknown email"))
	}
	if err := comparePasswordAndHash(password, rec.hash); err != nil {
		return accounts.Identity{}, accounts.ProviderError(accounts.KindInvalidCredential, providerName, "invalid-credential", err)
	}
	return rec.identity, nil
}

func (b *Backend) remove(identityID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.identities[identityID]
	if !ok {
		return accounts.ProviderError(accounts.KindNotFound, providerName, "user-not-found", errors.New("identity not found"))
	}
	delete(b.identities, identityID)
	delete(b.byEmail, strings.ToLower(rec.identity.Email))
	return nil
}

func (b *Backend) closeContext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open--
}

func (b *Backend) takeFailure(op Op) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	b.failures[op] = queue[1:]
	return err
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
	if err := a.usable(OpSignIn); err != nil {
		return accounts.Identity{}, err
	}
	identity, err := a.backend.verify(email, password)
	if err != nil {
		return accounts.Identity{}, err
	}
	a.setCurrent(&identity)
	return identity, nil
}

func (a *authContext) CreateIdentity(ctx context.Context, email, password string) (accounts.Identity, error) {
	if err := a.usable(OpCreate); err != nil {
		return accounts.Identity{}, err
	}
	identity, err := a.backend.register(email, password)
	if err != nil {
		return accounts.Identity{}, err
	}
	a.setCurrent(&identity)
	return identity, nil
}

func (a *authContext) DeleteIdentity(ctx context.Context, identity accounts.Identity) error {
	if err := a.usable(OpDelete); err != nil {
		return err
	}
	current, ok := a.CurrentIdentity()
	if !ok || current.ID != identity.ID {
		return accounts.ProviderError(accounts.KindInvalidCredential, providerName, "requires-recent-login", errors.New("identity is not signed in on this context"))
	}
	if err := a.backend.remove(identity.ID); err != nil {
		return err
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

func (a *authContext) SignOut(ctx context.Context) error {
	if err := a.backend.takeFailure(OpSignOut); err != nil {
		return err
	}
	a.setCurrent(nil)
	return nil
}

func (a *authContext) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.current = nil
	a.mu.Unlock()

	a.backend.closeContext()
	return a.backend.takeFailure(OpClose)
}

func (a *authContext) usable(op Op) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return accounts.ProviderError(accounts.KindUnknownProvider, providerName, "app-deleted", errContextClosed)
	}
	return a.backend.takeFailure(op)
}

func (a *authContext) setCurrent(identity *accounts.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = identity
}
