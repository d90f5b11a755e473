package accounts

import (
	"context"
	"fmt"
	"sync"
)

const (
	primaryContextName   = "primary"
	secondaryContextName = "user-management"
)

// Session is a credential context bound to one auth provider project.
type Session struct {
	name string
	auth AuthContext
}

// Name returns the credential context name
func (s *Session) Name() string {
	return s.name
}

// Identity returns the identity signed in on this session, if any.
func (s *Session) Identity() (Identity, bool) {
	if s == nil || s.auth == nil {
		return Identity{}, false
	}
	return s.auth.CurrentIdentity()
}

// SignIn authenticates email/password on this session only.
func (s *Session) SignIn(ctx context.Context, email, password string) (Identity, error) {
	return s.auth.SignIn(ctx, email, password)
}

// SecondarySession is a scoped handle on the isolated session used to
// create identities without touching the administrator's sign-in state.
type SecondarySession struct {
	Session
	provider   *SessionProvider
	generation uint64
}

// CreateIdentity registers a new identity. The identity becomes current on
// the secondary session only.
func (s *SecondarySession) CreateIdentity(ctx context.Context, email, password string) (Identity, error) {
	return s.auth.CreateIdentity(ctx, email, password)
}

// DeleteIdentity removes identity through the secondary session's
// credentials. It is used only to undo a CreateIdentity.
func (s *SecondarySession) DeleteIdentity(ctx context.Context, identity Identity) error {
	return s.auth.DeleteIdentity(ctx, identity)
}

// Release tears the secondary session down. Releasing a stale handle, one
// whose context was already replaced, is a no-op.
func (s *SecondarySession) Release(ctx context.Context) {
	if s == nil || s.provider == nil {
		return
	}
	s.provider.release(ctx, s.generation)
}

// SessionProvider owns the primary session and at most one secondary
// session at a time.
type SessionProvider struct {
	backend        IdentityBackend
	logger         Logger
	loggerProvider LoggerProvider

	mu         sync.Mutex
	primary    *Session
	secondary  *SecondarySession
	generation uint64
}

// SessionProviderOption customizes the provider
type SessionProviderOption func(*SessionProvider)

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionProviderOption {
	return func(p *SessionProvider) {
		p.logger = logger
	}
}

// WithSessionLoggerProvider sets a provider used to resolve the logger
func WithSessionLoggerProvider(provider LoggerProvider) SessionProviderOption {
	return func(p *SessionProvider) {
		p.loggerProvider = provider
	}
}

// NewSessionProvider returns a provider for backend.
func NewSessionProvider(backend IdentityBackend, opts ...SessionProviderOption) *SessionProvider {
	p := &SessionProvider{backend: backend}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = ResolveLogger("accounts.sessions", p.loggerProvider, p.logger)
	return p
}

// Primary returns the long lived session of the signed-in administrator.
// It is created on first use and kept for the life of the process.
func (p *SessionProvider) Primary(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.primary != nil {
		return p.primary, nil
	}

	auth, err := p.backend.NewAuthContext(ctx, primaryContextName)
	if err != nil {
		return nil, ensureKind(err, KindNetwork, "unable to initialize primary session")
	}

	p.primary = &Session{name: primaryContextName, auth: auth}
	return p.primary, nil
}

// Secondary returns the isolated session, creating it when none is alive.
// While it is alive every call returns the same handle.
func (p *SessionProvider) Secondary(ctx context.Context) (*SecondarySession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.secondary != nil {
		return p.secondary, nil
	}

	auth, err := p.backend.NewAuthContext(ctx, secondaryContextName)
	if err != nil {
		return nil, ensureKind(err, KindNetwork, "unable to initialize secondary session")
	}

	p.generation++
	p.secondary = &SecondarySession{
		Session:    Session{name: secondaryContextName, auth: auth},
		provider:   p,
		generation: p.generation,
	}
	p.logger.Debug("secondary session %d created", p.generation)

	return p.secondary, nil
}

// WithSecondary runs fn with the secondary session and releases it on every
// exit path, panics included.
func (p *SessionProvider) WithSecondary(ctx context.Context, fn func(ctx context.Context, s *SecondarySession) error) error {
	s, err := p.Secondary(ctx)
	if err != nil {
		return err
	}
	defer s.Release(ctx)

	return fn(ctx, s)
}

// ReleaseSecondary tears down the secondary session. It is a no-op when no
// secondary session exists.
func (p *SessionProvider) ReleaseSecondary(ctx context.Context) {
	p.mu.Lock()
	current := p.secondary
	p.mu.Unlock()

	if current == nil {
		return
	}
	p.release(ctx, current.generation)
}

func (p *SessionProvider) release(ctx context.Context, generation uint64) {
	p.mu.Lock()
	current := p.secondary
	if current == nil || current.generation != generation {
		p.mu.Unlock()
		return
	}
	p.secondary = nil
	p.mu.Unlock()

	if err := current.auth.Close(ctx); err != nil {
		p.logger.Warn("secondary session %d teardown failed: %v", generation, err)
		return
	}
	p.logger.Debug("secondary session %d released", generation)
}

// HasSecondary reports whether a secondary session is alive
func (p *SessionProvider) HasSecondary() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.secondary != nil
}

// SignOut ends the current sign-in of session. Failures are logged only.
func (p *SessionProvider) SignOut(ctx context.Context, session *Session) {
	if session == nil || session.auth == nil {
		return
	}
	if err := session.auth.SignOut(ctx); err != nil {
		p.logger.Warn("sign out of %s session failed: %v", session.name, err)
	}
}

// Close tears down the primary session and any live secondary session.
// The provider can be used again afterwards; Primary then opens a new
// context.
func (p *SessionProvider) Close(ctx context.Context) {
	p.mu.Lock()
	primary := p.primary
	p.primary = nil
	secondary := p.secondary
	p.mu.Unlock()

	if secondary != nil {
		p.release(ctx, secondary.generation)
	}
	if primary == nil || primary.auth == nil {
		return
	}
	if err := primary.auth.Close(ctx); err != nil {
		p.logger.Warn("primary session teardown failed: %v", err)
	}
}

func (s *Session) String() string {
	if id, ok := s.Identity(); ok {
		return fmt.Sprintf("%s(%s)", s.name, id.ID)
	}
	return s.name
}
