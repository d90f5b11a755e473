package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ia-nocode/user-roles-v4/middleware/jwtware"
)

var _ jwtware.TokenValidator = (*AdminSessions)(nil)

// AdminSession is one signed-in caller of the JSON API. Every session owns
// its console, so its admin status and provider contexts are its own.
type AdminSession struct {
	ID        string
	Identity  Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
	console   *Console
}

// Console returns the console bound to the session
func (s *AdminSession) Console() *Console {
	return s.console
}

// AdminStatus returns the admin status resolved for this session
func (s *AdminSession) AdminStatus() AdminStatus {
	return s.console.AdminStatus()
}

// SessionGrant is handed to a caller after a successful sign in.
type SessionGrant struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

// ConsoleFactory builds an unsigned console for a new session.
type ConsoleFactory func() *Console

// AdminSessions keeps the open admin sessions of the JSON API, keyed by
// the session ID carried in their token.
type AdminSessions struct {
	factory  ConsoleFactory
	tokens   *TokenService
	messages Messages
	logger   Logger
	newID    func() string
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*AdminSession
}

// AdminSessionsOption customizes the registry
type AdminSessionsOption func(*AdminSessions)

// WithAdminSessionsLogger sets the logger
func WithAdminSessionsLogger(logger Logger) AdminSessionsOption {
	return func(s *AdminSessions) {
		s.logger = logger
	}
}

// WithAdminSessionsMessages sets the catalog used for session failures
func WithAdminSessionsMessages(messages Messages) AdminSessionsOption {
	return func(s *AdminSessions) {
		if messages != nil {
			s.messages = messages
		}
	}
}

// WithAdminSessionsClock sets the clock used to expire sessions
func WithAdminSessionsClock(now func() time.Time) AdminSessionsOption {
	return func(s *AdminSessions) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionIDGenerator sets the session ID generator
func WithSessionIDGenerator(fn func() string) AdminSessionsOption {
	return func(s *AdminSessions) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewAdminSessions creates an empty registry. factory is called once per
// sign in attempt.
func NewAdminSessions(factory ConsoleFactory, tokens *TokenService, opts ...AdminSessionsOption) *AdminSessions {
	s := &AdminSessions{
		factory:  factory,
		tokens:   tokens,
		messages: EnglishMessages,
		newID:    uuid.NewString,
		now:      time.Now,
		sessions: map[string]*AdminSession{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = ResolveLogger("accounts.admin_sessions", nil, s.logger)
	return s
}

// Messages returns the catalog of the registry
func (s *AdminSessions) Messages() Messages {
	return s.messages
}

// SignIn opens a session on a fresh console. A failed attempt closes that
// console only; sessions already open are left as they are.
func (s *AdminSessions) SignIn(ctx context.Context, email, password string) (SessionGrant, Notification) {
	console := s.factory()

	n := console.SignIn(ctx, email, password)
	if !n.OK() {
		console.Close(ctx)
		return SessionGrant{}, n
	}

	identity, _ := console.CurrentIdentity()
	id := s.newID()
	token, expiresAt, err := s.tokens.Generate(id, identity)
	if err != nil {
		console.SignOut(ctx)
		console.Close(ctx)
		return SessionGrant{}, console.fail(ctx, MsgSignInFailed, err)
	}

	session := &AdminSession{
		ID:        id,
		Identity:  identity,
		IssuedAt:  s.now(),
		ExpiresAt: expiresAt,
		console:   console,
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.logger.Info("admin session %s opened for identity %s", id, identity.ID)
	return SessionGrant{
		SessionID: id,
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  identity,
	}, n
}

// Validate implements jwtware.TokenValidator. The token must verify and its
// session must still be open.
func (s *AdminSessions) Validate(tokenString string) (jwt.Claims, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if _, err := s.Session(context.Background(), claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Resolve validates tokenString and returns its session.
func (s *AdminSessions) Resolve(ctx context.Context, tokenString string) (*AdminSession, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return s.Session(ctx, claims)
}

// Session returns the open session claims were issued for. An expired
// session is closed and reported as unauthenticated.
func (s *AdminSessions) Session(ctx context.Context, claims *SessionClaims) (*AdminSession, error) {
	if claims == nil {
		return nil, NewError(KindUnauthenticated, "no session claims")
	}

	s.mu.Lock()
	session, ok := s.sessions[claims.SessionID()]
	if ok && !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, session.ID)
		s.mu.Unlock()
		s.logger.Info("admin session %s expired", session.ID)
		session.console.Close(ctx)
		return nil, NewError(KindUnauthenticated, "session expired")
	}
	s.mu.Unlock()

	if !ok {
		return nil, NewError(KindUnauthenticated, "session is not open").
			WithMetadata(map[string]any{"session_id": claims.SessionID()})
	}
	if session.Identity.ID != claims.IdentityID() {
		return nil, NewError(KindUnauthenticated, "session identity mismatch")
	}
	return session, nil
}

// SignOut ends sessionID. Other sessions are not affected.
func (s *AdminSessions) SignOut(ctx context.Context, sessionID string) Notification {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return Notification{
			Level:   LevelError,
			Kind:    KindUnauthenticated,
			Message: s.messages.Text(MsgSessionRequired),
		}
	}

	n := session.console.SignOut(ctx)
	session.console.Close(ctx)
	s.logger.Info("admin session %s closed", sessionID)
	return n
}

// Active returns the number of open sessions
func (s *AdminSessions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes the expired sessions and returns how many were closed.
func (s *AdminSessions) Sweep(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var expired []*AdminSession
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.console.Close(ctx)
	}
	if len(expired) > 0 {
		s.logger.Info("closed %d expired admin sessions", len(expired))
	}
	return len(expired)
}

// Close signs every open session out.
func (s *AdminSessions) Close(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*AdminSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = map[string]*AdminSession{}
	s.mu.Unlock()

	for _, session := range sessions {
		session.console.SignOut(ctx)
		session.console.Close(ctx)
	}
}
