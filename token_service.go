package accounts

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultSessionTTL   = 8 * time.Hour
	DefaultTokenIssuer  = "user-roles-console"
	minSigningKeyLength = 32
)

// SessionClaims are the claims of an admin session token. The token ID is
// the session ID and the subject is the administrator's identity.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// SessionID returns the session the token was issued for
func (c *SessionClaims) SessionID() string {
	return c.ID
}

// IdentityID returns the signed-in administrator
func (c *SessionClaims) IdentityID() string {
	return c.Subject
}

// TokenService signs and validates admin session tokens with HS256.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
	logger     Logger
}

// TokenServiceOption customizes the service
type TokenServiceOption func(*TokenService)

// WithTokenIssuer sets the iss claim
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		if strings.TrimSpace(issuer) != "" {
			ts.issuer = issuer
		}
	}
}

// WithTokenClock sets the clock used to issue and check tokens
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = logger
	}
}

// NewTokenService creates a TokenService. An empty signingKey is replaced
// by a random one, so tokens do not survive a restart.
func NewTokenService(signingKey []byte, ttl time.Duration, opts ...TokenServiceOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		signingKey = make([]byte, minSigningKeyLength)
		if _, err := rand.Read(signingKey); err != nil {
			return nil, WrapError(err, KindUnknown, "unable to generate session signing key")
		}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	ts := &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     DefaultTokenIssuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	ts.logger = ResolveLogger("accounts.tokens", nil, ts.logger)
	return ts, nil
}

// TTL returns the lifetime of issued tokens
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Generate signs a token for sessionID bound to identity.
func (ts *TokenService) Generate(sessionID string, identity Identity) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.ttl)
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    ts.issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: identity.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, WrapError(err, KindUnknown, "failed to sign session token")
	}
	return signed, expiresAt, nil
}

// Validate parses tokenString and checks signature, issuer and expiry.
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session token with unexpected signing method %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	},
		jwt.WithIssuer(ts.issuer),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, WrapError(err, KindUnauthenticated, "session token expired")
		}
		return nil, WrapError(err, KindUnauthenticated, "malformed session token")
	}

	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, NewError(KindUnauthenticated, "session token without session")
	}
	return claims, nil
}
