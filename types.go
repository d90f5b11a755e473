package accounts

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider hands out named loggers, one per component
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to LoggerProvider
type LoggerProviderFunc func(name string) Logger

func (f LoggerProviderFunc) GetLogger(name string) Logger {
	return f(name)
}

// Identity is the auth provider's record of a credential holder.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IdentityBackend creates isolated credential containers against a single
// auth provider project.
type IdentityBackend interface {
	// NewAuthContext returns a fresh credential container. Contexts never
	// share signed-in state with each other.
	NewAuthContext(ctx context.Context, name string) (AuthContext, error)
	// IdentityExists reports whether the provider still knows identityID.
	IdentityExists(ctx context.Context, identityID string) (bool, error)
}

// AuthContext holds at most one signed-in identity.
type AuthContext interface {
	Name() string
	SignIn(ctx context.Context, email, password string) (Identity, error)
	// CreateIdentity registers a new identity and signs it in on this
	// context only.
	CreateIdentity(ctx context.Context, email, password string) (Identity, error)
	// DeleteIdentity removes identity, which must be the one signed in here.
	DeleteIdentity(ctx context.Context, identity Identity) error
	CurrentIdentity() (Identity, bool)
	SignOut(ctx context.Context) error
	// Close tears the context down. A closed context must not be reused.
	Close(ctx context.Context) error
}

// ProfileStore is the gateway to the "users" collection.
type ProfileStore interface {
	List(ctx context.Context) ([]Profile, error)
	Create(ctx context.Context, record NewProfile) (Profile, error)
	Update(ctx context.Context, recordID string, patch ProfilePatch) error
	Delete(ctx context.Context, recordID string) error
	FindByIdentityID(ctx context.Context, identityID string) (Profile, error)
	FindByEmail(ctx context.Context, email string) (Profile, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// ResolveLogger picks the logger a component should use: an explicit logger
// wins, then the provider's named logger, then the printf fallback.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	if logger != nil {
		return logger
	}
	if provider != nil {
		if lgr := provider.GetLogger(name); lgr != nil {
			return lgr
		}
	}
	return defLogger{}
}
