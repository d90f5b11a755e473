package accounts_test

import (
	"context"
	"fmt"
	"sync"

	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/stretchr/testify/mock"
)

// MockIdentityBackend implements accounts.IdentityBackend
type MockIdentityBackend struct {
	mock.Mock
}

func (m *MockIdentityBackend) NewAuthContext(ctx context.Context, name string) (accounts.AuthContext, error) {
	args := m.Called(ctx, name)
	auth, _ := args.Get(0).(accounts.AuthContext)
	return auth, args.Error(1)
}

func (m *MockIdentityBackend) IdentityExists(ctx context.Context, identityID string) (bool, error) {
	args := m.Called(ctx, identityID)
	return args.Bool(0), args.Error(1)
}

// MockAuthContext implements accounts.AuthContext
type MockAuthContext struct {
	mock.Mock
}

func (m *MockAuthContext) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAuthContext) SignIn(ctx context.Context, email, password string) (accounts.Identity, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(accounts.Identity), args.Error(1)
}

func (m *MockAuthContext) CreateIdentity(ctx context.Context, email, password string) (accounts.Identity, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(accounts.Identity), args.Error(1)
}

func (m *MockAuthContext) DeleteIdentity(ctx context.Context, identity accounts.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockAuthContext) CurrentIdentity() (accounts.Identity, bool) {
	args := m.Called()
	return args.Get(0).(accounts.Identity), args.Bool(1)
}

func (m *MockAuthContext) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAuthContext) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockProfileStore implements accounts.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) List(ctx context.Context) ([]accounts.Profile, error) {
	args := m.Called(ctx)
	profiles, _ := args.Get(0).([]accounts.Profile)
	return profiles, args.Error(1)
}

func (m *MockProfileStore) Create(ctx context.Context, record accounts.NewProfile) (accounts.Profile, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(accounts.Profile), args.Error(1)
}

func (m *MockProfileStore) Update(ctx context.Context, recordID string, patch accounts.ProfilePatch) error {
	args := m.Called(ctx, recordID, patch)
	return args.Error(0)
}

func (m *MockProfileStore) Delete(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

func (m *MockProfileStore) FindByIdentityID(ctx context.Context, identityID string) (accounts.Profile, error) {
	args := m.Called(ctx, identityID)
	return args.Get(0).(accounts.Profile), args.Error(1)
}

func (m *MockProfileStore) FindByEmail(ctx context.Context, email string) (accounts.Profile, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(accounts.Profile), args.Error(1)
}

type logCall struct {
	level   string
	message string
}

// captureLogger records every formatted log line
type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: fmt.Sprintf(format, args...)})
}

func (l *captureLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.record("error", format, args...) }

func (l *captureLogger) levels(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c.message)
		}
	}
	return out
}
