package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/ia-nocode/user-roles-v4/config"
	"github.com/ia-nocode/user-roles-v4/internal/storage"
	"github.com/ia-nocode/user-roles-v4/provider/memory"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	cfg := config.Persistence{Driver: config.DriverSQLite, DSN: "file::memory:", Migrate: true}
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db, err := storage.Open(context.Background(), cfg, sqldb, sqlitedialect.New(), storage.Options{Migrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestStore(t *testing.T) accounts.ProfileStore {
	t.Helper()
	return accounts.NewProfilesRepository(newTestDB(t),
		accounts.WithProfilesClock(func() time.Time { return fixedNow }),
		accounts.WithProfilesLogger(&captureLogger{}),
	)
}

// sequentialIDs returns identity ids id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestBackend() *memory.Backend {
	return memory.NewBackend(
		memory.WithBcryptCost(bcrypt.MinCost),
		memory.WithIDGenerator(sequentialIDs()),
	)
}

type fixture struct {
	backend  *memory.Backend
	store    accounts.ProfileStore
	sessions *accounts.SessionProvider
	console  *accounts.Console
	logger   *captureLogger
	admin    accounts.Identity
}

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret"
)

// newFixture wires a console against the memory backend and an SQLite
// store, with one administrator seeded and signed in.
func newFixture(t *testing.T, opts ...accounts.ConsoleOption) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		backend: newTestBackend(),
		store:   newTestStore(t),
		logger:  &captureLogger{},
	}

	admin, err := f.backend.Seed(adminEmail, adminPassword)
	require.NoError(t, err)
	f.admin = admin

	_, err = f.store.Create(ctx, accounts.NewProfile{
		IdentityID: admin.ID,
		Email:      admin.Email,
		FirstName:  "Ada",
		Role:       accounts.RoleAdmin,
	})
	require.NoError(t, err)

	f.sessions = accounts.NewSessionProvider(f.backend, accounts.WithSessionLogger(f.logger))
	opts = append([]accounts.ConsoleOption{accounts.WithConsoleLogger(f.logger)}, opts...)
	f.console = accounts.NewConsole(f.sessions, f.store, f.backend, opts...)

	n := f.console.SignIn(ctx, adminEmail, adminPassword)
	require.True(t, n.OK(), n.Message)
	return f
}
