package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/ia-nocode/user-roles-v4/provider/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestConsoleCreateUserKeepsAdministratorSignedIn(t *testing.T) {
	var snapshots [][]accounts.Profile
	var notes []accounts.Notification
	f := newFixture(t,
		accounts.WithRefreshFunc(func(ctx context.Context, profiles []accounts.Profile) {
			snapshots = append(snapshots, profiles)
		}),
		accounts.WithNotifyFunc(func(ctx context.Context, n accounts.Notification) {
			notes = append(notes, n)
		}),
	)
	ctx := context.Background()

	n := f.console.CreateUser(ctx, validCreateRequest("jane@example.com"))
	require.True(t, n.OK(), n.Message)
	assert.Equal(t, "User created successfully", n.Message)

	current, ok := f.console.CurrentIdentity()
	require.True(t, ok)
	assert.Equal(t, f.admin, current)
	assert.Equal(t, accounts.AdminStatus{IsAdmin: true, Settled: true}, f.console.AdminStatus())

	primary, err := f.sessions.Primary(ctx)
	require.NoError(t, err)
	signedIn, ok := primary.Identity()
	require.True(t, ok)
	assert.Equal(t, f.admin.ID, signedIn.ID)

	assert.False(t, f.sessions.HasSecondary())
	assert.Equal(t, 1, f.backend.OpenContexts())

	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 2)
	require.NotEmpty(t, notes)
	assert.Equal(t, n, notes[len(notes)-1])
}

func TestConsoleCreateUserEmailInUse(t *testing.T) {
	f := newFixture(t)

	n := f.console.CreateUser(context.Background(), validCreateRequest(adminEmail))
	assert.Equal(t, accounts.LevelError, n.Level)
	assert.Equal(t, accounts.KindEmailInUse, n.Kind)
	assert.Equal(t, "This email is already registered", n.Message)
	assert.False(t, n.RequiresReconciliation)
}

func TestConsoleCreateUserValidationFields(t *testing.T) {
	f := newFixture(t)

	req := validCreateRequest("jane@example.com")
	req.Mobile = "12"
	n := f.console.CreateUser(context.Background(), req)

	assert.Equal(t, accounts.KindValidation, n.Kind)
	assert.Contains(t, n.Fields, "mobile")
	assert.Equal(t, 1, f.backend.OpenContexts())
}

func TestConsoleCreateUserRolledBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the next identity the backend hands out is id-2; occupy it so the
	// profile insert hits the unique constraint
	_, err := f.store.Create(ctx, accounts.NewProfile{IdentityID: "id-2", Email: "squatter@example.com", Role: accounts.RoleUser})
	require.NoError(t, err)

	n := f.console.CreateUser(ctx, validCreateRequest("jane@example.com"))
	assert.Equal(t, accounts.KindInconsistent, n.Kind)
	assert.Equal(t, "id-2", n.IdentityID)
	assert.False(t, n.RequiresReconciliation)
	assert.Contains(t, n.Message, "was removed")

	exists, err := f.backend.IdentityExists(ctx, "id-2")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1, f.backend.OpenContexts())
}

func TestConsoleCreateUserRequiresReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Create(ctx, accounts.NewProfile{IdentityID: "id-2", Email: "squatter@example.com", Role: accounts.RoleUser})
	require.NoError(t, err)
	f.backend.FailNext(memory.OpDelete, accounts.NewError(accounts.KindNetwork, "connection reset"))

	n := f.console.CreateUser(ctx, validCreateRequest("jane@example.com"))
	assert.Equal(t, accounts.KindInconsistent, n.Kind)
	assert.True(t, n.RequiresReconciliation)
	assert.Equal(t, "id-2", n.IdentityID)

	exists, err := f.backend.IdentityExists(ctx, "id-2")
	require.NoError(t, err)
	assert.True(t, exists)

	errs := f.logger.levels("error")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1], "RECONCILIATION REQUIRED")
}

func TestConsoleUpdateUserPasswordChangeWarns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.store.Create(ctx, accounts.NewProfile{IdentityID: "uid-9", Email: "bob@example.com", Role: accounts.RoleUser})
	require.NoError(t, err)

	n := f.console.UpdateUser(ctx, accounts.UpdateAccountRequest{
		RecordID:    created.RecordID,
		Patch:       accounts.ProfilePatch{FirstName: accounts.StringPtr("Bobby")},
		NewPassword: "another-secret",
	})
	assert.Equal(t, accounts.LevelWarning, n.Level)
	assert.Equal(t, accounts.KindNotSupported, n.Kind)

	updated, err := f.store.FindByIdentityID(ctx, "uid-9")
	require.NoError(t, err)
	assert.Equal(t, "Bobby", updated.FirstName)
}

func TestConsoleUpdateAndDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.console.CreateUser(ctx, validCreateRequest("jane@example.com")).OK())
	profiles, n := f.console.ListUsers(ctx)
	require.Nil(t, n)

	var jane accounts.Profile
	for _, p := range profiles {
		if p.Email == "jane@example.com" {
			jane = p
		}
	}
	require.NotEmpty(t, jane.RecordID)

	updated := f.console.UpdateUser(ctx, accounts.UpdateAccountRequest{
		RecordID: jane.RecordID,
		Patch:    accounts.ProfilePatch{Role: accounts.RolePtr(accounts.RoleAdmin)},
	})
	require.True(t, updated.OK(), updated.Message)

	deleted := f.console.DeleteUser(ctx, jane.RecordID)
	require.True(t, deleted.OK(), deleted.Message)

	missing := f.console.DeleteUser(ctx, jane.RecordID)
	assert.Equal(t, accounts.KindNotFound, missing.Kind)

	report, rn := f.console.Reconcile(ctx)
	require.True(t, rn.OK())
	assert.True(t, rn.RequiresReconciliation)
	assert.Equal(t, []accounts.Identity{{ID: jane.IdentityID, Email: "jane@example.com"}}, report.Unprofiled)
}

func TestConsoleSignInGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	editor, err := f.backend.Seed("editor@example.com", "editor-pass")
	require.NoError(t, err)
	_, err = f.store.Create(ctx, accounts.NewProfile{IdentityID: editor.ID, Email: editor.Email, Role: accounts.RoleEditor})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		kind     accounts.ErrorKind
	}{
		{"malformed email", "admin@", "x", accounts.KindInvalidEmail},
		{"no profile", "ghost@example.com", "x", accounts.KindNotFound},
		{"not an admin", "editor@example.com", "editor-pass", accounts.KindAccessDenied},
		{"wrong password", adminEmail, "wrong", accounts.KindInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := f.console.SignIn(ctx, tt.email, tt.password)
			assert.Equal(t, accounts.LevelError, n.Level)
			assert.Equal(t, tt.kind, n.Kind)
		})
	}

	assert.False(t, f.console.AdminStatus().IsAdmin)
	_, n := f.console.ListUsers(ctx)
	require.NotNil(t, n)
	assert.Equal(t, accounts.KindAccessDenied, n.Kind)
}

func TestConsoleSignInIsThrottled(t *testing.T) {
	f := newFixture(t, accounts.WithSignInLimiter(rate.NewLimiter(0, 1)))

	n := f.console.SignIn(context.Background(), adminEmail, adminPassword)
	assert.Equal(t, accounts.KindTooManyRequests, n.Kind)
}

func TestConsoleSignOutRevokesAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.console.SignOut(ctx)
	require.True(t, n.OK())
	assert.Equal(t, accounts.AdminStatus{IsAdmin: false, Settled: true}, f.console.AdminStatus())

	created := f.console.CreateUser(ctx, validCreateRequest("jane@example.com"))
	assert.Equal(t, accounts.KindAccessDenied, created.Kind)

	identities, err := f.backend.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, identities, 1)
}

func TestConsoleFrenchMessages(t *testing.T) {
	f := newFixture(t, accounts.WithConsoleMessages(accounts.FrenchMessages))

	n := f.console.CreateUser(context.Background(), validCreateRequest(adminEmail))
	assert.Equal(t, "Cet email est déjà enregistré", n.Message)
}

func TestConsoleRecordsActivity(t *testing.T) {
	var events []accounts.ActivityEvent
	f := newFixture(t, accounts.WithActivitySink(accounts.ActivitySinkFunc(
		func(ctx context.Context, event accounts.ActivityEvent) error {
			events = append(events, event)
			return nil
		},
	)))
	ctx := context.Background()

	require.True(t, f.console.CreateUser(ctx, validCreateRequest("jane@example.com")).OK())

	jane, err := f.store.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)

	name := "Janet"
	require.True(t, f.console.UpdateUser(ctx, accounts.UpdateAccountRequest{
		RecordID: jane.RecordID,
		Patch:    accounts.ProfilePatch{FirstName: &name},
	}).OK())
	require.True(t, f.console.DeleteUser(ctx, jane.RecordID).OK())
	require.True(t, f.console.SignOut(ctx).OK())

	types := make([]accounts.ActivityEventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.EventType)
		assert.Equal(t, f.admin.ID, event.ActorID, event.EventType)
		assert.False(t, event.OccurredAt.IsZero())
	}
	assert.Equal(t, []accounts.ActivityEventType{
		accounts.ActivitySignInSucceeded,
		accounts.ActivityAccountCreated,
		accounts.ActivityAccountUpdated,
		accounts.ActivityAccountDeleted,
		accounts.ActivitySignedOut,
	}, types)

	created := events[1]
	assert.Equal(t, jane.RecordID, created.RecordID)
	assert.Equal(t, jane.IdentityID, created.IdentityID)
	assert.Equal(t, "jane@example.com", created.Email)
}

func TestConsoleRecordsFailedSignIn(t *testing.T) {
	var events []accounts.ActivityEvent
	f := newFixture(t, accounts.WithActivitySink(accounts.ActivitySinkFunc(
		func(ctx context.Context, event accounts.ActivityEvent) error {
			events = append(events, event)
			return assert.AnError
		},
	)))

	n := f.console.SignIn(context.Background(), "Ghost@Example.com", "whatever")
	require.False(t, n.OK())

	last := events[len(events)-1]
	assert.Equal(t, accounts.ActivitySignInFailed, last.EventType)
	assert.Equal(t, "ghost@example.com", last.Email)
	assert.Equal(t, accounts.KindNotFound, last.Metadata["kind"])
	assert.NotEmpty(t, f.logger.levels("warn"))
}
