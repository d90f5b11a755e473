package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/time/rate"
)

const (
	DefaultSignInBurst    = 5
	DefaultSignInInterval = 12 * time.Second
)

// NotificationLevel is the severity of a notification
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is what the operator is told about an action.
type Notification struct {
	Level                  NotificationLevel `json:"level"`
	Kind                   ErrorKind         `json:"kind,omitempty"`
	Message                string            `json:"message"`
	RequiresReconciliation bool              `json:"requires_reconciliation,omitempty"`
	IdentityID             string            `json:"identity_id,omitempty"`
	Fields                 map[string]string `json:"fields,omitempty"`
}

// OK is true for success notifications
func (n Notification) OK() bool {
	return n.Level == LevelSuccess
}

// RefreshFunc receives the profile list after every successful change.
type RefreshFunc func(ctx context.Context, profiles []Profile)

// NotifyFunc receives every notification the console produces.
type NotifyFunc func(ctx context.Context, n Notification)

// Console is the boundary used by the presentation layer. Every failure is
// turned into a Notification and logged; no error crosses it.
type Console struct {
	sessions   *SessionProvider
	profiles   ProfileStore
	lifecycle  *Lifecycle
	tracker    *AdminStatusTracker
	reconciler *Reconciler
	messages   Messages
	limiter    *rate.Limiter
	rules      Rules
	activity   ActivitySink

	logger         Logger
	loggerProvider LoggerProvider

	mu         sync.Mutex
	refreshers []RefreshFunc
	notifiers  []NotifyFunc
}

// ConsoleOption customizes the console
type ConsoleOption func(*Console)

// WithConsoleLogger sets the logger
func WithConsoleLogger(logger Logger) ConsoleOption {
	return func(c *Console) {
		c.logger = logger
	}
}

// WithConsoleLoggerProvider resolves the logger of every component the
// console builds.
func WithConsoleLoggerProvider(provider LoggerProvider) ConsoleOption {
	return func(c *Console) {
		c.loggerProvider = provider
	}
}

// WithConsoleMessages sets the message catalog
func WithConsoleMessages(messages Messages) ConsoleOption {
	return func(c *Console) {
		if messages != nil {
			c.messages = messages
		}
	}
}

// WithConsoleRules sets the input rules
func WithConsoleRules(rules Rules) ConsoleOption {
	return func(c *Console) {
		c.rules = rules.withDefaults()
	}
}

// WithSignInLimiter sets the sign-in throttle
func WithSignInLimiter(limiter *rate.Limiter) ConsoleOption {
	return func(c *Console) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithActivitySink records audited console actions to sink
func WithActivitySink(sink ActivitySink) ConsoleOption {
	return func(c *Console) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithRefreshFunc registers a list observer
func WithRefreshFunc(fn RefreshFunc) ConsoleOption {
	return func(c *Console) {
		if fn != nil {
			c.refreshers = append(c.refreshers, fn)
		}
	}
}

// WithNotifyFunc registers a notification observer
func WithNotifyFunc(fn NotifyFunc) ConsoleOption {
	return func(c *Console) {
		if fn != nil {
			c.notifiers = append(c.notifiers, fn)
		}
	}
}

// NewConsole wires the lifecycle workflow, the admin check and the
// reconciler around sessions and profiles.
func NewConsole(sessions *SessionProvider, profiles ProfileStore, identities IdentityDirectory, opts ...ConsoleOption) *Console {
	c := &Console{
		sessions: sessions,
		profiles: profiles,
		messages: EnglishMessages,
		rules:    DefaultRules(),
		limiter:  rate.NewLimiter(rate.Every(DefaultSignInInterval), DefaultSignInBurst),
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.logger = ResolveLogger("accounts.console", c.loggerProvider, c.logger)
	c.lifecycle = NewLifecycle(sessions, profiles,
		WithLifecycleRules(c.rules),
		WithLifecycleLogger(ResolveLogger("accounts.lifecycle", c.loggerProvider, nil)),
	)
	c.tracker = NewAdminStatusTracker(NewAdminCheck(profiles,
		WithAdminCheckLogger(ResolveLogger("accounts.admin", c.loggerProvider, nil)),
	))
	c.reconciler = NewReconciler(profiles, identities,
		WithReconcilerLogger(ResolveLogger("accounts.reconcile", c.loggerProvider, nil)),
	)
	return c
}

// AdminStatus returns the status of the signed-in administrator
func (c *Console) AdminStatus() AdminStatus {
	return c.tracker.Status()
}

// CurrentIdentity returns the signed-in administrator
func (c *Console) CurrentIdentity() (Identity, bool) {
	return c.tracker.Identity()
}

// Lifecycle exposes the workflow
func (c *Console) Lifecycle() *Lifecycle {
	return c.lifecycle
}

// SignIn checks that email belongs to an admin profile before any
// provider call, then signs the primary session in.
func (c *Console) SignIn(ctx context.Context, email, password string) Notification {
	email = strings.ToLower(strings.TrimSpace(email))

	identity, err := c.signIn(ctx, email, password)
	if err != nil {
		c.record(ctx, ActivityEvent{
			EventType: ActivitySignInFailed,
			Email:     email,
			Metadata:  map[string]any{"kind": KindOf(err)},
		})
		return c.fail(ctx, MsgSignInFailed, err)
	}

	c.logger.Info("administrator %s signed in", identity.ID)
	c.record(ctx, ActivityEvent{
		EventType:  ActivitySignInSucceeded,
		ActorID:    identity.ID,
		IdentityID: identity.ID,
		Email:      email,
	})
	return c.succeed(ctx, MsgSignInSucceeded)
}

func (c *Console) signIn(ctx context.Context, email, password string) (Identity, error) {
	if !c.limiter.Allow() {
		return Identity{}, NewError(KindTooManyRequests, "too many sign in attempts")
	}

	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return Identity{}, WrapError(err, KindInvalidEmail, "invalid email format")
	}

	profile, err := c.profiles.FindByEmail(ctx, email)
	if err != nil {
		return Identity{}, ensureKind(err, KindStore, "unable to look up profile")
	}
	if !profile.Role.IsAdmin() {
		return Identity{}, NewError(KindAccessDenied, "profile is not an administrator").
			WithMetadata(map[string]any{"email": email})
	}

	primary, err := c.sessions.Primary(ctx)
	if err != nil {
		return Identity{}, err
	}

	identity, err := primary.SignIn(ctx, email, password)
	if err != nil {
		c.sessions.SignOut(ctx, primary)
		c.tracker.SetIdentity(ctx, nil)
		return Identity{}, ensureKind(err, KindUnknownProvider, "sign in failed")
	}

	if status := c.tracker.SetIdentity(ctx, &identity); !status.IsAdmin {
		c.sessions.SignOut(ctx, primary)
		c.tracker.SetIdentity(ctx, nil)
		return Identity{}, NewError(KindAccessDenied, "identity is not an administrator").
			WithMetadata(map[string]any{"identity_id": identity.ID})
	}

	return identity, nil
}

// SignOut signs the primary session out. It always succeeds; provider
// failures are logged.
func (c *Console) SignOut(ctx context.Context) Notification {
	actor := c.actorID()
	if primary, err := c.sessions.Primary(ctx); err == nil {
		c.sessions.SignOut(ctx, primary)
	} else {
		c.logger.Warn("sign out: no primary session: %v", err)
	}
	c.tracker.SetIdentity(ctx, nil)
	c.record(ctx, ActivityEvent{EventType: ActivitySignedOut, ActorID: actor})
	return c.succeed(ctx, MsgSignOutSucceeded)
}

// Close releases every provider context of the console without recording
// a sign out. The console can sign in again afterwards.
func (c *Console) Close(ctx context.Context) {
	c.sessions.Close(ctx)
	c.tracker.SetIdentity(ctx, nil)
}

// ListUsers returns every profile. The notification is nil on success.
func (c *Console) ListUsers(ctx context.Context) ([]Profile, *Notification) {
	if n := c.requireAdmin(ctx); n != nil {
		return nil, n
	}

	profiles, err := c.profiles.List(ctx)
	if err != nil {
		n := c.failWith(ctx, MsgLoadFailed, ensureKind(err, KindStore, "unable to list profiles"))
		return nil, &n
	}
	return profiles, nil
}

// CreateUser runs the create workflow.
func (c *Console) CreateUser(ctx context.Context, req CreateAccountRequest) Notification {
	if n := c.requireAdmin(ctx); n != nil {
		return *n
	}

	result, err := c.lifecycle.Create(ctx, req)
	if err != nil {
		if IsKind(err, KindInconsistent) {
			return c.inconsistent(ctx, result, err)
		}
		return c.fail(ctx, MsgCreateFailed, err)
	}

	c.record(ctx, ActivityEvent{
		EventType:  ActivityAccountCreated,
		ActorID:    c.actorID(),
		RecordID:   result.Profile.RecordID,
		IdentityID: result.Identity.ID,
		Email:      result.Profile.Email,
		Metadata:   map[string]any{"role": result.Profile.Role},
	})
	c.refresh(ctx)
	return c.succeed(ctx, MsgCreateSucceeded)
}

// UpdateUser runs the update workflow. A refused password change still
// reports the profile change as saved.
func (c *Console) UpdateUser(ctx context.Context, req UpdateAccountRequest) Notification {
	if n := c.requireAdmin(ctx); n != nil {
		return *n
	}

	_, err := c.lifecycle.Update(ctx, req)
	if err == nil || IsKind(err, KindNotSupported) {
		c.record(ctx, ActivityEvent{
			EventType: ActivityAccountUpdated,
			ActorID:   c.actorID(),
			RecordID:  req.RecordID,
			Metadata:  map[string]any{"password_changed": false},
		})
	}

	switch {
	case err == nil:
		c.refresh(ctx)
		return c.succeed(ctx, MsgUpdateSucceeded)
	case IsKind(err, KindNotSupported):
		c.logger.Warn("update %s: %v", req.RecordID, err)
		c.refresh(ctx)
		return c.emit(ctx, Notification{
			Level:   LevelWarning,
			Kind:    KindNotSupported,
			Message: c.messages.Text(MsgPasswordKept),
		})
	default:
		return c.fail(ctx, MsgUpdateFailed, err)
	}
}

// DeleteUser removes the profile record of recordID.
func (c *Console) DeleteUser(ctx context.Context, recordID string) Notification {
	if n := c.requireAdmin(ctx); n != nil {
		return *n
	}

	if _, err := c.lifecycle.Delete(ctx, recordID); err != nil {
		return c.fail(ctx, MsgDeleteFailed, err)
	}

	c.record(ctx, ActivityEvent{
		EventType: ActivityAccountDeleted,
		ActorID:   c.actorID(),
		RecordID:  recordID,
	})
	c.refresh(ctx)
	return c.succeed(ctx, MsgDeleteSucceeded)
}

// Reconcile builds the reconciliation report.
func (c *Console) Reconcile(ctx context.Context) (ReconcileReport, Notification) {
	if n := c.requireAdmin(ctx); n != nil {
		return ReconcileReport{}, *n
	}

	report, err := c.reconciler.Report(ctx)
	if err != nil {
		return report, c.fail(ctx, MsgReconcileFailed, err)
	}

	n := c.succeed(ctx, MsgReconcileDone)
	n.RequiresReconciliation = len(report.Orphaned) > 0 || len(report.Unprofiled) > 0
	return report, n
}

func (c *Console) requireAdmin(ctx context.Context) *Notification {
	status := c.tracker.Status()
	if status.Settled && status.IsAdmin {
		return nil
	}
	n := c.fail(ctx, MsgAccessDenied, NewError(KindAccessDenied, "administrator session required"))
	return &n
}

func (c *Console) refresh(ctx context.Context) {
	c.mu.Lock()
	refreshers := append([]RefreshFunc(nil), c.refreshers...)
	c.mu.Unlock()

	if len(refreshers) == 0 {
		return
	}

	profiles, err := c.profiles.List(ctx)
	if err != nil {
		c.failWith(ctx, MsgLoadFailed, ensureKind(err, KindStore, "unable to list profiles"))
		return
	}
	for _, fn := range refreshers {
		fn(ctx, profiles)
	}
}

func (c *Console) inconsistent(ctx context.Context, result *CreateResult, err error) Notification {
	n := Notification{
		Level:      LevelError,
		Kind:       KindInconsistent,
		IdentityID: result.Identity.ID,
	}
	event := ActivityEvent{
		EventType:  ActivityAccountRolledBack,
		ActorID:    c.actorID(),
		IdentityID: result.Identity.ID,
		Email:      result.Identity.Email,
	}
	if !result.Compensated {
		event.EventType = ActivityReconciliationRequired
	}
	c.record(ctx, event)

	if result.Compensated {
		n.Message = c.messages.Text(MsgCreateRolledBack)
		c.logger.Error("create rolled back for identity %s: %v", result.Identity.ID, err)
	} else {
		n.Message = c.messages.Text(MsgReconcileNeeded)
		n.RequiresReconciliation = true
		c.logger.Error("RECONCILIATION REQUIRED: identity %s has no profile record: %v", result.Identity.ID, err)
	}
	return c.emit(ctx, n)
}

func (c *Console) actorID() string {
	if identity, ok := c.tracker.Identity(); ok {
		return identity.ID
	}
	return ""
}

func (c *Console) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := c.activity.Record(ctx, event); err != nil {
		c.logger.Warn("activity %s not recorded: %v", event.EventType, err)
	}
}

func (c *Console) fail(ctx context.Context, fallback MessageKey, err error) Notification {
	return c.notifyFailure(ctx, messageForKind(KindOf(err), fallback), err)
}

// failWith always uses key, whatever the kind of err.
func (c *Console) failWith(ctx context.Context, key MessageKey, err error) Notification {
	return c.notifyFailure(ctx, key, err)
}

func (c *Console) notifyFailure(ctx context.Context, key MessageKey, err error) Notification {
	kind := KindOf(err)
	c.logger.Error("%s: %v", key, err)

	n := Notification{
		Level:   LevelError,
		Kind:    kind,
		Message: c.messages.Text(key),
	}
	if kind == KindValidation {
		n.Fields = validationFieldsOf(err)
	}
	return c.emit(ctx, n)
}

func (c *Console) succeed(ctx context.Context, key MessageKey) Notification {
	return c.emit(ctx, Notification{
		Level:   LevelSuccess,
		Message: c.messages.Text(key),
	})
}

func (c *Console) emit(ctx context.Context, n Notification) Notification {
	c.mu.Lock()
	notifiers := append([]NotifyFunc(nil), c.notifiers...)
	c.mu.Unlock()

	for _, fn := range notifiers {
		fn(ctx, n)
	}
	return n
}

func validationFieldsOf(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	raw, ok := richErr.Metadata["fields"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
