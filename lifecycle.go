package accounts

import (
	"context"
	"strings"
	"sync"
)

// CreateResult describes how a create run ended.
type CreateResult struct {
	Run      *Run
	Identity Identity
	Profile  Profile
	// Compensated is set when the profile write failed and the new identity
	// was deleted again.
	Compensated bool
}

// UpdateResult describes how an update run ended.
type UpdateResult struct {
	Run *Run
	// PasswordChanged is always false: changing another user's password is
	// not supported.
	PasswordChanged bool
}

// DeleteResult describes how a delete run ended.
type DeleteResult struct {
	Run *Run
}

// SecondarySessions hands out the isolated session used to create identities.
type SecondarySessions interface {
	Secondary(ctx context.Context) (*SecondarySession, error)
}

// Lifecycle creates, updates and deletes accounts across the identity
// provider and the profile store.
type Lifecycle struct {
	sessions SecondarySessions
	profiles ProfileStore
	machine  *LifecycleMachine
	rules    Rules
	logger   Logger

	// creates are serialized: the secondary session holds one identity at a time
	createMu sync.Mutex
}

// LifecycleOption customizes the workflow
type LifecycleOption func(*Lifecycle)

// WithLifecycleLogger sets the logger
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// WithLifecycleRules overrides the input rules
func WithLifecycleRules(rules Rules) LifecycleOption {
	return func(l *Lifecycle) {
		l.rules = rules.withDefaults()
	}
}

// WithLifecycleMachine replaces the state machine, e.g. to add hooks
func WithLifecycleMachine(machine *LifecycleMachine) LifecycleOption {
	return func(l *Lifecycle) {
		if machine != nil {
			l.machine = machine
		}
	}
}

func NewLifecycle(sessions SecondarySessions, profiles ProfileStore, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		sessions: sessions,
		profiles: profiles,
		rules:    DefaultRules(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.logger = ResolveLogger("accounts.lifecycle", nil, l.logger)
	if l.machine == nil {
		l.machine = NewLifecycleMachine(WithStateMachineLogger(l.logger))
	}
	return l
}

// Create provisions an identity on the secondary session, then writes its
// profile record. When the record write fails the identity is deleted
// again. The secondary session is released on every exit path.
func (l *Lifecycle) Create(ctx context.Context, req CreateAccountRequest) (result *CreateResult, err error) {
	run := l.machine.Start(OperationCreate)
	result = &CreateResult{Run: run}

	req = req.Normalize()
	if err := req.Validate(l.rules); err != nil {
		l.advance(ctx, run, StateRejected)
		return result, err
	}
	l.advance(ctx, run, StateValidated)

	l.createMu.Lock()
	defer l.createMu.Unlock()

	secondary, err := l.sessions.Secondary(ctx)
	if err != nil {
		l.advance(ctx, run, StateFailed)
		return result, ensureKind(err, KindNetwork, "unable to acquire secondary session")
	}
	l.advance(ctx, run, StateSessionAcquired)

	defer func() {
		recovered := recover()
		l.cleanup(ctx, secondary)
		l.advance(ctx, run, StateCleanedUp)
		if err != nil || recovered != nil {
			l.advance(ctx, run, StateFailed)
		} else {
			l.advance(ctx, run, StateCompleted)
		}
		if recovered != nil {
			panic(recovered)
		}
	}()

	identity, err := secondary.CreateIdentity(ctx, req.Email, req.Password)
	if err != nil {
		l.logger.Error("create identity for %s failed: %v", req.Email, err)
		return result, ensureKind(err, KindUnknownProvider, "unable to create identity")
	}
	result.Identity = identity
	l.advance(ctx, run, StateIdentityCreated)

	profile, err := l.profiles.Create(ctx, NewProfile{
		IdentityID: identity.ID,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Mobile:     req.Mobile,
		Role:       req.Role,
	})
	if err != nil {
		l.logger.Error("create profile for identity %s failed: %v", identity.ID, err)
		result.Compensated = l.compensate(ctx, run, secondary, identity)
		return result, WrapError(err, KindInconsistent, inconsistencyMessage(result.Compensated)).
			WithMetadata(map[string]any{
				"identity_id": identity.ID,
				"email":       req.Email,
				"compensated": result.Compensated,
			})
	}

	result.Profile = profile
	l.advance(ctx, run, StateRecordPersisted)
	l.logger.Info("account %s created for identity %s", profile.RecordID, identity.ID)

	return result, nil
}

// Update applies patch to an existing profile record. The identity is
// never touched. A requested password change is refused after the
// profile change is stored.
func (l *Lifecycle) Update(ctx context.Context, req UpdateAccountRequest) (*UpdateResult, error) {
	run := l.machine.Start(OperationUpdate)
	result := &UpdateResult{Run: run}

	req.RecordID = strings.TrimSpace(req.RecordID)
	if err := req.Validate(l.rules); err != nil {
		l.advance(ctx, run, StateRejected)
		return result, err
	}
	l.advance(ctx, run, StateValidated)

	if err := l.profiles.Update(ctx, req.RecordID, req.Patch); err != nil {
		l.logger.Error("update profile %s failed: %v", req.RecordID, err)
		l.advance(ctx, run, StateFailed)
		return result, ensureKind(err, KindStore, "unable to update profile")
	}
	l.advance(ctx, run, StateRecordUpdated)
	l.advance(ctx, run, StateCompleted)

	if req.NewPassword != "" {
		return result, ErrPasswordChangeNotSupported(req.RecordID)
	}

	return result, nil
}

// Delete removes the profile record only. The identity stays with the
// provider and shows up in the reconciliation report.
func (l *Lifecycle) Delete(ctx context.Context, recordID string) (*DeleteResult, error) {
	run := l.machine.Start(OperationDelete)
	result := &DeleteResult{Run: run}

	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		l.advance(ctx, run, StateRejected)
		return result, NewError(KindValidation, "record id is required")
	}
	l.advance(ctx, run, StateValidated)

	if err := l.profiles.Delete(ctx, recordID); err != nil {
		l.logger.Error("delete profile %s failed: %v", recordID, err)
		l.advance(ctx, run, StateFailed)
		return result, ensureKind(err, KindStore, "unable to delete profile")
	}
	l.advance(ctx, run, StateRecordDeleted)
	l.advance(ctx, run, StateCompleted)

	return result, nil
}

// ErrPasswordChangeNotSupported is returned when an update asks to change
// another user's password.
func ErrPasswordChangeNotSupported(recordID string) error {
	return NewError(KindNotSupported, "changing another user's password is not supported").
		WithMetadata(map[string]any{"id": recordID})
}

func (l *Lifecycle) compensate(ctx context.Context, run *Run, secondary *SecondarySession, identity Identity) bool {
	comp, ok := l.machine.CompensationFor(run.State())
	if !ok {
		return false
	}

	switch comp.Action {
	case CompensateDeleteIdentity:
		if err := secondary.DeleteIdentity(ctx, identity); err != nil {
			l.logger.Error("rollback of identity %s failed, manual reconciliation required: %v", identity.ID, err)
			l.advance(ctx, run, comp.OnFailure)
			return false
		}
	}

	l.logger.Warn("identity %s rolled back after profile write failure", identity.ID)
	l.advance(ctx, run, comp.OnSuccess)
	return true
}

func (l *Lifecycle) cleanup(ctx context.Context, secondary *SecondarySession) {
	if _, ok := secondary.Identity(); ok {
		if err := secondary.auth.SignOut(ctx); err != nil {
			l.logger.Warn("secondary sign out failed: %v", err)
		}
	}
	secondary.Release(ctx)
}

func (l *Lifecycle) advance(ctx context.Context, run *Run, state LifecycleState) {
	if err := run.Transition(ctx, state); err != nil {
		l.logger.Error("lifecycle %s: %v", run.Operation(), err)
	}
}

func inconsistencyMessage(compensated bool) string {
	if compensated {
		return "profile write failed, the new identity was rolled back"
	}
	return "profile write failed and the new identity could not be rolled back"
}
