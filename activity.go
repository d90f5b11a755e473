package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates the audited console actions.
type ActivityEventType string

const (
	ActivitySignInSucceeded        ActivityEventType = "console.sign_in.success"
	ActivitySignInFailed           ActivityEventType = "console.sign_in.failure"
	ActivitySignedOut              ActivityEventType = "console.sign_out"
	ActivityAccountCreated         ActivityEventType = "account.created"
	ActivityAccountRolledBack      ActivityEventType = "account.create.rolled_back"
	ActivityReconciliationRequired ActivityEventType = "account.create.reconciliation_required"
	ActivityAccountUpdated         ActivityEventType = "account.updated"
	ActivityAccountDeleted         ActivityEventType = "account.deleted"
)

// ActivityEvent captures who did what to which account.
type ActivityEvent struct {
	EventType ActivityEventType
	// ActorID is the identity of the signed-in administrator, empty when
	// nobody is signed in.
	ActorID    string
	RecordID   string
	IdentityID string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LoggerActivitySink writes every event as an audit log line.
func LoggerActivitySink(logger Logger) ActivitySink {
	logger = ResolveLogger("accounts.audit", nil, logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		logger.Info("audit %s actor=%s record=%s identity=%s email=%s",
			event.EventType, event.ActorID, event.RecordID, event.IdentityID, event.Email)
		return nil
	})
}
