package accounts

import (
	"context"
	"time"
)

// ProfileLister enumerates profile records
type ProfileLister interface {
	List(ctx context.Context) ([]Profile, error)
}

// IdentityDirectory answers whether an identity still exists.
type IdentityDirectory interface {
	IdentityExists(ctx context.Context, identityID string) (bool, error)
}

// IdentityLister is implemented by backends that can enumerate identities.
type IdentityLister interface {
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// ReconcileReport lists profile records whose identity is gone and, when
// the backend can enumerate identities, identities with no profile record.
// Records that could not be checked are listed under Unchecked.
type ReconcileReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Checked     int               `json:"checked"`
	Orphaned    []Profile         `json:"orphaned"`
	Unprofiled  []Identity        `json:"unprofiled,omitempty"`
	Unchecked   map[string]string `json:"unchecked,omitempty"`
}

// Reconciler compares the profile store with the identity provider. It
// only reports; repairs are left to the operator.
type Reconciler struct {
	profiles   ProfileLister
	identities IdentityDirectory
	now        func() time.Time
	logger     Logger
}

// ReconcilerOption customizes the reconciler
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger
func WithReconcilerLogger(logger Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithReconcilerClock injects the report clock
func WithReconcilerClock(clock func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if clock != nil {
			r.now = clock
		}
	}
}

func NewReconciler(profiles ProfileLister, identities IdentityDirectory, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		profiles:   profiles,
		identities: identities,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = ResolveLogger("accounts.reconcile", nil, r.logger)
	return r
}

// Report checks every profile record against the identity provider.
func (r *Reconciler) Report(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{GeneratedAt: r.now()}

	records, err := r.profiles.List(ctx)
	if err != nil {
		return report, ensureKind(err, KindStore, "unable to list profiles")
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return report, WrapError(err, KindNetwork, "reconciliation interrupted")
		}

		report.Checked++
		exists, err := r.identities.IdentityExists(ctx, record.IdentityID)
		if err != nil {
			if report.Unchecked == nil {
				report.Unchecked = map[string]string{}
			}
			report.Unchecked[record.RecordID] = err.Error()
			r.logger.Warn("reconcile: identity %s of record %s not checked: %v", record.IdentityID, record.RecordID, err)
			continue
		}
		if !exists {
			report.Orphaned = append(report.Orphaned, record)
		}
	}

	if lister, ok := r.identities.(IdentityLister); ok {
		unprofiled, err := r.unprofiled(ctx, lister, records)
		if err != nil {
			return report, err
		}
		report.Unprofiled = unprofiled
	}

	if len(report.Unprofiled) > 0 {
		r.logger.Warn("reconcile: %d identities have no profile record", len(report.Unprofiled))
	}
	if len(report.Orphaned) > 0 {
		r.logger.Warn("reconcile: %d of %d profile records reference a missing identity", len(report.Orphaned), report.Checked)
	}
	return report, nil
}

func (r *Reconciler) unprofiled(ctx context.Context, lister IdentityLister, records []Profile) ([]Identity, error) {
	identities, err := lister.ListIdentities(ctx)
	if err != nil {
		return nil, ensureKind(err, KindUnknownProvider, "unable to list identities")
	}

	known := make(map[string]struct{}, len(records))
	for _, record := range records {
		known[record.IdentityID] = struct{}{}
	}

	var out []Identity
	for _, identity := range identities {
		if _, ok := known[identity.ID]; !ok {
			out = append(out, identity)
		}
	}
	return out, nil
}
