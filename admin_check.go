package accounts

import (
	"context"
	"sync"
)

// AdminStatus is the outcome of an admin resolution. IsAdmin is only
// meaningful once Settled is true; until then callers must treat the
// identity as not an admin.
type AdminStatus struct {
	IsAdmin bool `json:"is_admin"`
	Settled bool `json:"settled"`
}

// ProfileFinder looks up the profile record of an identity.
type ProfileFinder interface {
	FindByIdentityID(ctx context.Context, identityID string) (Profile, error)
}

// AdminCheck decides whether an identity may use the admin console.
type AdminCheck struct {
	profiles ProfileFinder
	logger   Logger
}

// AdminCheckOption customizes the check
type AdminCheckOption func(*AdminCheck)

// WithAdminCheckLogger sets the logger
func WithAdminCheckLogger(logger Logger) AdminCheckOption {
	return func(c *AdminCheck) {
		c.logger = logger
	}
}

func NewAdminCheck(profiles ProfileFinder, opts ...AdminCheckOption) *AdminCheck {
	c := &AdminCheck{profiles: profiles}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = ResolveLogger("accounts.admin", nil, c.logger)
	return c
}

// Resolve fails closed: no identity, no record, or a lookup error all
// settle as not admin. Only the exact admin role grants access.
func (c *AdminCheck) Resolve(ctx context.Context, identity *Identity) AdminStatus {
	if identity == nil || identity.ID == "" {
		return AdminStatus{IsAdmin: false, Settled: true}
	}

	profile, err := c.profiles.FindByIdentityID(ctx, identity.ID)
	if err != nil {
		if !IsKind(err, KindNotFound) {
			c.logger.Error("admin check for identity %s failed: %v", identity.ID, err)
		}
		return AdminStatus{IsAdmin: false, Settled: true}
	}

	return AdminStatus{IsAdmin: profile.Role.IsAdmin(), Settled: true}
}

// AdminStatusTracker keeps the admin status of the currently signed-in
// identity. Each identity change starts a new resolution; a resolution
// that finishes after the identity changed again is discarded.
type AdminStatusTracker struct {
	check *AdminCheck

	mu         sync.Mutex
	identity   *Identity
	status     AdminStatus
	generation uint64
}

func NewAdminStatusTracker(check *AdminCheck) *AdminStatusTracker {
	return &AdminStatusTracker{
		check:  check,
		status: AdminStatus{IsAdmin: false, Settled: true},
	}
}

// Status returns the latest settled or pending status
func (t *AdminStatusTracker) Status() AdminStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Identity returns the identity the tracker follows
func (t *AdminStatusTracker) Identity() (Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.identity == nil {
		return Identity{}, false
	}
	return *t.identity, true
}

// SetIdentity points the tracker at identity, nil meaning signed out, and
// resolves its status. Setting the identity already tracked is a no-op.
func (t *AdminStatusTracker) SetIdentity(ctx context.Context, identity *Identity) AdminStatus {
	t.mu.Lock()
	if sameIdentity(t.identity, identity) && t.status.Settled {
		status := t.status
		t.mu.Unlock()
		return status
	}
	t.mu.Unlock()

	return t.resolve(ctx, identity)
}

// Refresh resolves the tracked identity again, e.g. after its role changed.
func (t *AdminStatusTracker) Refresh(ctx context.Context) AdminStatus {
	t.mu.Lock()
	identity := t.identity
	t.mu.Unlock()

	return t.resolve(ctx, identity)
}

func (t *AdminStatusTracker) resolve(ctx context.Context, identity *Identity) AdminStatus {
	t.mu.Lock()
	t.generation++
	generation := t.generation
	if identity != nil {
		copied := *identity
		identity = &copied
	}
	t.identity = identity
	t.status = AdminStatus{IsAdmin: false, Settled: false}
	t.mu.Unlock()

	status := t.check.Resolve(ctx, identity)

	t.mu.Lock()
	defer t.mu.Unlock()
	if generation != t.generation {
		return t.status
	}
	t.status = status
	return status
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
