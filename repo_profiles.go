package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// profiles is the bun backed ProfileStore. Every method is a single store
// operation; nothing spans calls.
type profiles struct {
	repository.Repository[*ProfileRecord]
	db     *bun.DB
	now    func() time.Time
	logger Logger
}

var _ ProfileStore = (*profiles)(nil)

// ProfilesOption customizes the gateway
type ProfilesOption func(*profiles)

// WithProfilesClock injects the clock used for store-assigned timestamps.
func WithProfilesClock(clock func() time.Time) ProfilesOption {
	return func(p *profiles) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithProfilesLogger sets the logger
func WithProfilesLogger(logger Logger) ProfilesOption {
	return func(p *profiles) {
		p.logger = logger
	}
}

// NewProfilesRepository returns the gateway to the "users" collection.
func NewProfilesRepository(db *bun.DB, opts ...ProfilesOption) ProfileStore {
	repo := repository.NewRepository[*ProfileRecord](db, repository.ModelHandlers[*ProfileRecord]{
		NewRecord: func() *ProfileRecord { return &ProfileRecord{} },
		GetID: func(r *ProfileRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *ProfileRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "identity_id"
		},
	})

	p := &profiles{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = ResolveLogger("accounts.profiles", nil, p.logger)
	return p
}

// List returns every profile record in store order. Missing timestamps read
// as the time of the call.
func (p *profiles) List(ctx context.Context) ([]Profile, error) {
	var records []*ProfileRecord
	if err := p.db.NewSelect().Model(&records).Scan(ctx); err != nil {
		return nil, WrapError(err, KindStore, "failed to list profiles")
	}

	now := p.now()
	out := make([]Profile, 0, len(records))
	for _, record := range records {
		out = append(out, record.toProfile(now))
	}
	return out, nil
}

// Create inserts record with a store-assigned id and timestamps.
func (p *profiles) Create(ctx context.Context, record NewProfile) (Profile, error) {
	now := p.now()
	row := &ProfileRecord{
		ID:          uuid.New(),
		IdentityID:  record.IdentityID,
		Email:       strings.TrimSpace(record.Email),
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		Mobile:      record.Mobile,
		Role:        record.Role,
		CreatedAt:   &now,
		LastUpdated: &now,
	}

	created, err := p.Repository.CreateTx(ctx, p.db, row)
	if err != nil {
		return Profile{}, WrapError(err, KindStore, "failed to create profile").
			WithMetadata(map[string]any{"identity_id": record.IdentityID})
	}

	return created.toProfile(now), nil
}

// Update applies patch and refreshes last_updated. The identity id and the
// creation time are never written.
func (p *profiles) Update(ctx context.Context, recordID string, patch ProfilePatch) error {
	id, err := parseRecordID(recordID)
	if err != nil {
		return err
	}

	q := p.db.NewUpdate().Model((*ProfileRecord)(nil))
	if patch.Email != nil {
		q = q.Set("email = ?", strings.TrimSpace(*patch.Email))
	}
	if patch.FirstName != nil {
		q = q.Set("first_name = ?", *patch.FirstName)
	}
	if patch.LastName != nil {
		q = q.Set("last_name = ?", *patch.LastName)
	}
	if patch.Mobile != nil {
		q = q.Set("mobile = ?", *patch.Mobile)
	}
	if patch.Role != nil {
		q = q.Set("role = ?", string(*patch.Role))
	}

	res, err := q.
		Set("last_updated = ?", p.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return WrapError(err, KindStore, "failed to update profile").
			WithMetadata(map[string]any{"id": recordID})
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return profileNotFound("id", recordID)
	}
	return nil
}

// Delete removes the record. The identity it references is left alone.
func (p *profiles) Delete(ctx context.Context, recordID string) error {
	id, err := parseRecordID(recordID)
	if err != nil {
		return err
	}

	res, err := p.db.NewDelete().
		Model((*ProfileRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return WrapError(err, KindStore, "failed to delete profile").
			WithMetadata(map[string]any{"id": recordID})
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return profileNotFound("id", recordID)
	}
	return nil
}

// FindByIdentityID returns the first record whose identity id matches.
func (p *profiles) FindByIdentityID(ctx context.Context, identityID string) (Profile, error) {
	return p.findBy(ctx, "identity_id", strings.TrimSpace(identityID))
}

// FindByEmail returns the first record whose email matches, ignoring case.
func (p *profiles) FindByEmail(ctx context.Context, email string) (Profile, error) {
	return p.findBy(ctx, "lower(email)", strings.ToLower(strings.TrimSpace(email)))
}

func (p *profiles) findBy(ctx context.Context, column, value string) (Profile, error) {
	if value == "" {
		return Profile{}, profileNotFound(column, value)
	}

	record := &ProfileRecord{}
	err := p.db.NewSelect().
		Model(record).
		Where("? = ?", bun.Safe(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return Profile{}, profileNotFound(column, value)
		}
		return Profile{}, WrapError(err, KindStore, "failed to look up profile").
			WithMetadata(map[string]any{column: value})
	}

	return record.toProfile(p.now()), nil
}

func parseRecordID(recordID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(recordID))
	if err != nil {
		return uuid.Nil, profileNotFound("id", recordID)
	}
	return id, nil
}

func profileNotFound(key, value string) error {
	return NewError(KindNotFound, "profile record not found").
		WithMetadata(map[string]any{key: value})
}
