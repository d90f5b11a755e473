package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileRecord is the persisted profile row in the "users" collection.
type ProfileRecord struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	IdentityID    string     `bun:"identity_id,notnull,unique" json:"uid,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Mobile        string     `bun:"mobile" json:"mobile,omitempty"`
	Role          Role       `bun:"role,notnull" json:"role,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	LastUpdated   *time.Time `bun:"last_updated,nullzero" json:"last_updated,omitempty"`
}

// Profile is the read model handed to callers. Timestamps are never zero.
type Profile struct {
	RecordID    string    `json:"id"`
	IdentityID  string    `json:"uid"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Mobile      string    `json:"mobile"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// FullName joins first and last name
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// NewProfile carries the caller supplied fields of a profile record.
// The record id and both timestamps are assigned by the store.
type NewProfile struct {
	IdentityID string
	Email      string
	FirstName  string
	LastName   string
	Mobile     string
	Role       Role
}

// ProfilePatch is a partial update; nil fields are left untouched.
// The identity id is immutable and has no field here.
type ProfilePatch struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Mobile    *string `json:"mobile,omitempty"`
	Role      *Role   `json:"role,omitempty"`
}

// IsEmpty reports whether the patch changes no field
func (p ProfilePatch) IsEmpty() bool {
	return p.Email == nil &&
		p.FirstName == nil &&
		p.LastName == nil &&
		p.Mobile == nil &&
		p.Role == nil
}

func (r *ProfileRecord) toProfile(now time.Time) Profile {
	p := Profile{
		RecordID:    r.ID.String(),
		IdentityID:  r.IdentityID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Mobile:      r.Mobile,
		Role:        r.Role,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	if r.LastUpdated != nil {
		p.LastUpdated = *r.LastUpdated
	}
	return p
}

// StringPtr is a helper to build patches
func StringPtr(s string) *string {
	return &s
}

// RolePtr is a helper to build patches
func RolePtr(r Role) *Role {
	return &r
}
