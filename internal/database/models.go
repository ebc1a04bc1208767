package database

import (
	"encoding/json"
	"strings"
	"time"
)

type Name struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// Full is "first last", trimmed.
func (n Name) Full() string {
	return strings.TrimSpace(n.First + " " + n.Last)
}

func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		First string `json:"first"`
		Last  string `json:"last"`
		Full  string `json:"full"`
	}{n.First, n.Last, n.Full()})
}

// ResetState is an outstanding forgot-password request. Token holds the
// digest of the token mailed to the user, never the token itself.
type ResetState struct {
	RequestedAt time.Time
	Token       string
	ExpiresAt   time.Time
}

// Valid reports whether the state can still be redeemed at now. The token
// expires at ExpiresAt exactly.
func (r *ResetState) Valid(now time.Time) bool {
	return r != nil && r.Token != "" && r.ExpiresAt.After(now)
}

// Account is one user record. PasswordHash and Reset never leave the service
// in a response.
type Account struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone,omitempty"`
	PasswordHash string      `json:"-"`
	IsActive     bool        `json:"isActive"`
	Name         Name        `json:"name"`
	Reset        *ResetState `json:"-"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	// GeneratedPassword is only set on the value returned by a signup that
	// generated the password. It is never persisted.
	GeneratedPassword string `json:"-"`
}

// Redacted returns a copy without secrets.
func (a Account) Redacted() Account {
	a.PasswordHash = ""
	a.Reset = nil
	a.GeneratedPassword = ""
	return a
}

// NameUpdate carries the name parts of a patch. A nil part is left untouched.
type NameUpdate struct {
	First *string
	Last  *string
}

// AccountPatch lists the fields an update may change. Nil fields are not
// touched; to clear a field pass a pointer to the empty value.
type AccountPatch struct {
	Phone        *string
	PasswordHash *string
	IsActive     *bool
	Name         *NameUpdate
}

func (p AccountPatch) IsEmpty() bool {
	return p.Phone == nil && p.PasswordHash == nil && p.IsActive == nil &&
		(p.Name == nil || (p.Name.First == nil && p.Name.Last == nil))
}

// Apply merges p into a.
func (p AccountPatch) Apply(a *Account) {
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	if p.Name != nil {
		if p.Name.First != nil {
			a.Name.First = *p.Name.First
		}
		if p.Name.Last != nil {
			a.Name.Last = *p.Name.Last
		}
	}
}
