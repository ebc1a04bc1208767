package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("account with this email already exists")
	// ErrTokenNotRedeemable covers an unknown, expired or already used reset token.
	ErrTokenNotRedeemable = errors.New("reset token not redeemable")
)

// Store persists accounts. Implementations must make Create enforce email
// uniqueness and RedeemReset a single atomic conditional update, so that two
// concurrent redeemers of one token cannot both succeed.
type Store interface {
	// FindByHandle matches the lowercased handle against email, or the raw
	// handle against phone. An email match wins over a phone match.
	FindByHandle(ctx context.Context, handle string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	// List returns every account without password hash or reset state.
	List(ctx context.Context) ([]Account, error)
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, id string, patch AccountPatch) (*Account, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error

	SetResetState(ctx context.Context, id string, state ResetState) error
	// FindByResetToken returns the account whose reset digest matches and has
	// not expired at now, whether or not it is active. It never modifies the
	// account.
	FindByResetToken(ctx context.Context, digest string, now time.Time) (*Account, error)
	// RedeemReset replaces the password hash and clears the reset state of the
	// account holding an unexpired digest, in one step.
	RedeemReset(ctx context.Context, digest string, now time.Time, passwordHash string) (*Account, error)

	Close(ctx context.Context) error
}
