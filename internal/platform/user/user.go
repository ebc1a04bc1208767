package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"accounts/internal/auth"
	"accounts/internal/database"
	"accounts/internal/mail"
	"accounts/pkg/utils"
)

// PasswordHasher is satisfied by *auth.PasswordHasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) bool
}

// TokenIssuer is satisfied by *auth.Issuer.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

// Notifier hands mail off for background delivery. Dispatch must not block
// on delivery.
type Notifier interface {
	Dispatch(e *mail.Email)
}

// UserService is the administrative CRUD surface over accounts. Every account
// it returns is redacted.
type UserService struct {
	store  database.Store
	hasher PasswordHasher
}

func NewService(store database.Store, hasher PasswordHasher) *UserService {
	return &UserService{store: store, hasher: hasher}
}

type CreateInput struct {
	Email    string
	Phone    string
	Password string
	IsActive *bool
	Name     database.Name
}

type UpdateInput struct {
	Phone    *string
	Password *string
	IsActive *bool
	Name     *database.NameUpdate
}

func (s *UserService) List(ctx context.Context) ([]database.Account, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, storeError("list users", err)
	}
	return accounts, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*database.Account, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError("get user", err)
	}
	out := a.Redacted()
	return &out, nil
}

// Create inserts an account directly. Accounts are active unless in.IsActive
// says otherwise.
func (s *UserService) Create(ctx context.Context, in CreateInput) (*database.Account, error) {
	email := utils.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	hash, err := hashPassword(ctx, s.hasher, in.Password)
	if err != nil {
		return nil, err
	}

	account := &database.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        in.Phone,
		PasswordHash: hash,
		IsActive:     in.IsActive == nil || *in.IsActive,
		Name:         in.Name,
	}
	if err := create(ctx, s.store, account); err != nil {
		return nil, err
	}

	out := account.Redacted()
	return &out, nil
}

// Update merges in into the account. A new password is hashed before it is
// stored.
func (s *UserService) Update(ctx context.Context, id string, in UpdateInput) (*database.Account, error) {
	patch := database.AccountPatch{
		Phone:    in.Phone,
		IsActive: in.IsActive,
		Name:     in.Name,
	}

	if in.Password != nil {
		hash, err := hashPassword(ctx, s.hasher, *in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	a, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError("update user", err)
	}
	out := a.Redacted()
	return &out, nil
}

// Delete removes the account. Deleting an unknown id succeeds.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError("delete user", err)
	}
	return nil
}

func create(ctx context.Context, store database.Store, account *database.Account) error {
	if err := store.Create(ctx, account); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return ErrDuplicateAccount
		}
		return storeError("create user", err)
	}
	return nil
}

func hashPassword(ctx context.Context, hasher PasswordHasher, password string) (string, error) {
	hash, err := hasher.Hash(ctx, password)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, auth.ErrEmptyPassword):
		return "", ErrMissingFields
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", ErrInvalidPassword
	default:
		return "", err
	}
}
