package user

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFields         = errors.New("missing required fields")
	ErrAccountNotFound       = errors.New("user not found")
	ErrAccountInactive       = errors.New("user inactive")
	ErrCredentialMismatch    = errors.New("credential mismatch")
	ErrDuplicateAccount      = errors.New("an account with this email already exists")
	ErrExpiredOrInvalidToken = errors.New("invalid or expired link")
	ErrStoreUnavailable      = errors.New("account store unavailable")
	ErrInvalidPassword       = errors.New("password must be at most 72 bytes")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
