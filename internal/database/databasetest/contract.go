// Package databasetest holds the behaviour every database.Store must share.
package databasetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounts/internal/database"
)

// Run exercises store against the account store contract. newStore must
// return an empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) database.Store) {
	t.Run("create and find", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := seed(t, s, "jhon@x.com", "5550001")

		byEmail, err := s.FindByHandle(ctx, "JHON@X.COM")
		require.NoError(t, err)
		assert.Equal(t, a.ID, byEmail.ID)
		assert.Equal(t, "Jhon Doe", byEmail.Name.Full())
		assert.NotEmpty(t, byEmail.PasswordHash)

		byPhone, err := s.FindByHandle(ctx, "5550001")
		require.NoError(t, err)
		assert.Equal(t, a.ID, byPhone.ID)

		_, err = s.FindByHandle(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, database.ErrNotFound)

		_, err = s.FindByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("email match wins over phone match", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		seed(t, s, "other@x.com", "shared@x.com")
		byEmail := seed(t, s, "shared@x.com", "")

		for i := 0; i < 5; i++ {
			got, err := s.FindByHandle(ctx, "shared@x.com")
			require.NoError(t, err)
			assert.Equal(t, byEmail.ID, got.ID)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "dup@x.com", "")

		err := s.Create(context.Background(), &database.Account{
			ID:           uuid.NewString(),
			Email:        "dup@x.com",
			PasswordHash: "h",
		})
		assert.ErrorIs(t, err, database.ErrDuplicateEmail)
	})

	t.Run("inactive flag survives create", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := &database.Account{ID: uuid.NewString(), Email: "off@x.com", PasswordHash: "h"}
		require.NoError(t, s.Create(ctx, a))

		got, err := s.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("update merges", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := seed(t, s, "upd@x.com", "1")

		last := "Smith"
		got, err := s.Update(ctx, a.ID, database.AccountPatch{Name: &database.NameUpdate{Last: &last}})
		require.NoError(t, err)
		assert.Equal(t, "Jhon", got.Name.First)
		assert.Equal(t, "Smith", got.Name.Last)
		assert.Equal(t, "1", got.Phone)

		inactive := false
		got, err = s.Update(ctx, a.ID, database.AccountPatch{IsActive: &inactive})
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		_, err = s.Update(ctx, uuid.NewString(), database.AccountPatch{IsActive: &inactive})
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("list is redacted", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := seed(t, s, "l1@x.com", "")
		seed(t, s, "l2@x.com", "")
		require.NoError(t, s.SetResetState(ctx, a.ID, database.ResetState{
			RequestedAt: time.Now(),
			Token:       "digest-list",
			ExpiresAt:   time.Now().Add(time.Hour),
		}))

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, item := range list {
			assert.Empty(t, item.PasswordHash)
			assert.Nil(t, item.Reset)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := seed(t, s, "del@x.com", "")

		require.NoError(t, s.Delete(ctx, a.ID))
		require.NoError(t, s.Delete(ctx, a.ID))

		_, err := s.FindByID(ctx, a.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("reset token lifecycle", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := seed(t, s, "reset@x.com", "")
		now := time.Now().UTC().Truncate(time.Millisecond)

		require.NoError(t, s.SetResetState(ctx, a.ID, database.ResetState{
			RequestedAt: now,
			Token:       "digest-1",
			ExpiresAt:   now.Add(time.Hour),
		}))

		found, err := s.FindByResetToken(ctx, "digest-1", now)
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)

		_, err = s.FindByResetToken(ctx, "digest-1", now.Add(time.Hour))
		assert.ErrorIs(t, err, database.ErrTokenNotRedeemable)

		_, err = s.RedeemReset(ctx, "digest-2", now, "new-hash")
		assert.ErrorIs(t, err, database.ErrTokenNotRedeemable)

		redeemed, err := s.RedeemReset(ctx, "digest-1", now, "new-hash")
		require.NoError(t, err)
		assert.Equal(t, "new-hash", redeemed.PasswordHash)
		assert.Nil(t, redeemed.Reset)

		_, err = s.RedeemReset(ctx, "digest-1", now, "newer-hash")
		assert.ErrorIs(t, err, database.ErrTokenNotRedeemable)
		_, err = s.FindByResetToken(ctx, "digest-1", now)
		assert.ErrorIs(t, err, database.ErrTokenNotRedeemable)
	})

	t.Run("reset lookup ignores active flag", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := seed(t, s, "off-reset@x.com", "")
		now := time.Now().UTC()
		require.NoError(t, s.SetResetState(ctx, a.ID, database.ResetState{
			RequestedAt: now,
			Token:       "digest-off",
			ExpiresAt:   now.Add(time.Hour),
		}))
		inactive := false
		_, err := s.Update(ctx, a.ID, database.AccountPatch{IsActive: &inactive})
		require.NoError(t, err)

		found, err := s.FindByResetToken(ctx, "digest-off", now)
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)
		assert.False(t, found.IsActive)
	})

	t.Run("concurrent redeem has one winner", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := seed(t, s, "race@x.com", "")
		now := time.Now().UTC()
		require.NoError(t, s.SetResetState(ctx, a.ID, database.ResetState{
			RequestedAt: now,
			Token:       "digest-race",
			ExpiresAt:   now.Add(time.Hour),
		}))

		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, err := s.RedeemReset(ctx, "digest-race", now, "h"); err == nil {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})
}

func seed(t *testing.T, s database.Store, email, phone string) *database.Account {
	t.Helper()
	a := &database.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        phone,
		PasswordHash: "$2a$04$hash",
		IsActive:     true,
		Name:         database.Name{First: "Jhon", Last: "Doe"},
	}
	require.NoError(t, s.Create(context.Background(), a))
	return a
}
