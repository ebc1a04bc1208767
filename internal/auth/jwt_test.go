package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{
	UserID:   "2b1f4d1e-7c1a-4c7e-9d61-4f1c2a3b4c5d",
	Email:    "a@x.com",
	Phone:    "0000000000",
	FullName: "Jhon Doe",
}

func TestIssuer_Roundtrip(t *testing.T) {
	i := NewIssuer("secret", 0)

	token, expiresAt, err := i.Issue(testIdentity)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionTTL), expiresAt, time.Minute)

	claims, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, claims.Identity())
	assert.Equal(t, testIdentity.UserID, claims.Subject)
}

func TestIssuer_TTL(t *testing.T) {
	assert.Equal(t, DefaultSessionTTL, NewIssuer("secret", 0).TTL())
	assert.Equal(t, 30*time.Minute, NewIssuer("secret", 30*time.Minute).TTL())
}

func TestIssuer_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	i := NewIssuer("secret", time.Hour).WithClock(func() time.Time { return issuedAt })

	token, _, err := i.Issue(testIdentity)
	require.NoError(t, err)

	_, err = i.WithClock(func() time.Time { return issuedAt.Add(59 * time.Minute) }).Verify(token)
	require.NoError(t, err)

	_, err = i.WithClock(func() time.Time { return issuedAt.Add(61 * time.Minute) }).Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestIssuer_WrongSecret(t *testing.T) {
	token, _, err := NewIssuer("secret", time.Hour).Issue(testIdentity)
	require.NoError(t, err)

	_, err = NewIssuer("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestIssuer_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: testIdentity.UserID,
	}

	t.Run("HS512", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = NewIssuer("secret", time.Hour).Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	})

	t.Run("none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = NewIssuer("secret", time.Hour).Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	})
}

func TestIssuer_RequiresExpiryAndSubject(t *testing.T) {
	t.Run("missing exp", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "x"}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = NewIssuer("secret", time.Hour).Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	})

	t.Run("missing id", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = NewIssuer("secret", time.Hour).Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	})
}

func TestIssuer_Garbage(t *testing.T) {
	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := NewIssuer("secret", time.Hour).Verify(tok)
		assert.ErrorIs(t, err, ErrTokenInvalidOrExpired, tok)
	}
}
