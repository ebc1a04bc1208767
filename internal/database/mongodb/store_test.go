package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"accounts/internal/database"
)

func TestDocumentConversion(t *testing.T) {
	expires := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	in := &database.Account{
		ID:           "id-1",
		Email:        "a@x.com",
		PasswordHash: "hash",
		IsActive:     true,
		Name:         database.Name{First: "Jhon", Last: "Doe"},
		Reset: &database.ResetState{
			RequestedAt: expires.Add(-time.Hour),
			Token:       "digest",
			ExpiresAt:   expires,
		},
	}

	raw, err := bson.Marshal(fromAccount(in))
	require.NoError(t, err)

	var doc accountDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	out := doc.toAccount()

	assert.Equal(t, in.Email, out.Email)
	assert.Equal(t, in.PasswordHash, out.PasswordHash)
	assert.Equal(t, "Jhon Doe", out.Name.Full())
	require.NotNil(t, out.Reset)
	assert.Equal(t, "digest", out.Reset.Token)
	assert.True(t, out.Reset.ExpiresAt.Equal(expires))
}

func TestDocumentFieldNames(t *testing.T) {
	raw, err := bson.Marshal(fromAccount(&database.Account{
		ID:    "id-1",
		Email: "a@x.com",
		Reset: &database.ResetState{Token: "digest"},
	}))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "id-1", m["_id"])
	assert.Contains(t, m, "forgotpassword")
	assert.Contains(t, m, "isActive")
	assert.NotContains(t, m, "phone")
}

func TestPatchDocument(t *testing.T) {
	phone := ""
	last := "Smith"
	active := false

	got := patchDocument(database.AccountPatch{
		Phone:    &phone,
		IsActive: &active,
		Name:     &database.NameUpdate{Last: &last},
	})

	assert.Equal(t, bson.M{
		"phone":     "",
		"isActive":  false,
		"name.last": "Smith",
	}, got)
	assert.Empty(t, patchDocument(database.AccountPatch{}))
}

func TestResetFilter(t *testing.T) {
	now := time.Now()
	f := resetFilter("digest", now)

	assert.Equal(t, "digest", f["forgotpassword.token"])
	assert.Equal(t, bson.M{"$gt": now}, f["forgotpassword.expiresAt"])
}
