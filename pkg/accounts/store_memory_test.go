package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(username string) *Account {
	return &Account{
		Username:    username,
		AuthMethod:  AuthMethodCampusConnect,
		Institution: "Uni A",
		FirstName:   "Bob",
		LastName:    "Builder",
		Email:       username + "@unia.example.edu",
		IDNumber:    "id-" + username,
		Custom:      map[string]string{"department": "physics"},
	}
}

func TestMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	account := newAccount("unia_bob")
	require.NoError(t, store.Create(ctx, account))
	assert.NotZero(t, account.ID)
	assert.False(t, account.CreatedAt.IsZero())

	found, err := store.FindByUsername(ctx, "unia_bob")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
	assert.Equal(t, "Bob", found.FirstName)

	_, err = store.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryStore_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, newAccount("unia_bob")))
	err := store.Create(ctx, newAccount("unia_bob"))
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestMemoryStore_SearchByField(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newAccount("unia_bob")))
	require.NoError(t, store.Create(ctx, newAccount("unia_alice")))

	t.Run("column field", func(t *testing.T) {
		matches, err := store.SearchByField(ctx, "email", "unia_bob@unia.example.edu")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "unia_bob", matches[0].Username)
	})

	t.Run("custom field", func(t *testing.T) {
		matches, err := store.SearchByField(ctx, "department", "physics")
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("empty value never matches", func(t *testing.T) {
		matches, err := store.SearchByField(ctx, "email", "")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestMemoryStore_ScrubAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newAccount("unia_bob")))
	require.NoError(t, store.LogEvent(ctx, "unia_bob", "login"))

	require.NoError(t, store.ScrubAndDelete(ctx, "unia_bob"))

	// The account is gone for lookups but the username stays reserved.
	_, err := store.FindByUsername(ctx, "unia_bob")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	exists, err := store.UsernameExists(ctx, "unia_bob")
	require.NoError(t, err)
	assert.True(t, exists)

	// Personal data must not be searchable any more.
	matches, err := store.SearchByField(ctx, "email", "unia_bob@unia.example.edu")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Empty(t, store.Events("unia_bob"))
}

func TestMemoryStore_SuspendAndTouch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newAccount("unia_bob")))

	require.NoError(t, store.Suspend(ctx, "unia_bob"))
	found, err := store.FindByUsername(ctx, "unia_bob")
	require.NoError(t, err)
	assert.True(t, found.Suspended)

	at := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Touch(ctx, "unia_bob", at))
	found, err = store.FindByUsername(ctx, "unia_bob")
	require.NoError(t, err)
	require.NotNil(t, found.LastLoginAt)
	assert.Equal(t, at, *found.LastLoginAt)

	assert.ErrorIs(t, store.Suspend(ctx, "nobody"), ErrAccountNotFound)
	assert.ErrorIs(t, store.Touch(ctx, "nobody", at), ErrAccountNotFound)
}
