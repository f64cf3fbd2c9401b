package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
)

func newMapping(personID, username string) *Mapping {
	return &Mapping{
		PersonID:     personID,
		PersonIDType: ecsauth.PersonUID,
		HubID:        "hub-1",
		Username:     username,
		Pids:         []PidRef{{HubID: "hub-1", PID: 7}},
	}
}

func TestMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	mapping := newMapping("u-7", "unia_bob")
	require.NoError(t, store.Create(ctx, mapping))
	assert.NotZero(t, mapping.ID)

	found, err := store.Find(ctx, "u-7", ecsauth.PersonUID)
	require.NoError(t, err)
	assert.Equal(t, "unia_bob", found.Username)
	assert.Equal(t, []PidRef{{HubID: "hub-1", PID: 7}}, found.Pids)

	// A different identifier type is a different key.
	_, err = store.Find(ctx, "u-7", ecsauth.PersonEmail)
	assert.ErrorIs(t, err, ErrMappingNotFound)

	found, err = store.FindByUsername(ctx, "unia_bob")
	require.NoError(t, err)
	assert.Equal(t, "u-7", found.PersonID)
}

func TestMemoryStore_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, newMapping("u-7", "unia_bob")))
	err := store.Create(ctx, newMapping("u-7", "unia_bob2"))
	assert.ErrorIs(t, err, ErrDuplicateMapping)
}

func TestMemoryStore_AppendPidIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newMapping("u-7", "unia_bob")))

	require.NoError(t, store.AppendPid(ctx, "u-7", ecsauth.PersonUID, PidRef{HubID: "hub-2", PID: 9}))
	require.NoError(t, store.AppendPid(ctx, "u-7", ecsauth.PersonUID, PidRef{HubID: "hub-2", PID: 9}))

	found, err := store.Find(ctx, "u-7", ecsauth.PersonUID)
	require.NoError(t, err)
	assert.Equal(t, []PidRef{{HubID: "hub-1", PID: 7}, {HubID: "hub-2", PID: 9}}, found.Pids)

	err = store.AppendPid(ctx, "nobody", ecsauth.PersonUID, PidRef{HubID: "hub-1", PID: 1})
	assert.ErrorIs(t, err, ErrMappingNotFound)
}

func TestMemoryStore_EnrollmentLists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, newMapping("u-1", "unia_1")))
	require.NoError(t, store.Create(ctx, newMapping("u-2", "unia_2")))
	require.NoError(t, store.Create(ctx, newMapping("u-3", "unia_3")))
	other := newMapping("u-4", "unib_1")
	other.HubID = "hub-2"
	require.NoError(t, store.Create(ctx, other))

	require.NoError(t, store.SetLastEnrolled(ctx, "u-2", ecsauth.PersonUID, cutoff.AddDate(0, -2, 0)))
	require.NoError(t, store.SetLastEnrolled(ctx, "u-3", ecsauth.PersonUID, cutoff.Add(time.Hour)))
	require.NoError(t, store.SetLastEnrolled(ctx, "u-4", ecsauth.PersonUID, cutoff.AddDate(0, -2, 0)))

	never, err := store.ListNeverEnrolled(ctx)
	require.NoError(t, err)
	require.Len(t, never, 1)
	assert.Equal(t, "u-1", never[0].PersonID)

	stale, err := store.ListEnrolledBefore(ctx, "hub-1", cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "u-2", stale[0].PersonID)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newMapping("u-7", "unia_bob")))

	require.NoError(t, store.Delete(ctx, "u-7", ecsauth.PersonUID))
	_, err := store.Find(ctx, "u-7", ecsauth.PersonUID)
	assert.ErrorIs(t, err, ErrMappingNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "u-7", ecsauth.PersonUID), ErrMappingNotFound)
}
